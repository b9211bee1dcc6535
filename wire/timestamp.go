package wire

import "time"

// CurrentTimestamp returns the current Unix time truncated to the
// u32 range the wire format uses. The protocol does not rely on
// timestamp precision beyond documenting roughly when a message was
// sealed; it is not a freshness check on its own.
func CurrentTimestamp() uint32 {
	return uint32(time.Now().Unix())
}
