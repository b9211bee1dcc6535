package wire

import (
	"encoding/binary"

	"github.com/wish-project/wishd/wisherr"
)

// Envelope is the sealed outer form of a non-handshake message:
// counter || timestamp || AEAD-ciphertext.
type Envelope struct {
	Counter    uint32
	Timestamp  uint32
	Ciphertext []byte
}

// EncodeEnvelope serializes the envelope header and ciphertext into
// the bytes that travel as a frame's payload.
func EncodeEnvelope(e Envelope) []byte {
	out := make([]byte, envelopeHeaderSize+len(e.Ciphertext))
	binary.BigEndian.PutUint32(out[0:4], e.Counter)
	binary.BigEndian.PutUint32(out[4:8], e.Timestamp)
	copy(out[8:], e.Ciphertext)
	return out
}

// DecodeEnvelope parses a frame payload into its envelope header and
// ciphertext.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) < envelopeHeaderSize {
		return Envelope{}, wisherr.New(wisherr.DecodeError, "envelope shorter than header")
	}
	return Envelope{
		Counter:    binary.BigEndian.Uint32(b[0:4]),
		Timestamp:  binary.BigEndian.Uint32(b[4:8]),
		Ciphertext: b[8:],
	}, nil
}

// BuildAAD constructs the AEAD associated data binding the protocol
// version and both agent identities. Callers on the receive path MUST
// pass the expected sender's id as from, not the locally-stored "to"
// field.
func BuildAAD(version uint8, from, to string) []byte {
	aad := make([]byte, 0, 1+len(from)+len(to))
	aad = append(aad, version)
	aad = append(aad, from...)
	aad = append(aad, to...)
	return aad
}
