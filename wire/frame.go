package wire

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/wish-project/wishd/wisherr"
)

// ReadFrame blocks until one complete frame is read from r:
//
//	[ total_len : u32 big-endian ]  // 1 + payload bytes
//	[ version   : u8             ]
//	[ payload   : total_len-1 bytes ]
//
// It enforces the absolute frame cap before allocating the payload
// buffer, so an attacker cannot force large allocations with a bogus
// length header.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, shortReadOrEOF(err)
	}
	totalLen := binary.BigEndian.Uint32(lenBuf[:])
	if totalLen == 0 {
		return nil, wisherr.New(wisherr.DecodeError, "zero-length frame")
	}
	if int(totalLen)-1 > maxFrameBodyBytes() {
		return nil, wisherr.New(wisherr.FrameTooLarge, "frame exceeds absolute cap")
	}

	var verBuf [1]byte
	if _, err := io.ReadFull(r, verBuf[:]); err != nil {
		return nil, shortReadOrEOF(err)
	}
	if verBuf[0] != ProtocolVersion {
		return nil, wisherr.New(wisherr.VersionMismatch, "unexpected protocol version")
	}

	payload := make([]byte, totalLen-1)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, shortReadOrEOF(err)
	}
	return payload, nil
}

func shortReadOrEOF(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return wisherr.Wrap(wisherr.ShortRead, "connection closed mid-frame", err)
	}
	return wisherr.Wrap(wisherr.ShortRead, "frame read failed", err)
}

// WriteFrame emits a single frame and flushes if w implements a
// Flush method via the flusher interface (buffered writers); plain
// io.Writers are written to directly and are already "flushed".
func WriteFrame(w io.Writer, payload []byte) error {
	totalLen := uint32(len(payload) + 1)
	header := make([]byte, 5)
	binary.BigEndian.PutUint32(header[0:4], totalLen)
	header[4] = ProtocolVersion

	frame := make([]byte, 0, len(header)+len(payload))
	frame = append(frame, header...)
	frame = append(frame, payload...)

	if _, err := w.Write(frame); err != nil {
		return wisherr.Wrap(wisherr.ShortRead, "frame write failed", err)
	}
	if f, ok := w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return wisherr.Wrap(wisherr.ShortRead, "frame flush failed", err)
		}
	}
	return nil
}

type flusher interface {
	Flush() error
}
