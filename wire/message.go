// Package wire implements the wish protocol's framing codec (C1):
// length-prefixed, version-tagged frames carrying either a plaintext
// handshake Message or a sealed envelope.
package wire

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/wish-project/wishd/wisherr"
)

// ProtocolVersion is the single wire version this codec understands.
const ProtocolVersion uint8 = 2

// Stage identifies the typed kind of a Message.
type Stage uint8

const (
	StageKnock   Stage = 1
	StageWelcome Stage = 2
	StageWish    Stage = 3
	StageGrant   Stage = 4
	StageWrap    Stage = 5
	StageGift    Stage = 6
	StageThank   Stage = 7
	StageError   Stage = 255
)

func (s Stage) String() string {
	switch s {
	case StageKnock:
		return "KNOCK"
	case StageWelcome:
		return "WELCOME"
	case StageWish:
		return "WISH"
	case StageGrant:
		return "GRANT"
	case StageWrap:
		return "WRAP"
	case StageGift:
		return "GIFT"
	case StageThank:
		return "THANK"
	case StageError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Sealed reports whether messages of this stage travel AEAD-sealed on
// the wire. Only the initial Knock/Welcome pair is plaintext.
func (s Stage) Sealed() bool {
	return s != StageKnock && s != StageWelcome
}

// MaxSize returns the per-stage frame size limit, applied to the
// serialized Message payload (not the sealed envelope).
func (s Stage) MaxSize() int {
	switch s {
	case StageKnock:
		return 2 * 1024
	case StageWelcome:
		return 2 * 1024
	case StageWish:
		return 200 * 1024
	case StageGrant:
		return 20 * 1024
	case StageWrap:
		return 2 * 1024
	case StageGift:
		return 20 * 1024 * 1024
	case StageThank:
		return 4 * 1024
	case StageError:
		return 4 * 1024
	default:
		return 0
	}
}

// MaxFrameSize is the stage with the largest size limit. The reader
// bounds allocation before the stage is even known by the largest
// possible frame body: that limit plus the envelope header and the
// AEAD tag (see maxFrameBodyBytes).
const MaxFrameSize = StageGift
const envelopeHeaderSize = 8 // counter(4) + timestamp(4)
const aeadTagSize = 16       // AES-GCM authentication tag

func maxFrameBodyBytes() int {
	return int(MaxFrameSize.MaxSize()) + envelopeHeaderSize + aeadTagSize
}

// Message is the universal wire object exchanged by both roles.
type Message struct {
	Stage     Stage          `cbor:"1,keyasint"`
	Counter   uint32         `cbor:"2,keyasint"`
	Timestamp uint32         `cbor:"3,keyasint"`
	From      string         `cbor:"4,keyasint"`
	To        string         `cbor:"5,keyasint"`
	Payload   map[string]any `cbor:"6,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	encOpts := cbor.CanonicalEncOptions()
	m, err := encOpts.EncMode()
	if err != nil {
		panic(err)
	}
	encMode = m

	decOpts := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
		// Nested payload maps decode as map[string]any, the same type
		// they are built with, so a Message round-trips unchanged.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}
	d, err := decOpts.DecMode()
	if err != nil {
		panic(err)
	}
	decMode = d
}

// EncodeMessage serializes a Message using canonical CBOR. The
// encoding round-trips exactly and never emits trailing bytes.
func EncodeMessage(m Message) ([]byte, error) {
	b, err := encMode.Marshal(m)
	if err != nil {
		return nil, wisherr.Wrap(wisherr.DecodeError, "encode message", err)
	}
	return b, nil
}

// DecodeMessage deserializes a Message. fxamacker/cbor's Unmarshal
// requires the input be exactly one well-formed CBOR data item, so
// trailing bytes after the message are rejected for free.
func DecodeMessage(b []byte) (Message, error) {
	var m Message
	if err := decMode.Unmarshal(b, &m); err != nil {
		return Message{}, wisherr.Wrap(wisherr.DecodeError, "decode message", err)
	}
	if m.Payload == nil {
		m.Payload = map[string]any{}
	}
	return m, nil
}
