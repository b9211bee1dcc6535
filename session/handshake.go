package session

import (
	"io"

	"github.com/wish-project/wishd/crypto"
	"github.com/wish-project/wishd/wire"
	"github.com/wish-project/wishd/wisherr"
)

const ephKeyField = "eph_key"

// SendKnock writes the plaintext KNOCK message that opens a
// handshake and returns the ephemeral key pair generated for it. The
// caller must later feed the WELCOME's ephemeral key into
// ReceiveWelcome using the same key pair.
func SendKnock(w io.Writer, requesterID, responderID string, payload map[string]any) (*crypto.EphemeralKeyPair, error) {
	eph, err := crypto.GenerateEphemeralKeyPair()
	if err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload[ephKeyField] = eph.PublicBytes()

	msg := wire.Message{
		Stage:     wire.StageKnock,
		Counter:   1,
		Timestamp: wire.CurrentTimestamp(),
		From:      requesterID,
		To:        responderID,
		Payload:   payload,
	}
	encoded, err := wire.EncodeMessage(msg)
	if err != nil {
		eph.Zero()
		return nil, err
	}
	if len(encoded) > wire.StageKnock.MaxSize() {
		eph.Zero()
		return nil, wisherr.New(wisherr.SizeViolation, "KNOCK exceeds stage size limit")
	}
	if err := wire.WriteFrame(w, encoded); err != nil {
		eph.Zero()
		return nil, err
	}
	return eph, nil
}

// ReceiveWelcome reads the plaintext WELCOME reply, derives the
// session key from this side's ephemeral private key and the peer's
// advertised public key, and returns a ready Session plus the decoded
// WELCOME message so the caller can branch on its acceptance status.
// myEph is zeroed before returning, win or lose.
func ReceiveWelcome(r io.Reader, myEph *crypto.EphemeralKeyPair, requesterID, responderID string) (*Session, wire.Message, error) {
	defer myEph.Zero()

	frame, err := wire.ReadFrame(r)
	if err != nil {
		return nil, wire.Message{}, err
	}
	if len(frame) > wire.StageWelcome.MaxSize() {
		return nil, wire.Message{}, wisherr.New(wisherr.SizeViolation, "WELCOME exceeds stage size limit")
	}
	welcome, err := wire.DecodeMessage(frame)
	if err != nil {
		return nil, wire.Message{}, err
	}
	if welcome.Stage != wire.StageWelcome {
		return nil, wire.Message{}, wisherr.New(wisherr.StageMismatch, "expected WELCOME")
	}
	if welcome.Counter <= 1 {
		return nil, wire.Message{}, wisherr.New(wisherr.ReplayDetected, "WELCOME counter did not advance")
	}
	if welcome.From != responderID || welcome.To != requesterID {
		return nil, wire.Message{}, wisherr.New(wisherr.IdentityMismatch, "WELCOME From/To mismatch")
	}

	peerEph, err := ephKeyFromPayload(welcome.Payload)
	if err != nil {
		return nil, wire.Message{}, err
	}
	shared, err := myEph.SharedSecret(peerEph)
	if err != nil {
		return nil, wire.Message{}, err
	}
	key, err := crypto.DeriveSessionKey(shared, requesterID, responderID)
	if err != nil {
		return nil, wire.Message{}, err
	}

	sess := New(Requester, requesterID, responderID, key, welcome.Counter)
	return sess, welcome, nil
}

// ReadKnock reads and decodes the plaintext KNOCK a responder
// receives on a freshly accepted connection, enforcing its size limit
// before any decoding happens. It also returns the frame's actual
// byte length, which callers charge to byte-based rate limiting
// instead of the stage's worst-case MaxSize.
func ReadKnock(r io.Reader) (wire.Message, int, error) {
	frame, err := wire.ReadFrame(r)
	if err != nil {
		return wire.Message{}, 0, err
	}
	if len(frame) > wire.StageKnock.MaxSize() {
		return wire.Message{}, 0, wisherr.New(wisherr.SizeViolation, "KNOCK exceeds stage size limit")
	}
	knock, err := wire.DecodeMessage(frame)
	if err != nil {
		return wire.Message{}, 0, err
	}
	if knock.Stage != wire.StageKnock {
		return wire.Message{}, 0, wisherr.New(wisherr.StageMismatch, "expected KNOCK")
	}
	return knock, len(frame), nil
}

// RespondWelcome sends the WELCOME reply to a KNOCK and always
// returns a ready Session derived from the two ephemeral keys, even
// when accept is false: the responder still attempts a best-effort
// drain of one further sealed frame (the requester's THANK) after a
// refusal, so the caller needs a live session key for that read
// before closing.
func RespondWelcome(w io.Writer, knock wire.Message, responderID string, accept bool, statusPayload map[string]any) (*Session, error) {
	peerEph, err := ephKeyFromPayload(knock.Payload)
	if err != nil {
		return nil, err
	}

	eph, err := crypto.GenerateEphemeralKeyPair()
	if err != nil {
		return nil, err
	}
	defer eph.Zero()

	shared, err := eph.SharedSecret(peerEph)
	if err != nil {
		return nil, err
	}
	key, err := crypto.DeriveSessionKey(shared, knock.From, responderID)
	if err != nil {
		return nil, err
	}

	welcomeCounter := knock.Counter + 1
	payload := statusPayload
	if payload == nil {
		payload = map[string]any{}
	}
	payload[ephKeyField] = eph.PublicBytes()

	msg := wire.Message{
		Stage:     wire.StageWelcome,
		Counter:   welcomeCounter,
		Timestamp: wire.CurrentTimestamp(),
		From:      responderID,
		To:        knock.From,
		Payload:   payload,
	}
	encoded, err := wire.EncodeMessage(msg)
	if err != nil {
		return nil, err
	}
	if len(encoded) > wire.StageWelcome.MaxSize() {
		return nil, wisherr.New(wisherr.SizeViolation, "WELCOME exceeds stage size limit")
	}
	if err := wire.WriteFrame(w, encoded); err != nil {
		return nil, err
	}

	return New(Responder, knock.From, responderID, key, welcomeCounter), nil
}

func ephKeyFromPayload(payload map[string]any) ([]byte, error) {
	raw, ok := payload[ephKeyField]
	if !ok {
		return nil, wisherr.New(wisherr.DecodeError, "missing eph_key in payload")
	}
	eph, ok := raw.([]byte)
	if !ok || len(eph) != 32 {
		return nil, wisherr.New(wisherr.DecodeError, "invalid eph_key format")
	}
	return eph, nil
}
