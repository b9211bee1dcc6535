// Package session implements the wish protocol's session state
// machine (C3): the post-handshake sealed-message discipline shared
// by both the requester driver and the responder server, plus the
// ephemeral key exchange that produces a session's AEAD key.
package session

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/wish-project/wishd/crypto"
	"github.com/wish-project/wishd/wire"
	"github.com/wish-project/wishd/wisherr"
)

// Session tracks one handshake's cryptographic and counter state
// after KNOCK/WELCOME has established a session key. It enforces
// monotonic counters, identity binding, and version binding on every
// sealed message it sends or receives.
type Session struct {
	Role Role

	// ID identifies this session for structured logging and metrics
	// only; it never crosses the wire and plays no role in any
	// protocol invariant.
	ID string

	// RequesterID and ResponderID are the agent ids in their protocol
	// roles (not "local"/"remote" naming); SendSealed/ReceiveSealed
	// derive the AAD and the Message's From/To fields from them
	// according to Role.
	RequesterID string
	ResponderID string

	key crypto.SessionKey

	nextSendCounter     uint32
	lastAcceptedCounter uint32

	createdAt  time.Time
	lastUsedAt time.Time
	closed     bool
}

// New constructs a Session once a session key has been derived from
// the ephemeral ECDH exchange. initialCounter is the counter of the
// last plaintext handshake message (KNOCK or WELCOME) the two sides
// already agreed on; the first sealed message must use a strictly
// greater counter.
func New(role Role, requesterID, responderID string, key crypto.SessionKey, initialCounter uint32) *Session {
	now := time.Now()
	return &Session{
		Role:                role,
		ID:                  uuid.NewString(),
		RequesterID:         requesterID,
		ResponderID:         responderID,
		key:                 key,
		lastAcceptedCounter: initialCounter,
		createdAt:           now,
		lastUsedAt:          now,
	}
}

// localRemote returns (from, to) for a message this side is about to
// send.
func (s *Session) localRemote() (from, to string) {
	if s.Role == Requester {
		return s.RequesterID, s.ResponderID
	}
	return s.ResponderID, s.RequesterID
}

// SendSealed encrypts and frames a message for the given stage, using
// the next counter value, and writes it to w.
func (s *Session) SendSealed(w io.Writer, stage wire.Stage, payload map[string]any) error {
	if s.closed {
		return wisherr.New(wisherr.Timeout, "session already closed")
	}
	from, to := s.localRemote()
	s.nextSendCounter = nextCounter(s.nextSendCounter, s.lastAcceptedCounter)
	counter := s.nextSendCounter
	timestamp := wire.CurrentTimestamp()

	msg := wire.Message{
		Stage:     stage,
		Counter:   counter,
		Timestamp: timestamp,
		From:      from,
		To:        to,
		Payload:   payload,
	}
	plaintext, err := wire.EncodeMessage(msg)
	if err != nil {
		return err
	}
	aad := wire.BuildAAD(wire.ProtocolVersion, from, to)
	ciphertext, err := crypto.Seal(s.key, counter, timestamp, plaintext, aad)
	if err != nil {
		return err
	}
	envelope := wire.EncodeEnvelope(wire.Envelope{Counter: counter, Timestamp: timestamp, Ciphertext: ciphertext})
	if err := wire.WriteFrame(w, envelope); err != nil {
		return err
	}
	s.lastUsedAt = time.Now()
	return nil
}

// nextCounter picks a counter value strictly greater than both the
// last value we sent and the last value we accepted from the peer,
// so both directions of the conversation share one monotonic space.
func nextCounter(lastSent, lastAccepted uint32) uint32 {
	base := lastSent
	if lastAccepted > base {
		base = lastAccepted
	}
	return base + 1
}

// ReceiveSealed reads one sealed frame from r, verifies its counter
// is strictly greater than the last one accepted (replay protection),
// decrypts and authenticates it, enforces the per-stage size limit on
// the recovered plaintext, and checks that the decoded message's
// From/To match the expected identities. It also returns the sealed
// frame's actual byte length on the wire, which callers charge to
// byte-based rate limiting instead of the stage's worst-case MaxSize.
func (s *Session) ReceiveSealed(r io.Reader) (wire.Message, int, error) {
	if s.closed {
		return wire.Message{}, 0, wisherr.New(wisherr.Timeout, "session already closed")
	}
	frame, err := wire.ReadFrame(r)
	if err != nil {
		return wire.Message{}, 0, err
	}
	env, err := wire.DecodeEnvelope(frame)
	if err != nil {
		return wire.Message{}, 0, err
	}
	if env.Counter <= s.lastAcceptedCounter {
		return wire.Message{}, 0, wisherr.New(wisherr.ReplayDetected, "counter did not increase")
	}

	expectedFrom, expectedTo := s.remoteLocal()
	aad := wire.BuildAAD(wire.ProtocolVersion, expectedFrom, expectedTo)
	plaintext, err := crypto.Open(s.key, env.Counter, env.Timestamp, env.Ciphertext, aad)
	if err != nil {
		return wire.Message{}, 0, err
	}

	msg, err := wire.DecodeMessage(plaintext)
	if err != nil {
		return wire.Message{}, 0, err
	}
	if len(plaintext) > msg.Stage.MaxSize() {
		return wire.Message{}, 0, wisherr.New(wisherr.SizeViolation, "decoded message exceeds stage limit")
	}
	if msg.From != expectedFrom || msg.To != expectedTo {
		return wire.Message{}, 0, wisherr.New(wisherr.IdentityMismatch, "message From/To does not match session identities")
	}
	// The envelope's counter/timestamp must match what the sealed
	// plaintext itself claims, enforced as a hard DecodeError rather
	// than silently trusting one side.
	if msg.Counter != env.Counter || msg.Timestamp != env.Timestamp {
		return wire.Message{}, 0, wisherr.New(wisherr.DecodeError, "envelope and plaintext counter/timestamp disagree")
	}

	s.lastAcceptedCounter = env.Counter
	s.lastUsedAt = time.Now()
	return msg, len(frame), nil
}

// remoteLocal returns (expectedFrom, expectedTo) for a message this
// side expects to receive — the mirror of localRemote.
func (s *Session) remoteLocal() (expectedFrom, expectedTo string) {
	if s.Role == Requester {
		return s.ResponderID, s.RequesterID
	}
	return s.RequesterID, s.ResponderID
}

// LastAcceptedCounter exposes the current replay-protection
// watermark, primarily for tests.
func (s *Session) LastAcceptedCounter() uint32 {
	return s.lastAcceptedCounter
}

// Close zeroes the session key. Safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.key.Zero()
	s.closed = true
	return nil
}

// CreatedAt and LastUsedAt support the Manager's idle sweep.
func (s *Session) CreatedAt() time.Time  { return s.createdAt }
func (s *Session) LastUsedAt() time.Time { return s.lastUsedAt }
