package session

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wish-project/wishd/wire"
)

func handshakeOrFail(t *testing.T) (*Session, *Session) {
	t.Helper()
	var knockToResponder bytes.Buffer
	var welcomeToRequester bytes.Buffer

	eph, err := SendKnock(&knockToResponder, "alice-12345678", "bob-87654321", map[string]any{"c": uint64(1)})
	require.NoError(t, err)

	knock, _, err := ReadKnock(&knockToResponder)
	require.NoError(t, err)
	assert.Equal(t, "alice-12345678", knock.From)

	responderSess, err := RespondWelcome(&welcomeToRequester, knock, "bob-87654321", true, map[string]any{"st": uint64(1)})
	require.NoError(t, err)
	require.NotNil(t, responderSess)

	requesterSess, welcome, err := ReceiveWelcome(&welcomeToRequester, eph, "alice-12345678", "bob-87654321")
	require.NoError(t, err)
	assert.Equal(t, wire.StageWelcome, welcome.Stage)

	return requesterSess, responderSess
}

func TestHandshakeProducesSymmetricSessions(t *testing.T) {
	requester, responder := handshakeOrFail(t)
	assert.Equal(t, requester.LastAcceptedCounter(), responder.LastAcceptedCounter())
}

func TestSealedRoundTrip(t *testing.T) {
	requester, responder := handshakeOrFail(t)

	var wish bytes.Buffer
	err := requester.SendSealed(&wish, wire.StageWish, map[string]any{"task": "do a thing"})
	require.NoError(t, err)

	msg, _, err := responder.ReceiveSealed(&wish)
	require.NoError(t, err)
	assert.Equal(t, wire.StageWish, msg.Stage)
	assert.Equal(t, "do a thing", msg.Payload["task"])
}

func TestReplayedCounterRejected(t *testing.T) {
	requester, responder := handshakeOrFail(t)

	var buf bytes.Buffer
	require.NoError(t, requester.SendSealed(&buf, wire.StageWish, map[string]any{}))
	frame := append([]byte(nil), buf.Bytes()...)

	_, _, err := responder.ReceiveSealed(bytes.NewReader(frame))
	require.NoError(t, err)

	_, _, err = responder.ReceiveSealed(bytes.NewReader(frame))
	assert.Error(t, err)
}

func TestCloseZeroesKey(t *testing.T) {
	requester, _ := handshakeOrFail(t)
	require.NoError(t, requester.Close())
	for _, b := range requester.key {
		assert.Equal(t, byte(0), b)
	}

	var buf bytes.Buffer
	err := requester.SendSealed(&buf, wire.StageWish, map[string]any{})
	assert.Error(t, err)
}

func TestManagerTracksAndUntracks(t *testing.T) {
	_, responder := handshakeOrFail(t)
	m := NewManager()
	defer m.Close()

	m.Track(responder)
	assert.Equal(t, 1, m.Status().ActiveSessions)

	m.Untrack(responder.RequesterID)
	assert.Equal(t, 0, m.Status().ActiveSessions)
}
