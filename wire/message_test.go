package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMessageRoundTrip(t *testing.T) {
	msg := Message{
		Stage:     StageKnock,
		Counter:   1,
		Timestamp: 1678886400,
		From:      "alice-12345678",
		To:        "bob-87654321",
		Payload: map[string]any{
			"c":   uint64(1),
			"pri": uint64(2),
		},
	}

	encoded, err := EncodeMessage(msg)
	require.NoError(t, err)

	decoded, err := DecodeMessage(encoded)
	require.NoError(t, err)

	assert.Equal(t, msg.Stage, decoded.Stage)
	assert.Equal(t, msg.Counter, decoded.Counter)
	assert.Equal(t, msg.Timestamp, decoded.Timestamp)
	assert.Equal(t, msg.From, decoded.From)
	assert.Equal(t, msg.To, decoded.To)
	assert.Equal(t, msg.Payload["c"], decoded.Payload["c"])
}

func TestDecodeMessageRejectsTrailingBytes(t *testing.T) {
	msg := Message{Stage: StageKnock, Counter: 1, Timestamp: 1, From: "a", To: "b", Payload: map[string]any{}}
	encoded, err := EncodeMessage(msg)
	require.NoError(t, err)

	withTrailer := append(encoded, 0xFF)
	_, err = DecodeMessage(withTrailer)
	assert.Error(t, err)
}

func TestStageMaxSizeTable(t *testing.T) {
	cases := map[Stage]int{
		StageKnock:   2 * 1024,
		StageWelcome: 2 * 1024,
		StageWish:    200 * 1024,
		StageGrant:   20 * 1024,
		StageWrap:    2 * 1024,
		StageGift:    20 * 1024 * 1024,
		StageThank:   4 * 1024,
	}
	for stage, want := range cases {
		assert.Equal(t, want, stage.MaxSize(), "stage %v", stage)
	}
}

func TestStageSealed(t *testing.T) {
	assert.False(t, StageKnock.Sealed())
	assert.False(t, StageWelcome.Sealed())
	for _, s := range []Stage{StageWish, StageGrant, StageWrap, StageGift, StageThank, StageError} {
		assert.True(t, s.Sealed(), "stage %v should be sealed", s)
	}
}

func TestBuildAAD(t *testing.T) {
	aad := BuildAAD(2, "alice", "bob")
	assert.Equal(t, []byte("\x02alicebob"), aad)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello wish protocol")
	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrameRejectsVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("x")))
	raw := buf.Bytes()
	raw[4] = ProtocolVersion + 1

	_, err := ReadFrame(bytes.NewReader(raw))
	assert.Error(t, err)
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	var lenBuf [4]byte
	// Claim a length far beyond the absolute cap.
	big := uint32(maxFrameBodyBytes()) + 100
	lenBuf[0] = byte(big >> 24)
	lenBuf[1] = byte(big >> 16)
	lenBuf[2] = byte(big >> 8)
	lenBuf[3] = byte(big)

	_, err := ReadFrame(bytes.NewReader(lenBuf[:]))
	assert.Error(t, err)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{Counter: 7, Timestamp: 12345, Ciphertext: []byte("sealed-bytes")}
	encoded := EncodeEnvelope(env)

	decoded, err := DecodeEnvelope(encoded)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestDecodeEnvelopeTooShort(t *testing.T) {
	_, err := DecodeEnvelope([]byte{1, 2, 3})
	assert.Error(t, err)
}
