package server

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wish-project/wishd/client"
	"github.com/wish-project/wishd/session"
	"github.com/wish-project/wishd/wire"
)

func writePolicyScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

const (
	requesterID = "alice-00000001"
	responderID = "bob-00000002"
)

func newTestServer(t *testing.T, policyScript string) *Server {
	t.Helper()
	s := New(Config{ID: responderID, PolicyPath: policyScript})
	t.Cleanup(s.Close)
	return s
}

func runHandleConn(s *Server, conn net.Conn) {
	go func() {
		defer conn.Close()
		s.handleConn(context.Background(), conn)
	}()
}

func TestHappyPath(t *testing.T) {
	policyPath := writePolicyScript(t, `cat > /dev/null
echo '{"accept": true, "estimated_time": 3}'
`)
	s := newTestServer(t, policyPath)

	serverConn, clientConn := net.Pipe()
	runHandleConn(s, serverConn)
	defer clientConn.Close()

	result, err := client.Request(clientConn, client.Options{
		RequesterID: requesterID,
		ResponderID: responderID,
		WishPayload: map[string]any{"task": "echo", "arg": "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, wire.StageGift, result.Stage)
	assert.Equal(t, true, result.Payload["ok"])
	res, ok := result.Payload["res"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, res["accept"])
	assert.NotContains(t, res, "reason")
}

func TestRefuseAtKnock(t *testing.T) {
	policyPath := writePolicyScript(t, `cat > /dev/null
echo '{"accept": false, "reason": "busy"}'
`)
	s := newTestServer(t, policyPath)

	serverConn, clientConn := net.Pipe()
	runHandleConn(s, serverConn)
	defer clientConn.Close()

	result, err := client.Request(clientConn, client.Options{
		RequesterID: requesterID,
		ResponderID: responderID,
	})
	require.NoError(t, err)
	assert.Equal(t, wire.StageWelcome, result.Stage)
	assert.Equal(t, uint64(2), result.Payload["st"])
	assert.Equal(t, "busy", result.Payload["r"])
}

func TestRefuseAtWish(t *testing.T) {
	policyPath := writePolicyScript(t, `input=$(cat)
case "$input" in
  *'"stage":1'*) echo '{"accept": true, "estimated_time": 1}' ;;
  *) echo '{"accept": false, "reason": "excessive_request"}' ;;
esac
`)
	s := newTestServer(t, policyPath)

	serverConn, clientConn := net.Pipe()
	runHandleConn(s, serverConn)
	defer clientConn.Close()

	result, err := client.Request(clientConn, client.Options{
		RequesterID: requesterID,
		ResponderID: responderID,
		WishPayload: map[string]any{"task": "do-too-much"},
	})
	require.NoError(t, err)
	assert.Equal(t, wire.StageGrant, result.Stage)
	assert.Equal(t, uint64(2), result.Payload["st"])
	assert.Equal(t, "excessive_request", result.Payload["r"])
}

func TestOversizeWishRejected(t *testing.T) {
	policyPath := writePolicyScript(t, `cat > /dev/null
echo '{"accept": true}'
`)
	s := newTestServer(t, policyPath)

	serverConn, clientConn := net.Pipe()
	runHandleConn(s, serverConn)
	defer clientConn.Close()

	eph, err := session.SendKnock(clientConn, requesterID, responderID, nil)
	require.NoError(t, err)
	sess, welcome, err := session.ReceiveWelcome(clientConn, eph, requesterID, responderID)
	require.NoError(t, err)
	require.Equal(t, uint64(1), welcome.Payload["st"])
	defer sess.Close()

	// The session layer itself doesn't cap outbound size; the
	// responder enforces the per-stage limit on receipt, before any
	// policy invocation.
	oversized := bytes.Repeat([]byte("x"), wire.StageWish.MaxSize()+1)
	require.NoError(t, sess.SendSealed(clientConn, wire.StageWish, map[string]any{"blob": oversized}))

	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = clientConn.Read(buf)
	assert.Error(t, err, "responder must close the connection without a GRANT")

	assert.Eventually(t, func() bool { return s.blocklist.Size() == 1 }, time.Second, 10*time.Millisecond,
		"oversize WISH must record a SizeViolations violation")
}

func TestRateLimitAndBlocklist(t *testing.T) {
	policyPath := writePolicyScript(t, `cat > /dev/null
echo '{"accept": true, "estimated_time": 1}'
`)
	s := newTestServer(t, policyPath)

	agent := "spammer-deadbeef1"
	for i := 0; i < 100; i++ {
		require.True(t, s.rateLimiter.CheckKnock(agent), "knock %d should be allowed", i)
	}
	assert.False(t, s.rateLimiter.CheckKnock(agent), "101st knock must be rejected")

	for i := 0; i < 10; i++ {
		s.violate(agent, BlockReasonRateLimitViolations)
	}
	assert.True(t, s.blocklist.IsBlocked(agent))

	serverConn, clientConn := net.Pipe()
	runHandleConn(s, serverConn)
	defer clientConn.Close()

	_, err := session.SendKnock(clientConn, agent, responderID, nil)
	require.NoError(t, err)

	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = clientConn.Read(buf)
	assert.Error(t, err, "blocked agent's connection should be closed without a WELCOME")
}
