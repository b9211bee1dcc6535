// Package policy invokes the external decision-making process a
// responder consults at KNOCK and WISH time: a subprocess that
// receives one JSON-encoded Message on stdin and returns one JSON
// Decision on stdout.
package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/wish-project/wishd/wire"
	"github.com/wish-project/wishd/wisherr"
)

// Decision is the subprocess's JSON response shape. An empty stdout
// (after trimming whitespace) is treated as an implicit accept. Raw
// holds the decoded object exactly as the engine returned it — server
// embeds this verbatim as GIFT's res rather than reconstructing it
// from the typed fields below, so any extra fields the engine added
// (or fields it omitted) survive untouched.
type Decision struct {
	Accept        bool   `json:"accept"`
	Reason        string `json:"reason"`
	EstimatedTime int64  `json:"estimated_time"`
	Raw           map[string]any
}

// decisionWireForm mirrors wire.Message with JSON tags: the
// subprocess contract speaks JSON regardless of the CBOR wire
// encoding used on the network.
type decisionWireForm struct {
	Stage     uint8          `json:"stage"`
	Counter   uint32         `json:"counter"`
	Timestamp uint32         `json:"timestamp"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Payload   map[string]any `json:"payload"`
}

// Invoke runs the policy executable at path, feeding it msg as JSON
// on stdin, and parses its stdout as a Decision. A non-empty stderr
// on a failing exit is folded into the returned error. A process
// that exits zero with empty stdout accepts by default.
func Invoke(ctx context.Context, path string, msg wire.Message) (Decision, error) {
	input, err := json.Marshal(decisionWireForm{
		Stage:     uint8(msg.Stage),
		Counter:   msg.Counter,
		Timestamp: msg.Timestamp,
		From:      msg.From,
		To:        msg.To,
		Payload:   msg.Payload,
	})
	if err != nil {
		return Decision{}, wisherr.Wrap(wisherr.PolicyFailure, "encode policy request", err)
	}

	cmd := exec.CommandContext(ctx, path)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Decision{}, wisherr.Wrap(wisherr.PolicyFailure, "policy process failed: "+stderr.String(), err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return Decision{Accept: true, Raw: map[string]any{"accept": true}}, nil
	}

	var d Decision
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		return Decision{}, wisherr.Wrap(wisherr.PolicyFailure, "parse policy response", err)
	}
	if err := json.Unmarshal([]byte(out), &d.Raw); err != nil {
		return Decision{}, wisherr.Wrap(wisherr.PolicyFailure, "parse policy response", err)
	}
	return d, nil
}
