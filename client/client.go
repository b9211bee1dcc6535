// Package client implements the wish protocol's requester driver
// (C5): it drives one outbound session from KNOCK through to a final
// GIFT (or an early WELCOME/GRANT refusal), reporting WRAP progress
// updates to the caller along the way.
package client

import (
	"io"

	"github.com/wish-project/wishd/session"
	"github.com/wish-project/wishd/wire"
	"github.com/wish-project/wishd/wisherr"
)

// ProgressFunc is invoked for every WRAP message received while
// waiting for GIFT. prog is the percent-complete value the responder
// reported.
type ProgressFunc func(prog uint64)

// Options configures a single Request call.
type Options struct {
	RequesterID string
	ResponderID string
	// KnockPayload seeds the KNOCK message; "eph_key" is added
	// automatically and should not be set by the caller.
	KnockPayload map[string]any
	// WishPayload is sent as the WISH body once WELCOME accepts.
	WishPayload map[string]any
	OnProgress  ProgressFunc
}

// Request drives rw (already connected to the responder) through the
// full handshake and returns the final terminal message: WELCOME if
// refused at that stage, GRANT if refused there, or GIFT on success.
// The session key is zeroed on every exit path.
func Request(rw io.ReadWriter, opts Options) (wire.Message, error) {
	eph, err := session.SendKnock(rw, opts.RequesterID, opts.ResponderID, opts.KnockPayload)
	if err != nil {
		return wire.Message{}, err
	}

	sess, welcome, err := session.ReceiveWelcome(rw, eph, opts.RequesterID, opts.ResponderID)
	if err != nil {
		return wire.Message{}, err
	}

	if welcomeStatus(welcome) == statusRefused {
		defer sess.Close()
		if err := sendThank(sess, rw, 2, true, ""); err != nil {
			return wire.Message{}, err
		}
		return welcome, nil
	}

	defer sess.Close()

	if err := sess.SendSealed(rw, wire.StageWish, opts.WishPayload); err != nil {
		return wire.Message{}, err
	}

	grant, _, err := sess.ReceiveSealed(rw)
	if err != nil {
		return wire.Message{}, err
	}
	if grant.Stage != wire.StageGrant {
		return wire.Message{}, wisherr.New(wisherr.StageMismatch, "expected GRANT")
	}
	if grantStatus(grant) == statusRefused {
		if err := sendThank(sess, rw, 2, true, ""); err != nil {
			return wire.Message{}, err
		}
		return grant, nil
	}

	for {
		msg, _, err := sess.ReceiveSealed(rw)
		if err != nil {
			return wire.Message{}, err
		}
		switch msg.Stage {
		case wire.StageWrap:
			if opts.OnProgress != nil {
				opts.OnProgress(progressOf(msg))
			}
		case wire.StageGift:
			if err := sendThank(sess, rw, 1, false, "Thank you!"); err != nil {
				return wire.Message{}, err
			}
			return msg, nil
		default:
			return wire.Message{}, wisherr.New(wisherr.StageMismatch, "unexpected stage while waiting for GIFT")
		}
	}
}

const (
	statusAccepted = 1
	statusRefused  = 2
)

func welcomeStatus(welcome wire.Message) uint64 {
	return statusOf(welcome, statusAccepted)
}

func grantStatus(grant wire.Message) uint64 {
	return statusOf(grant, statusAccepted)
}

func statusOf(msg wire.Message, def uint64) uint64 {
	v, ok := msg.Payload["st"]
	if !ok {
		return def
	}
	n, ok := v.(uint64)
	if !ok {
		return def
	}
	return n
}

func progressOf(msg wire.Message) uint64 {
	v, ok := msg.Payload["prog"]
	if !ok {
		return 0
	}
	n, _ := v.(uint64)
	return n
}

func sendThank(sess *session.Session, w io.Writer, ctx uint64, understanding bool, feedback string) error {
	payload := map[string]any{"ctx": ctx}
	if ctx != 1 {
		payload["und"] = understanding
	}
	if feedback != "" {
		payload["fb"] = feedback
	}
	return sess.SendSealed(w, wire.StageThank, payload)
}
