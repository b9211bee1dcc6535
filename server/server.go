// Package server implements the wish protocol's responder (C4): it
// accepts channels, applies abuse control, consults the policy engine,
// and drives the responder side of the seven-stage state machine.
package server

import (
	"context"
	"io"
	"net"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wish-project/wishd/internal/logger"
	"github.com/wish-project/wishd/internal/metrics"
	"github.com/wish-project/wishd/policy"
	"github.com/wish-project/wishd/session"
	"github.com/wish-project/wishd/wire"
	"github.com/wish-project/wishd/wisherr"
)

// drainDeadline bounds the best-effort read attempted after a WELCOME
// or GRANT refusal; its result is discarded either way.
const drainDeadline = 2 * time.Second

// deadliner is implemented by channels that support per-operation
// deadlines (net.Conn and friends). Channels that don't implement it
// simply skip the best-effort drain's deadline.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Config configures a Server. PolicyPath is the executable consulted
// at KNOCK and WISH.
type Config struct {
	ID          string
	PolicyPath  string
	MaxInFlight int64
	Logger      logger.Logger
	// AuditLog, if set, receives a best-effort record of every
	// completed session. A nil AuditLog disables audit recording;
	// the server never fails or blocks a session waiting on it.
	AuditLog AuditLog
}

// AuditOutcome summarizes how one responder session ended.
type AuditOutcome struct {
	RequesterID string
	ResponderID string
	FinalStage  string
	Accepted    bool
	Duration    time.Duration
}

// AuditLog is the server's view of a durable session history. It is
// deliberately decoupled from any storage implementation — see
// storage/postgres.Store for a pgx-backed adapter — so the core
// responder package carries no database dependency of its own.
type AuditLog interface {
	Record(ctx context.Context, o AuditOutcome)
}

// Server accepts channels and runs the responder state machine on
// each, bounded by a weighted semaphore standing in for a worker pool.
type Server struct {
	cfg         Config
	blocklist   *Blocklist
	rateLimiter *RateLimiter
	sessions    *session.Manager
	sem         *semaphore.Weighted
	log         logger.Logger
}

// New constructs a Server ready to Serve connections.
func New(cfg Config) *Server {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 256
	}
	log := cfg.Logger
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Server{
		cfg:         cfg,
		blocklist:   NewBlocklist(),
		rateLimiter: NewRateLimiter(),
		sessions:    session.NewManager(),
		sem:         semaphore.NewWeighted(cfg.MaxInFlight),
		log:         log,
	}
}

// Close stops the session manager's background sweep and closes every
// tracked session.
func (s *Server) Close() {
	s.sessions.Close()
}

// HandleConn drives the responder state machine on a single
// already-accepted channel to completion. Serve uses it internally
// for each TCP accept; transports that hand off connections outside
// of a net.Listener (e.g. an HTTP WebSocket upgrade handler) call it
// directly, one goroutine per channel.
func (s *Server) HandleConn(ctx context.Context, conn io.ReadWriter) {
	s.handleConn(ctx, conn)
}

// Serve accepts channels from ln until ctx is cancelled or Accept
// fails, handing each to a bounded goroutine. The acceptor loop never
// blocks on a session: it only blocks acquiring a semaphore slot.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// Closing ln on cancellation unblocks a pending Accept.
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return wisherr.Wrap(wisherr.Timeout, "accept", err)
			}
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			conn.Close()
			return err
		}
		go func() {
			defer s.sem.Release(1)
			defer conn.Close()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn drives one responder session end to end. Every exit path
// closes the derived session, zeroing its key.
func (s *Server) handleConn(ctx context.Context, conn io.ReadWriter) {
	knock, knockSize, err := session.ReadKnock(conn)
	if err != nil {
		s.log.Warn("failed to read KNOCK", logger.Error(err))
		metrics.KnocksReceived.WithLabelValues("malformed").Inc()
		return
	}
	peerID := knock.From
	log := s.log.WithFields(logger.String("agent", peerID), logger.Stage(wire.StageKnock))

	start := time.Now()
	finalStage := wire.StageKnock
	accepted := false
	if s.cfg.AuditLog != nil {
		defer func() {
			s.cfg.AuditLog.Record(ctx, AuditOutcome{
				RequesterID: peerID,
				ResponderID: s.cfg.ID,
				FinalStage:  finalStage.String(),
				Accepted:    accepted,
				Duration:    time.Since(start),
			})
		}()
	}

	if s.blocklist.IsBlocked(peerID) {
		log.Warn("rejected blocked agent")
		metrics.KnocksReceived.WithLabelValues("blocked").Inc()
		return
	}

	if !s.rateLimiter.CheckKnock(peerID) {
		s.violate(peerID, BlockReasonRateLimitViolations)
		metrics.RateLimitRejections.WithLabelValues("knocks").Inc()
		metrics.KnocksReceived.WithLabelValues("rate_limited").Inc()
		log.Warn("knock rate limit exceeded")
		return
	}
	if !s.rateLimiter.CheckBytes(peerID, uint64(knockSize)) {
		s.violate(peerID, BlockReasonRateLimitViolations)
		metrics.RateLimitRejections.WithLabelValues("bytes").Inc()
		log.Warn("byte rate limit exceeded on KNOCK")
		return
	}

	handshakeStart := time.Now()
	decision, err := policy.Invoke(ctx, s.cfg.PolicyPath, knock)
	if err != nil {
		log.Error("policy engine failed on KNOCK", logger.Error(err))
		return
	}
	metrics.PolicyDecisions.WithLabelValues("knock", boolLabel(decision.Accept)).Inc()

	welcomePayload := map[string]any{}
	if decision.Accept {
		welcomePayload["st"] = uint64(1)
		welcomePayload["msg"] = "Welcome! Please share your wish."
	} else {
		welcomePayload["st"] = uint64(2)
		reason := decision.Reason
		if reason == "" {
			reason = "busy"
		}
		welcomePayload["r"] = reason
	}

	sess, err := session.RespondWelcome(conn, knock, s.cfg.ID, decision.Accept, welcomePayload)
	if err != nil {
		log.Error("failed to send WELCOME", logger.Error(err))
		return
	}
	defer sess.Close()
	log = log.WithFields(logger.String("session_id", sess.ID))
	metrics.HandshakeDuration.Observe(time.Since(handshakeStart).Seconds())

	if !decision.Accept {
		finalStage = wire.StageWelcome
		metrics.WelcomesSent.WithLabelValues("refused").Inc()
		metrics.KnocksReceived.WithLabelValues("accepted").Inc()
		s.drainOne(conn, sess)
		return
	}
	finalStage = wire.StageWelcome
	metrics.WelcomesSent.WithLabelValues("accepted").Inc()
	metrics.KnocksReceived.WithLabelValues("accepted").Inc()

	s.sessions.Track(sess)
	defer s.sessions.Untrack(sess.RequesterID)

	wish, wishSize, err := sess.ReceiveSealed(conn)
	if err != nil {
		s.recordMessageError(peerID, wire.StageWish, err)
		return
	}
	if !s.rateLimiter.CheckBytes(peerID, uint64(wishSize)) {
		s.violate(peerID, BlockReasonRateLimitViolations)
		metrics.RateLimitRejections.WithLabelValues("bytes").Inc()
		log.Warn("byte rate limit exceeded on WISH")
		return
	}
	if wish.Stage != wire.StageWish {
		s.violate(peerID, BlockReasonMalformedMessages)
		log.Warn("expected WISH", logger.Stage(wish.Stage))
		return
	}
	metrics.MessagesProcessed.WithLabelValues(wire.StageWish.String(), "success").Inc()

	taskDecision, err := policy.Invoke(ctx, s.cfg.PolicyPath, wish)
	if err != nil {
		log.Error("policy engine failed on WISH", logger.Error(err))
		return
	}
	metrics.PolicyDecisions.WithLabelValues("wish", boolLabel(taskDecision.Accept)).Inc()

	const defaultEstimatedTime = 60

	grantPayload := map[string]any{}
	if taskDecision.Accept {
		estimatedTime := taskDecision.EstimatedTime
		if _, ok := taskDecision.Raw["estimated_time"]; !ok {
			estimatedTime = defaultEstimatedTime
		}
		grantPayload["st"] = uint64(1)
		grantPayload["est_t"] = uint64(estimatedTime)
	} else {
		grantPayload["st"] = uint64(2)
		reason := taskDecision.Reason
		if reason == "" {
			reason = "excessive_request"
		}
		grantPayload["r"] = reason
	}
	if err := sess.SendSealed(conn, wire.StageGrant, grantPayload); err != nil {
		log.Error("failed to send GRANT", logger.Error(err))
		return
	}
	metrics.MessagesProcessed.WithLabelValues(wire.StageGrant.String(), "success").Inc()
	finalStage = wire.StageGrant

	if !taskDecision.Accept {
		s.drainOne(conn, sess)
		return
	}

	// The policy engine is re-invoked a second time to produce the
	// GIFT's res body, separately from the accept/refuse decision at
	// GRANT.
	execStart := time.Now()
	resultDecision, err := policy.Invoke(ctx, s.cfg.PolicyPath, wish)
	if err != nil {
		log.Error("policy engine failed producing GIFT", logger.Error(err))
		return
	}

	giftPayload := map[string]any{
		"ok":  true,
		"res": resultDecision.Raw,
		"meta": map[string]any{
			"exec_t": uint64(time.Since(execStart).Seconds()),
		},
	}
	if err := sess.SendSealed(conn, wire.StageGift, giftPayload); err != nil {
		log.Error("failed to send GIFT", logger.Error(err))
		return
	}
	metrics.MessagesProcessed.WithLabelValues(wire.StageGift.String(), "success").Inc()
	finalStage = wire.StageGift
	accepted = true

	thank, _, err := sess.ReceiveSealed(conn)
	if err != nil {
		log.Warn("did not receive THANK", logger.Error(err))
		return
	}
	if thank.Stage != wire.StageThank {
		log.Warn("expected THANK", logger.Stage(thank.Stage))
		return
	}
	metrics.MessagesProcessed.WithLabelValues(wire.StageThank.String(), "success").Inc()
	finalStage = wire.StageThank
}

// drainOne attempts to read one further sealed frame (the requester's
// THANK acknowledging a refusal) with a short deadline, best-effort.
// Its result, success or error, is discarded either way.
func (s *Server) drainOne(conn io.ReadWriter, sess *session.Session) {
	if d, ok := conn.(deadliner); ok {
		d.SetReadDeadline(time.Now().Add(drainDeadline))
		defer d.SetReadDeadline(time.Time{})
	}
	_, _, _ = sess.ReceiveSealed(conn)
}

func (s *Server) recordMessageError(peerID string, stage wire.Stage, err error) {
	var wErr *wisherr.Error
	if e, ok := err.(*wisherr.Error); ok {
		wErr = e
	}
	if wErr == nil {
		metrics.MessagesProcessed.WithLabelValues(stage.String(), "failure").Inc()
		return
	}
	switch wErr.Kind {
	case wisherr.SizeViolation:
		s.violate(peerID, BlockReasonSizeViolations)
		metrics.SizeViolations.WithLabelValues(stage.String()).Inc()
	case wisherr.ReplayDetected:
		metrics.ReplayAttacksDetected.Inc()
	case wisherr.DecodeError:
		s.violate(peerID, BlockReasonMalformedMessages)
	}
	metrics.MessagesProcessed.WithLabelValues(stage.String(), "failure").Inc()
}

// violate records a blocklist violation and refreshes its metrics.
func (s *Server) violate(peerID string, reason BlockReason) {
	s.blocklist.AddViolation(peerID, reason)
	metrics.BlocklistSize.Set(float64(s.blocklist.Size()))
	metrics.Violations.WithLabelValues(blockReasonLabel(reason)).Inc()
}

func blockReasonLabel(r BlockReason) string {
	switch r {
	case BlockReasonSpam:
		return "spam"
	case BlockReasonMalformedMessages:
		return "malformed_messages"
	case BlockReasonSizeViolations:
		return "size_violations"
	case BlockReasonRateLimitViolations:
		return "rate_limit_violations"
	case BlockReasonSuspiciousBehavior:
		return "suspicious_behavior"
	case BlockReasonManualBlock:
		return "manual_block"
	default:
		return "unknown"
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
