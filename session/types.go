package session

import "time"

// Role identifies which end of a handshake this Session represents.
type Role int

const (
	// Requester is the side that sends KNOCK and ultimately receives GIFT.
	Requester Role = iota
	// Responder is the side that receives KNOCK and ultimately sends GIFT.
	Responder
)

func (r Role) String() string {
	if r == Requester {
		return "requester"
	}
	return "responder"
}

// Status summarizes a Manager's tracked sessions, surfaced for metrics
// and operational visibility.
type Status struct {
	TotalSessions  int `json:"totalSessions"`
	ActiveSessions int `json:"activeSessions"`
}

// idleTimeout is how long a tracked session may sit without activity
// before the Manager's background sweep reaps it. A session that
// never reaches THANK (e.g. a stalled peer) would otherwise leak.
const idleTimeout = 2 * time.Minute
