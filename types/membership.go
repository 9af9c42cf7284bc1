package types

import (
	"context"
	"time"
)

// MembershipHandle is one worker thread's session in the consumer group.
//
// A handle is created when the thread joins the group and is owned exclusively
// by that thread. It is torn down either passively (Close, the member record
// expires at the session timeout) or actively (RequestDeparture, the
// coordination service removes the member right away).
type MembershipHandle interface {
	// MemberID returns the member identity assigned at join time.
	MemberID() string

	// RequestDeparture asks the coordination service to remove this member.
	//
	// Fire-and-forget: never blocks. The session keep-alive stops immediately.
	// The returned channel yields exactly one value (nil once the member is gone)
	// and is then closed. Repeated calls return the same channel and never issue
	// a second request.
	RequestDeparture() <-chan error

	// Close releases the session without departing.
	Close(ctx context.Context) error
}

// MemberRecord is the value a live member publishes in the membership store.
type MemberRecord struct {
	MemberID        string    `json:"memberId"`
	GroupID         string    `json:"groupId"`
	GroupInstanceID string    `json:"groupInstanceId,omitempty"`
	ClientID        string    `json:"clientId"`
	ThreadID        int       `json:"threadId"`
	Host            string    `json:"host,omitempty"`
	JoinedAt        time.Time `json:"joinedAt"`
	HeartbeatAt     time.Time `json:"heartbeatAt"`
}
