// Package domain holds the core types shared across the eventchat backend.
package domain

import "time"

// Message is a single entry in a conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnStatus is the lifecycle state of a chat turn.
type TurnStatus string

const (
	// TurnPending means the turn exists but the upstream connection has
	// not been opened yet.
	TurnPending TurnStatus = "pending"

	// TurnStreaming means upstream output is being relayed to the caller.
	TurnStreaming TurnStatus = "streaming"

	// TurnCompleted means upstream signaled end-of-stream and all output
	// was relayed.
	TurnCompleted TurnStatus = "completed"

	// TurnCancelled means the turn was revoked before completion.
	TurnCancelled TurnStatus = "cancelled"

	// TurnFailed means the turn hit an unrecoverable error.
	TurnFailed TurnStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TurnStatus) Terminal() bool {
	switch s {
	case TurnCompleted, TurnCancelled, TurnFailed:
		return true
	}
	return false
}

// Turn is one user-initiated request/response exchange.
type Turn struct {
	// ID is opaque and unique per turn; uniqueness is the only required
	// property, ordering is not.
	ID string

	// SessionID keys the slot memory. Defaults to ID when the caller
	// doesn't supply one.
	SessionID string

	Model   string
	Message string
	History []Message

	Status    TurnStatus
	CreatedAt time.Time
}

// EventDetails is the accumulated slot-filling record for a conversation.
// Fields stay nil until observed; a set field may be overwritten but is
// never reverted to nil by a later merge.
type EventDetails struct {
	Activity  *string `json:"activity"`
	Guests    *string `json:"guests"`
	DateRange *string `json:"dateRange"`
	Hobbies   *string `json:"hobbies"`
	Location  *string `json:"location"`
	UserBase  *string `json:"userBase"`
}

// Merge overlays the non-nil fields of other onto d and returns d.
func (d *EventDetails) Merge(other *EventDetails) *EventDetails {
	if other == nil {
		return d
	}
	if other.Activity != nil {
		d.Activity = other.Activity
	}
	if other.Guests != nil {
		d.Guests = other.Guests
	}
	if other.DateRange != nil {
		d.DateRange = other.DateRange
	}
	if other.Hobbies != nil {
		d.Hobbies = other.Hobbies
	}
	if other.Location != nil {
		d.Location = other.Location
	}
	if other.UserBase != nil {
		d.UserBase = other.UserBase
	}
	return d
}

// Clone returns a copy of d that shares no pointers with the caller's view
// of the accumulator.
func (d *EventDetails) Clone() *EventDetails {
	out := &EventDetails{}
	if d != nil {
		out.Merge(d)
	}
	return out
}
