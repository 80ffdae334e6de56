// Package storage defines the turn-record store interface. Records are an
// observability audit of finished turns; conversation history itself
// always arrives from the client and is never replayed from storage.
package storage

import (
	"context"
	"time"

	"github.com/tjfontaine/eventchat/internal/domain"
)

// TurnRecord is the stored summary of one finished turn.
type TurnRecord struct {
	ID           string
	SessionID    string
	Model        string
	Status       domain.TurnStatus
	PromptTokens int
	// ResponseChars is the length of the relayed assistant output.
	ResponseChars int
	// EventDetails is the final accumulated slot record, serialized JSON.
	EventDetails string
	ErrorMessage string
	Duration     time.Duration
	CreatedAt    time.Time
}

// ListOptions filters and paginates turn listing.
type ListOptions struct {
	SessionID string
	Status    domain.TurnStatus
	Limit     int
	Offset    int
}

// TurnStore persists turn records.
type TurnStore interface {
	SaveTurn(ctx context.Context, rec *TurnRecord) error
	GetTurn(ctx context.Context, id string) (*TurnRecord, error)
	ListTurns(ctx context.Context, opts ListOptions) ([]*TurnRecord, error)
	Close() error
}
