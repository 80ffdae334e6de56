// Package conversation records finished turns to the turn store.
package conversation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tjfontaine/eventchat/internal/domain"
	"github.com/tjfontaine/eventchat/internal/storage"
)

// persistTimeout bounds how long a record write may take once the request
// itself is finished.
const persistTimeout = 5 * time.Second

// Outcome summarizes how a turn ended.
type Outcome struct {
	Status        domain.TurnStatus
	PromptTokens  int
	ResponseChars int
	Details       *domain.EventDetails
	Err           error
	Duration      time.Duration
}

// Recorder persists turn outcomes. Recording is best-effort: failures are
// logged and never fail the request path.
type Recorder struct {
	store  storage.TurnStore
	logger *slog.Logger
}

// NewRecorder creates a recorder. A nil store disables recording.
func NewRecorder(store storage.TurnStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Record writes the outcome of a turn. Persistence is decoupled from the
// request lifecycle so a client hanging up cannot drop the record.
func (r *Recorder) Record(turn *domain.Turn, outcome Outcome) {
	if r == nil || r.store == nil {
		return
	}

	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	rec := &storage.TurnRecord{
		ID:            turn.ID,
		SessionID:     turn.SessionID,
		Model:         turn.Model,
		Status:        outcome.Status,
		PromptTokens:  outcome.PromptTokens,
		ResponseChars: outcome.ResponseChars,
		Duration:      outcome.Duration,
		CreatedAt:     turn.CreatedAt,
	}

	if outcome.Details != nil {
		if data, err := json.Marshal(outcome.Details); err == nil {
			rec.EventDetails = string(data)
		}
	}
	if outcome.Err != nil {
		rec.ErrorMessage = outcome.Err.Error()
	}

	if err := r.store.SaveTurn(persistCtx, rec); err != nil {
		r.logger.Error("failed to record turn",
			slog.String("turn_id", turn.ID),
			slog.String("status", string(outcome.Status)),
			slog.String("error", err.Error()),
		)
	}
}
