// Package relay orchestrates one chat turn: it extracts slots, builds the
// upstream prompt, opens the upstream stream, forwards deltas to the
// caller as they arrive, and finalizes the turn exactly once.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tjfontaine/eventchat/internal/api/ollama"
	"github.com/tjfontaine/eventchat/internal/conversation"
	"github.com/tjfontaine/eventchat/internal/domain"
	"github.com/tjfontaine/eventchat/internal/prompt"
	"github.com/tjfontaine/eventchat/internal/registry"
	"github.com/tjfontaine/eventchat/internal/slots"
	"github.com/tjfontaine/eventchat/internal/tokens"
)

// Upstream is the streaming generation client the relay consumes.
type Upstream interface {
	Generate(ctx context.Context, req *ollama.GenerateRequest) (<-chan ollama.StreamResult, error)
}

// Sink receives the outbound events for one turn. Exactly one of Done or
// Error is called per turn; a cancelled turn gets neither, the stream just
// ends.
type Sink interface {
	// Delta forwards one text fragment. An error means the caller is gone.
	Delta(text string) error

	// Done emits the terminal completion event with the accumulated
	// event details.
	Done(details *domain.EventDetails) error

	// Error emits the terminal error event.
	Error(message string) error
}

// Option configures the relay.
type Option func(*Relay)

// WithRecorder sets the turn recorder.
func WithRecorder(rec *conversation.Recorder) Option {
	return func(r *Relay) {
		r.recorder = rec
	}
}

// WithTokenCounter enables prompt token accounting.
func WithTokenCounter(counter *tokens.Counter) Option {
	return func(r *Relay) {
		r.counter = counter
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// Relay runs turns. One Run per inbound turn; Runs for different turns
// proceed concurrently and share only the registry and the slot memory.
type Relay struct {
	upstream Upstream
	registry *registry.Registry
	memory   *slots.Memory
	recorder *conversation.Recorder
	counter  *tokens.Counter
	logger   *slog.Logger
}

// New creates a relay.
func New(upstream Upstream, reg *registry.Registry, memory *slots.Memory, opts ...Option) *Relay {
	r := &Relay{
		upstream: upstream,
		registry: reg,
		memory:   memory,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one turn to a terminal state.
//
// If the turn fails before the response commits to streaming, Run returns
// the error and the sink is untouched, so the caller can still send a
// plain status response. Once streaming has begun, Run always returns nil
// and the outcome is delivered through the sink: one Done, one Error, or
// nothing at all when the turn was cancelled.
func (r *Relay) Run(ctx context.Context, turn *domain.Turn, sink Sink) *domain.APIError {
	start := time.Now()
	turn.Status = domain.TurnPending
	if turn.SessionID == "" {
		turn.SessionID = turn.ID
	}

	details := r.memory.Merge(turn.SessionID, slots.Extract(turn.Message))

	promptText := prompt.Build(prompt.Input{
		Message:          turn.Message,
		History:          turn.History,
		Details:          details,
		MissingQuestions: slots.RenderQuestions(details),
	})

	var promptTokens int
	if r.counter != nil {
		var estimated bool
		promptTokens, estimated = r.counter.Count(promptText)
		r.logger.Debug("prompt built",
			slog.String("turn_id", turn.ID),
			slog.Int("prompt_tokens", promptTokens),
			slog.Bool("estimated", estimated),
		)
	}

	// The stream context also backs the upstream body reader; cancelling
	// it closes the upstream connection.
	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()

	stream, err := r.upstream.Generate(streamCtx, &ollama.GenerateRequest{
		Model:  turn.Model,
		Prompt: promptText,
	})
	if err != nil {
		apiErr := toAPIError(err)
		turn.Status = domain.TurnFailed
		r.recorder.Record(turn, conversation.Outcome{
			Status:       domain.TurnFailed,
			PromptTokens: promptTokens,
			Details:      details,
			Err:          apiErr,
			Duration:     time.Since(start),
		})
		return apiErr
	}

	// The connection is open: the turn becomes live and cancellable.
	if err := r.registry.Register(turn.ID); err != nil {
		cancelStream()
		return domain.ErrServer(err.Error())
	}
	turn.Status = domain.TurnStreaming

	responseChars := 0
	finalized := false

	// finalize is the single terminal path. Every exit branch goes
	// through it exactly once.
	finalize := func(status domain.TurnStatus, cause error) {
		if finalized {
			return
		}
		finalized = true
		cancelStream()
		r.registry.Revoke(turn.ID)
		turn.Status = status
		r.recorder.Record(turn, conversation.Outcome{
			Status:        status,
			PromptTokens:  promptTokens,
			ResponseChars: responseChars,
			Details:       details,
			Err:           cause,
			Duration:      time.Since(start),
		})
		r.logger.Info("turn finished",
			slog.String("turn_id", turn.ID),
			slog.String("status", string(status)),
			slog.Int("response_chars", responseChars),
			slog.Duration("duration", time.Since(start)),
		)
	}

	for result := range stream {
		// Cancellation is cooperative: it is observed here, at the next
		// chunk boundary, never mid-write.
		if !r.registry.IsLive(turn.ID) {
			finalize(domain.TurnCancelled, nil)
			return nil
		}

		if result.Err != nil {
			_ = sink.Error("error processing upstream stream")
			finalize(domain.TurnFailed, result.Err)
			return nil
		}

		if result.Chunk.Response == "" {
			continue
		}

		if err := sink.Delta(result.Chunk.Response); err != nil {
			// The caller hung up; nobody is listening for a terminal
			// event.
			finalize(domain.TurnCancelled, nil)
			return nil
		}
		responseChars += len(result.Chunk.Response)
	}

	// Channel closed: either upstream end-of-stream or our own context
	// went away with the client.
	if ctx.Err() != nil || !r.registry.IsLive(turn.ID) {
		finalize(domain.TurnCancelled, nil)
		return nil
	}

	_ = sink.Done(details)
	finalize(domain.TurnCompleted, nil)
	return nil
}

// toAPIError coerces any upstream error into the canonical form.
func toAPIError(err error) *domain.APIError {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return domain.ErrServer(err.Error())
}
