package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tjfontaine/eventchat/internal/domain"
)

// sseSink streams relay output as server-sent events. Headers are
// written lazily on the first event, so a turn that fails before any
// output can still get a plain JSON error response.
type sseSink struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	committed bool
}

func newSSESink(w http.ResponseWriter, flusher http.Flusher) *sseSink {
	return &sseSink{w: w, flusher: flusher}
}

type deltaEvent struct {
	Response string `json:"response"`
}

type doneEvent struct {
	Done         bool                 `json:"done"`
	EventDetails *domain.EventDetails `json:"eventDetails"`
}

type errorEvent struct {
	Error string `json:"error"`
}

func (s *sseSink) Delta(text string) error {
	return s.send(deltaEvent{Response: text})
}

func (s *sseSink) Done(details *domain.EventDetails) error {
	return s.send(doneEvent{Done: true, EventDetails: details})
}

func (s *sseSink) Error(message string) error {
	return s.send(errorEvent{Error: message})
}

func (s *sseSink) send(v any) error {
	if !s.committed {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.committed = true
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
