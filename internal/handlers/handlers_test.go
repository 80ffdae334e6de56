package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tjfontaine/eventchat/internal/api/ollama"
	"github.com/tjfontaine/eventchat/internal/domain"
	"github.com/tjfontaine/eventchat/internal/registry"
	"github.com/tjfontaine/eventchat/internal/relay"
	"github.com/tjfontaine/eventchat/internal/slots"
)

type stubUpstream struct {
	chunks     []string
	connectErr error
	models     []ollama.Model
	modelsErr  error
}

func (s *stubUpstream) Generate(ctx context.Context, req *ollama.GenerateRequest) (<-chan ollama.StreamResult, error) {
	if s.connectErr != nil {
		return nil, s.connectErr
	}
	out := make(chan ollama.StreamResult, len(s.chunks))
	for _, c := range s.chunks {
		out <- ollama.StreamResult{Chunk: &ollama.GenerateChunk{Response: c}}
	}
	close(out)
	return out, nil
}

func (s *stubUpstream) ListModels(ctx context.Context) (*ollama.ModelList, error) {
	if s.modelsErr != nil {
		return nil, s.modelsErr
	}
	return &ollama.ModelList{Models: s.models}, nil
}

func newHandler(upstream *stubUpstream) (*Handler, *registry.Registry) {
	reg := registry.New()
	rel := relay.New(upstream, reg, slots.NewMemory())
	return New(rel, reg, upstream, nil), reg
}

// sseEvents parses the data lines out of an SSE body.
func sseEvents(t *testing.T, body string) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		payload, ok := strings.CutPrefix(block, "data: ")
		if !ok {
			t.Fatalf("unexpected SSE block: %q", block)
		}
		var event map[string]any
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			t.Fatalf("unmarshal SSE payload %q: %v", payload, err)
		}
		events = append(events, event)
	}
	return events
}

func postJSON(path, body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
}

func TestHandleChat_StreamsSSE(t *testing.T) {
	h, reg := newHandler(&stubUpstream{chunks: []string{"How about ", "a picnic?"}})

	rr := httptest.NewRecorder()
	h.HandleChat(rr, postJSON("/api/chat", `{"message":"an outdoor day in March","model":"llama3"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}

	events := sseEvents(t, rr.Body.String())
	if len(events) != 3 {
		t.Fatalf("got %d events, want 2 deltas + done:\n%s", len(events), rr.Body.String())
	}
	if events[0]["response"] != "How about " || events[1]["response"] != "a picnic?" {
		t.Errorf("delta events = %v %v", events[0], events[1])
	}

	final := events[2]
	if final["done"] != true {
		t.Fatalf("final event = %v, want done marker", final)
	}
	details, ok := final["eventDetails"].(map[string]any)
	if !ok {
		t.Fatalf("final event missing eventDetails: %v", final)
	}
	if details["activity"] != "outdoor" {
		t.Errorf("activity = %v, want outdoor", details["activity"])
	}
	if details["dateRange"] != "march" {
		t.Errorf("dateRange = %v, want march", details["dateRange"])
	}
	// Unset fields serialize as explicit nulls.
	if v, present := details["location"]; !present || v != nil {
		t.Errorf("location = %v (present=%v), want explicit null", v, present)
	}

	if reg.Len() != 0 {
		t.Error("registry not empty after completed turn")
	}
}

func TestHandleChat_Validation(t *testing.T) {
	h, _ := newHandler(&stubUpstream{})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing message", `{"model":"llama3"}`, "message is required"},
		{"missing model", `{"message":"hi"}`, "model is required"},
		{"malformed body", `{not json`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.HandleChat(rr, postJSON("/api/chat", tt.body))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			var resp map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal error body: %v", err)
			}
			if !strings.Contains(resp["error"], tt.want) {
				t.Errorf("error = %q, want it to mention %q", resp["error"], tt.want)
			}
		})
	}
}

func TestHandleChat_UpstreamUnavailable(t *testing.T) {
	h, _ := newHandler(&stubUpstream{
		connectErr: domain.ErrUnavailable("upstream model service is not running, start it and retry"),
	})

	rr := httptest.NewRecorder()
	h.HandleChat(rr, postJSON("/api/chat", `{"message":"hi","model":"llama3"}`))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json for a pre-stream failure", ct)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if !strings.Contains(resp["error"], "not running") {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestHandleCancel(t *testing.T) {
	h, reg := newHandler(&stubUpstream{})

	if err := reg.Register("turn-1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	rr := httptest.NewRecorder()
	h.HandleCancel(rr, postJSON("/api/cancel", `{"requestId":"turn-1"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if !resp["success"] {
		t.Errorf("body = %s, want success true", rr.Body.String())
	}
	if reg.IsLive("turn-1") {
		t.Error("turn still live after cancel")
	}
}

func TestHandleCancel_NotFound(t *testing.T) {
	h, _ := newHandler(&stubUpstream{})

	rr := httptest.NewRecorder()
	h.HandleCancel(rr, postJSON("/api/cancel", `{"requestId":"nope"}`))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "request not found") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestHandleCancel_MissingID(t *testing.T) {
	h, _ := newHandler(&stubUpstream{})

	rr := httptest.NewRecorder()
	h.HandleCancel(rr, postJSON("/api/cancel", `{}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestHandleModels(t *testing.T) {
	h, _ := newHandler(&stubUpstream{models: []ollama.Model{{Name: "llama3"}, {Name: "mistral"}}})

	rr := httptest.NewRecorder()
	h.HandleModels(rr, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp map[string][]ollama.Model
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if len(resp["models"]) != 2 || resp["models"][0].Name != "llama3" {
		t.Errorf("models = %v", resp["models"])
	}
}

func TestHandleModels_Unavailable(t *testing.T) {
	h, _ := newHandler(&stubUpstream{
		modelsErr: domain.ErrUnavailable("upstream model service is not running, start it and retry"),
	})

	rr := httptest.NewRecorder()
	h.HandleModels(rr, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	h, _ := newHandler(&stubUpstream{})

	rr := httptest.NewRecorder()
	h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}
