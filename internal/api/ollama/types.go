// Package ollama provides a hand-rolled HTTP client for an Ollama-style
// generation API: JSON request in, newline-delimited JSON fragments out.
package ollama

import "encoding/json"

// GenerateRequest is the body for POST /api/generate.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// GenerateChunk is one NDJSON fragment of a streaming generate response.
// Fragments optionally carry a text delta in Response; the final fragment
// sets Done, but end-of-stream proper is the transport closing.
type GenerateChunk struct {
	Model    string `json:"model,omitempty"`
	Response string `json:"response"`
	Done     bool   `json:"done,omitempty"`
}

// Model describes one locally available model from GET /api/tags.
type Model struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

// ModelList is the response of GET /api/tags.
type ModelList struct {
	Models []Model `json:"models"`
}

// errorBody is the JSON error envelope the upstream uses for non-2xx
// responses. Some deployments return a bare string instead.
type errorBody struct {
	Error string `json:"error"`
}

// parseErrorBody extracts the upstream's error message from a non-2xx
// body, tolerating both the JSON envelope and plain text. Only the message
// string survives, which also strips anything the upstream may have nested
// into the payload.
func parseErrorBody(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		return eb.Error
	}
	return string(body)
}
