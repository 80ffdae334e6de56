package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/tjfontaine/eventchat/internal/domain"
)

const (
	defaultBaseURL = "http://localhost:11434"

	// DefaultHeaderTimeout bounds the initial connection attempt, not the
	// stream itself. Large models can take a long time to load.
	DefaultHeaderTimeout = 120 * time.Second
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client. When set, the header timeout
// option is ignored; the caller owns transport behavior.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeaderTimeout bounds how long the initial connection attempt may
// take before the turn fails with a timeout error.
func WithHeaderTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.headerTimeout = timeout
	}
}

// WithLogger sets the logger used for skipped malformed fragments.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client is an HTTP client for an Ollama-style generation API.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	headerTimeout time.Duration
	logger        *slog.Logger
}

// NewClient creates a new client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       defaultBaseURL,
		headerTimeout: DefaultHeaderTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		// No overall client timeout: that would kill long streams. The
		// header timeout only bounds the wait for the response to start.
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				ResponseHeaderTimeout: c.headerTimeout,
			},
		}
	}

	return c
}

// StreamResult wraps a chunk or error from streaming.
type StreamResult struct {
	Chunk *GenerateChunk
	Err   error
}

// Generate opens a streaming generation request and returns a channel of
// fragments. The returned error, if any, is a *domain.APIError describing
// why the connection could not be opened; once the channel is returned,
// failures arrive in-band as StreamResult.Err.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (<-chan StreamResult, error) {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("failed to marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyStatusError(resp.StatusCode, respBody, req.Model)
	}

	out := make(chan StreamResult)
	go c.streamReader(ctx, resp.Body, out)
	return out, nil
}

// streamReader decodes NDJSON fragments from the response body and sends
// them on out. Malformed fragments are logged and skipped; they never kill
// the stream. The channel is closed when the upstream closes the
// connection.
func (c *Client) streamReader(ctx context.Context, body io.ReadCloser, out chan<- StreamResult) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	// Increase buffer size for potentially large fragments
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk GenerateChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			c.logger.Warn("skipping malformed stream fragment",
				slog.String("error", err.Error()),
			)
			continue
		}

		select {
		case out <- StreamResult{Chunk: &chunk}:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		// A canceled context is the consumer hanging up, not an upstream
		// transport failure.
		if ctx.Err() != nil {
			return
		}
		select {
		case out <- StreamResult{Err: fmt.Errorf("stream read error: %w", err)}:
		case <-ctx.Done():
		}
	}
}

// ListModels retrieves the locally available models.
func (c *Client) ListModels(ctx context.Context) (*ModelList, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("failed to create request: %v", err))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatusError(resp.StatusCode, respBody, "")
	}

	var result ModelList
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("failed to unmarshal response: %v", err))
	}

	return &result, nil
}

// classifyTransportError maps connection-level failures onto the canonical
// error taxonomy: refused connections and timeouts are distinct,
// user-visible conditions.
func classifyTransportError(err error) *domain.APIError {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return domain.ErrUnavailable("upstream model service is not running, start it and retry")
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.ErrTimeout("request timed out: the model is taking too long to respond")
	}

	return domain.ErrServer(fmt.Sprintf("upstream request failed: %v", err))
}

// classifyStatusError maps non-2xx upstream responses onto the canonical
// taxonomy. The body is reduced to its message string before it is ever
// surfaced to a caller.
func classifyStatusError(status int, body []byte, model string) *domain.APIError {
	if status == http.StatusNotFound && model != "" {
		return domain.ErrModelNotFound(model)
	}

	msg := parseErrorBody(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return domain.ErrServer(fmt.Sprintf("upstream error: %s", msg)).WithStatusCode(http.StatusInternalServerError)
}
