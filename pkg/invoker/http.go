// Package invoker is the HTTP transport collaborator behind endpoint stages.
package invoker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apichain/apichain/pkg/models"
	"github.com/apichain/apichain/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

// HTTP performs endpoint invocations over net/http. Timeouts are a property
// of this transport, not of the engine; a timed-out call surfaces as a
// TransportError and is retry-eligible like any network failure.
type HTTP struct {
	client *http.Client
}

// NewHTTP builds an invoker with the given per-call timeout (0 means the
// default of 30s).
func NewHTTP(timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTP{client: &http.Client{Timeout: timeout}}
}

// Invoke performs one HTTP exchange. Any completed exchange is returned as a
// result regardless of status; only network-level failures are errors.
func (h *HTTP) Invoke(ctx context.Context, inv protocol.Invocation) (*protocol.InvocationResult, error) {
	target, err := buildURL(inv.URL, inv.Query)
	if err != nil {
		return nil, models.NewConfigurationError("invalid URL %q: %v", inv.URL, err)
	}

	var body io.Reader
	if inv.Body != "" {
		body = strings.NewReader(inv.Body)
	}

	req, err := http.NewRequestWithContext(ctx, inv.Method, target, body)
	if err != nil {
		return nil, models.NewConfigurationError("cannot build request: %v", err)
	}

	for key, value := range inv.Headers {
		req.Header.Set(key, value)
	}

	if inv.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, &models.TransportError{Err: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	return &protocol.InvocationResult{
		Status:  resp.StatusCode,
		Body:    string(respBody),
		Headers: resp.Header,
	}, nil
}

// buildURL appends the query parameters onto the target URL.
func buildURL(raw string, query map[string]string) (string, error) {
	if len(query) == 0 {
		return raw, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	values := parsed.Query()
	for key, value := range query {
		values.Set(key, value)
	}

	parsed.RawQuery = values.Encode()

	return parsed.String(), nil
}
