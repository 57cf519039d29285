package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// HTTPInvoker reaches a backend over plain HTTP: the payload is POSTed
// as-is and the response body returned as-is. It exists so interactive
// clients have a ready-made adapter; the core only ever sees the
// Invoker interface.
type HTTPInvoker struct {
	endpoint string
	client   *http.Client
	headers  map[string]string
}

// HTTPOption configures an HTTPInvoker.
type HTTPOption func(*HTTPInvoker)

// WithHeader adds a header to every request (e.g. authorization).
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTPInvoker) { h.headers[key] = value }
}

// NewHTTPInvoker creates an invoker POSTing to endpoint. A nil client
// uses http.DefaultClient; set a client timeout there if the backend
// should be bounded per attempt.
func NewHTTPInvoker(endpoint string, client *http.Client, opts ...HTTPOption) *HTTPInvoker {
	if client == nil {
		client = http.DefaultClient
	}
	h := &HTTPInvoker{
		endpoint: endpoint,
		client:   client,
		headers:  map[string]string{"Content-Type": "application/json"},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Invoke implements Invoker. Failures are classified into the invoke
// taxonomy: deadlines and net timeouts become KindTimeout, other
// transport errors KindNetwork, and non-2xx statuses KindServer.
func (h *HTTPInvoker) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, NewError(KindNetwork, err)
	}
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, NewError(classifyTransport(err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(classifyTransport(err), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewError(KindServer,
			fmt.Errorf("backend returned %s: %s", resp.Status, truncate(body, 256)))
	}

	return body, nil
}

func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
