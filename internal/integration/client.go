// Package integration holds the HTTP clients for the collaborating services.
// Every request is rate limited per endpoint, carries the service token and
// the trace context, and forwards the outbox message id as Idempotency-Key
// when it is delivered by the dispatcher.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"vedtak/internal/config"
	"vedtak/internal/outbox"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"
)

const maxErrorBody = 2048

// StatusError is a non-2xx answer from a collaborator
type StatusError struct {
	Service string
	Method  string
	Path    string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s %s returned %d: %s", e.Service, e.Method, e.Path, e.Status, e.Body)
}

// Permanent reports whether retrying the same request cannot succeed
func (e *StatusError) Permanent() bool {
	switch e.Status {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return false
	}
	return e.Status >= 400 && e.Status < 500
}

type client struct {
	service string
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

func newClient(service string, endpoint config.ServiceEndpoint, token string, httpClient *http.Client) *client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: endpoint.Timeout}
	}
	limit := rate.Inf
	if endpoint.RPS > 0 {
		limit = rate.Limit(endpoint.RPS)
	}
	burst := endpoint.Burst
	if burst < 1 {
		burst = 1
	}
	return &client{
		service: service,
		baseURL: endpoint.BaseURL,
		token:   token,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// do sends in as JSON and decodes the answer into out. A 404 is reported
// as found == false without an error.
func (c *client) do(ctx context.Context, method, path string, in, out any) (found bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return false, fmt.Errorf("failed to marshal %s request: %w", c.service, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return false, fmt.Errorf("failed to build %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id, ok := outbox.MessageID(ctx); ok {
		req.Header.Set("Idempotency-Key", id.String())
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s request failed: %w", c.service, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			slog.Error("Failed to close response body", "service", c.service, "error", err)
		}
	}(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return false, &StatusError{
			Service: c.service,
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Body:    string(bytes.TrimSpace(raw)),
		}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return true, fmt.Errorf("failed to decode %s response: %w", c.service, err)
		}
	}
	return true, nil
}

// mustExist turns a 404 into an error for calls where absence is not an answer
func (c *client) mustExist(found bool, err error, method, path string) error {
	if err != nil || found {
		return err
	}
	return &StatusError{Service: c.service, Method: method, Path: path, Status: http.StatusNotFound, Body: "not found"}
}
