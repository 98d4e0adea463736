package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"syncline/internal/model"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	contentTypeHeader    = "Content-Type"
	contentTypeJSON      = "application/json"
)

// RemoteResult is the outcome of one accepted remote call.
type RemoteResult struct {
	Entity         json.RawMessage
	AlreadyApplied bool
}

// TransientError marks a failure worth retrying: network errors, timeouts,
// 5xx and 429 responses.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient remote failure: %v", e.Err)
	}

	return fmt.Sprintf("transient remote failure: status %d", e.StatusCode)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a request the remote rejected as invalid. Retrying
// without intervention will never succeed.
type PermanentError struct {
	StatusCode int
	Body       string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent remote failure: status %d: %s", e.StatusCode, e.Body)
}

// RemoteClient issues one HTTP-style call per queue record.
type RemoteClient interface {
	Apply(ctx context.Context, rec model.QueueRecord) (*RemoteResult, error)
}

type RemoteConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// HTTPRemote talks to the sync gateway's mutation API. Every request carries
// an idempotency key derived from the record id, so a redelivery after a
// lost acknowledgment has no duplicate effect.
type HTTPRemote struct {
	cfg    RemoteConfig
	client *http.Client
}

func NewHTTPRemote(cfg RemoteConfig) *HTTPRemote {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &HTTPRemote{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (r *HTTPRemote) Apply(ctx context.Context, rec model.QueueRecord) (*RemoteResult, error) {
	verb, err := httpVerb(rec.Method)
	if err != nil {
		return nil, &PermanentError{StatusCode: 0, Body: err.Error()}
	}

	url := strings.TrimSuffix(r.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(rec.Endpoint, "/")

	var body io.Reader
	if len(rec.Payload) > 0 {
		body = bytes.NewReader(rec.Payload)
	}

	req, err := http.NewRequestWithContext(ctx, verb, url, body)
	if err != nil {
		return nil, fmt.Errorf("build remote request: %w", err)
	}

	req.Header.Set(contentTypeHeader, contentTypeJSON)

	for key, value := range rec.Headers {
		req.Header.Set(key, value)
	}

	req.Header.Set(idempotencyKeyHeader, rec.ID.String())

	if r.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.AuthToken)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return decodeResult(data), nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, &TransientError{StatusCode: resp.StatusCode}
	default:
		return nil, &PermanentError{StatusCode: resp.StatusCode, Body: string(data)}
	}
}

func decodeResult(data []byte) *RemoteResult {
	var mutation model.MutationResponse
	if err := json.Unmarshal(data, &mutation); err == nil && mutation.ID != "" {
		return &RemoteResult{
			Entity:         mutation.Entity,
			AlreadyApplied: !mutation.Applied,
		}
	}

	// Remote APIs outside the gateway contract return the entity directly.
	return &RemoteResult{Entity: data}
}

func httpVerb(method model.Method) (string, error) {
	switch method {
	case model.MethodCreate:
		return http.MethodPost, nil
	case model.MethodUpdate:
		return http.MethodPut, nil
	case model.MethodDelete:
		return http.MethodDelete, nil
	default:
		return "", fmt.Errorf("unknown method %q", method)
	}
}
