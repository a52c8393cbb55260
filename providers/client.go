package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// StatusError kennzeichnet eine Antwort mit nicht-2xx-Status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed: status %d", e.StatusCode)
}

// Retryable gibt zurück, ob der Status eine Wiederholung rechtfertigt.
// 5xx und Rate-Limit (429) gelten als transient, alle anderen 4xx nicht.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// TransportError kennzeichnet Verbindungs- oder Timeout-Fehler. Diese sind
// immer transient und dürfen wiederholt werden.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsRetryable klassifiziert einen Fehler für die Retry-Policy.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}

// Client kapselt den HTTP-Client, den ein Extractor für seine Seitenabrufe hält.
type Client struct {
	HTTP   *http.Client
	Logger *zap.Logger
}

// NewClient erstellt einen Client mit festem Per-Call-Timeout.
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		HTTP:   &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

// GetJSON führt einen GET-Aufruf aus und dekodiert die JSON-Antwort nach out.
// Verbindungsfehler kommen als *TransportError zurück, nicht-2xx-Antworten als
// *StatusError; Dekodierfehler sind nicht transient.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	reqURL := rawURL
	if len(params) > 0 {
		reqURL = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response failed: %w", err)
	}
	return nil
}
