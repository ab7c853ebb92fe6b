package shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mineralsss/tiktoker/telemetry"
)

// ServiceError reports a failed upstream shortening call. Callers decide
// whether to retry or degrade to the raw direct URL.
type ServiceError struct {
	Status string
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("shortening service: %v", e.Err)
	}
	return fmt.Sprintf("shortening service: %s", e.Status)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Client talks to the upstream URL-shortening API.
type Client struct {
	BaseURL string
	// Token is sent verbatim in the Authorization header; it comes from
	// process configuration, never hard-coded.
	Token      string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Shorten submits a URL and returns the upstream-assigned slug and
// shortened URL. All failures are *ServiceError.
func (c *Client) Shorten(ctx context.Context, rawURL string) (slug, shortened string, err error) {
	telemetry.Inc(telemetry.ShortenCalls)

	payload, err := json.Marshal(map[string]string{"url": rawURL})
	if err != nil {
		return "", "", &ServiceError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+"/links", bytes.NewReader(payload))
	if err != nil {
		return "", "", &ServiceError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.Token)

	resp, err := c.http().Do(req)
	if err != nil {
		telemetry.Inc(telemetry.ShortenFailures)
		return "", "", &ServiceError{Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		telemetry.Inc(telemetry.ShortenFailures)
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", "", &ServiceError{Status: fmt.Sprintf("%s: %s", resp.Status, string(b))}
	}

	var body struct {
		Slug      string `json:"slug"`
		Shortened string `json:"shortened"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		telemetry.Inc(telemetry.ShortenFailures)
		return "", "", &ServiceError{Err: err}
	}
	if body.Slug == "" || body.Shortened == "" {
		telemetry.Inc(telemetry.ShortenFailures)
		return "", "", &ServiceError{Status: "empty slug in response"}
	}
	return body.Slug, body.Shortened, nil
}
