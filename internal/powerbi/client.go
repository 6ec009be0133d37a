// Package powerbi talks to the Power BI service endpoints the analyzers
// depend on: the admin listing of widely shared artifacts, the metadata
// access grant, and the explore endpoints that serve conceptual schemas and
// exploration documents.
package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/nokodsec/pbanalyzer/pkg/config"
)

// Client is a rate-limited HTTP client for the Power BI service. One client
// is shared by all scan workers; the limiter spaces requests out regardless
// of worker count.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter

	// scheme is the scheme used for cluster-relative endpoints. Always
	// https against the real service.
	scheme string
}

// New builds a client from runtime configuration.
func New(cfg *config.Config) *Client {
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 1
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		token:      cfg.Token,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		scheme:     "https",
	}
}

// clusterURL builds an absolute URL on the tenant's backend cluster.
func (c *Client) clusterURL(cluster, path string) string {
	return c.scheme + "://" + cluster + path
}

// doJSON performs one rate-limited request and decodes the JSON response
// into out. A 429 response maps to RateLimitError, any other non-2xx to
// StatusError. Numbers decode as json.Number so large numeric ids survive a
// round trip through the dynamic documents.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, body any, headers map[string]string, out any) error {
	resp, err := c.do(ctx, method, rawURL, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return eris.Wrapf(err, "failed to decode response from %s", rawURL)
	}
	return nil
}

// fetchText performs one rate-limited GET and returns the raw response body.
// Used for the embed page, which is HTML rather than JSON.
func (c *Client) fetchText(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrapf(err, "failed to read response from %s", rawURL)
	}
	return string(data), nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body any, headers map[string]string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter interrupted")
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, eris.Wrap(err, "failed to encode request body")
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, payload)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to build request for %s", rawURL)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	slog.Debug("sending request", "method", method, "url", rawURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "request to %s failed", rawURL)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	return resp, nil
}

// parseRetryAfter interprets a Retry-After header as either a second count
// or an HTTP date. Unparseable or negative values yield zero.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}

	return 0
}

// idString renders a raw JSON id value, numeric or quoted, as a plain string
// suitable for URL paths.
func idString(raw json.RawMessage) string {
	return strings.Trim(strings.TrimSpace(string(raw)), `"`)
}
