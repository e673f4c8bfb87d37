package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/sitegraph/pkg/buildinfo"
	"github.com/matzehuels/sitegraph/pkg/observability"
)

// maxBody bounds how much of a response Fetch reads.
const maxBody = 256 << 20

// Policy controls retries for [Fetch].
type Policy struct {
	Attempts int           `toml:"attempts"`
	Delay    time.Duration `toml:"delay"`
}

// DefaultPolicy returns 3 attempts starting at a 1 second delay.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Delay: time.Second}
}

// StatusError is returned for a non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Fetch GETs rawURL and returns the response body, retrying transient
// failures according to p. A nil client uses http.DefaultClient.
func Fetch(ctx context.Context, client *http.Client, rawURL string, p Policy) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	var body []byte
	err = Retry(ctx, p.Attempts, p.Delay, func() error {
		var err error
		body, err = fetchOnce(ctx, client, u)
		return err
	})
	return body, err
}

func fetchOnce(ctx context.Context, client *http.Client, u *url.URL) ([]byte, error) {
	hooks := observability.HTTP()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set("Accept", "application/json")

	hooks.OnRequest(ctx, req.Method, u.Host, u.Path)
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, u.Host, u.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Retryable(err)
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, u.Host, u.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		serr := &StatusError{URL: u.String(), StatusCode: resp.StatusCode}
		if serr.Temporary() {
			return nil, Retryable(serr)
		}
		return nil, serr
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, Retryable(fmt.Errorf("read body: %w", err))
	}
	return data, nil
}
