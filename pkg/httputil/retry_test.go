package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestRetryableError(t *testing.T) {
	// Retryable(nil) returns nil
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(errTransient)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if !errors.Is(err, errTransient) {
		t.Error("wrapped error should unwrap to its cause")
	}
	if err.Error() != errTransient.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if IsRetryable(errTransient) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	errFatal := errors.New("fatal")

	tests := []struct {
		name      string
		fail      int
		err       error
		wantCalls int
		wantErr   error
	}{
		{name: "FirstTry", fail: 0, wantCalls: 1},
		{name: "NonRetryable", fail: 5, err: errFatal, wantCalls: 1, wantErr: errFatal},
		{name: "RecoverAfterOne", fail: 1, err: Retryable(errTransient), wantCalls: 2},
		{name: "Exhausted", fail: 5, err: Retryable(errTransient), wantCalls: 3, wantErr: errTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(ctx, 3, time.Millisecond, func() error {
				calls++
				if calls <= tt.fail {
					return tt.err
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("Retry() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Retry() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(errTransient)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}

func TestFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`{"nodes":[]}`))
		case "/flaky":
			if hits.Add(1) < 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("recovered"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	policy := Policy{Attempts: 3, Delay: time.Millisecond}

	body, err := Fetch(ctx, srv.Client(), srv.URL+"/ok", policy)
	if err != nil || string(body) != `{"nodes":[]}` {
		t.Errorf("Fetch(/ok) = %q, %v", body, err)
	}

	body, err = Fetch(ctx, srv.Client(), srv.URL+"/flaky", policy)
	if err != nil || string(body) != "recovered" {
		t.Errorf("Fetch(/flaky) = %q, %v", body, err)
	}

	_, err = Fetch(ctx, srv.Client(), srv.URL+"/missing", policy)
	var serr *StatusError
	if !errors.As(err, &serr) || serr.StatusCode != http.StatusNotFound {
		t.Errorf("Fetch(/missing) = %v, want 404 StatusError", err)
	}
	if IsRetryable(err) {
		t.Error("404 should not be retryable")
	}
}
