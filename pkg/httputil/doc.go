// Package httputil provides HTTP helpers for fetching graph documents.
//
// # Retry
//
// [Retry] re-runs an operation with exponential backoff when it fails with a
// [RetryableError]. [Fetch] uses it for GET requests, treating these as
// transient:
//
//   - Network errors
//   - 5xx server errors
//   - 429 rate limit responses
//
// Any other non-200 status fails at once with a [StatusError]:
//
//	body, err := httputil.Fetch(ctx, http.DefaultClient, url, httputil.DefaultPolicy())
//
// # Configuration
//
// Default settings:
//
//   - Attempts: 3
//   - Initial backoff: 1 second, doubling after each failure
package httputil
