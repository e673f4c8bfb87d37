package source

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
	"github.com/matzehuels/sitegraph/pkg/httputil"
	"github.com/matzehuels/sitegraph/pkg/observability"
)

// HTTPSource fetches variants from baseURL/<file name>.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
	policy httputil.Policy
}

// NewHTTPSource parses baseURL. A nil client uses a client with a 30
// second timeout; a zero policy uses [httputil.DefaultPolicy].
func NewHTTPSource(baseURL string, client *http.Client, policy httputil.Policy) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidConfig, "invalid source url %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if policy.Attempts == 0 {
		policy = httputil.DefaultPolicy()
	}
	return &HTTPSource{base: u, client: client, policy: policy}, nil
}

func (s *HTTPSource) Name() string { return s.base.String() }

// Fetch GETs the variant's document, retrying network errors and 5xx
// responses. Any other non-200 status fails immediately.
func (s *HTTPSource) Fetch(ctx context.Context, v Variant) ([]byte, error) {
	hooks := observability.Load()
	hooks.OnFetchStart(ctx, s.Name(), v.String())
	start := time.Now()

	target := s.base.JoinPath(v.FileName()).String()
	data, err := httputil.Fetch(ctx, s.client, target, s.policy)
	if err != nil {
		err = classify(err, target)
	}
	hooks.OnFetchComplete(ctx, s.Name(), v.String(), len(data), time.Since(start), err)
	return data, err
}

func classify(err error, target string) error {
	var serr *httputil.StatusError
	switch {
	case errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound:
		return apperrors.Wrap(apperrors.ErrCodeNotFound, err, "fetch %s", target)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(apperrors.ErrCodeTimeout, err, "fetch %s", target)
	case errors.Is(err, context.Canceled):
		return err
	}
	return apperrors.Wrap(apperrors.ErrCodeNetwork, err, "fetch %s", target)
}

var _ Source = (*HTTPSource)(nil)
