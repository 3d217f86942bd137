package github

import (
	"fmt"
	"net/http"
	"time"

	gh "github.com/google/go-github/v66/github"
)

// bearerTransport stamps every request with a credential from a TokenSource.
type bearerTransport struct {
	source TokenSource
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token(req.Context())
	if err != nil {
		return nil, fmt.Errorf("resolve GitHub credential: %w", err)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

// NewClient builds a go-github client authenticated by source.
// Every request is bounded by timeout.
func NewClient(source TokenSource, timeout time.Duration) *gh.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &bearerTransport{source: source},
	}
	return gh.NewClient(httpClient)
}
