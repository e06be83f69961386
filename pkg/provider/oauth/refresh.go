// Package oauth wraps an oauth2.TokenSource so a 401 from the remote
// API triggers one retry through Client.Do. No provider in this
// repository uses the wrapper; Google Workspace builds its client with
// oauth2.NewClient directly, so its 401s surface as errors.
package oauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// Client pairs an oauth2-backed http.Client with the token source it
// draws from; the retry on 401 is done by Do, not by the RoundTripper.
type Client struct {
	HTTP   *http.Client
	source oauth2.TokenSource
}

// NewClient builds an oauth2-backed HTTP client from a static refresh
// token config, following the same oauth2.Config/TokenSource shape used
// throughout the golang.org/x/oauth2 ecosystem.
func NewClient(cfg *oauth2.Config, token *oauth2.Token) *Client {
	src := cfg.TokenSource(context.Background(), token)
	return &Client{
		HTTP:   oauth2.NewClient(context.Background(), &refreshOn401{source: src}),
		source: src,
	}
}

// refreshOn401 is an oauth2.TokenSource that always returns the
// underlying source's current token; the retry-on-401 behavior lives in
// Do below because oauth2.Transport itself has no hook for response
// codes.
type refreshOn401 struct {
	source oauth2.TokenSource
}

func (r *refreshOn401) Token() (*oauth2.Token, error) {
	return r.source.Token()
}

// Do issues req, and on a 401 response forces one token refresh (by
// invalidating the cached token and re-requesting it) before retrying
// exactly once.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	resp.Body.Close()

	if _, tokErr := c.source.Token(); tokErr != nil {
		return nil, tokErr
	}
	return c.HTTP.Do(req.Clone(req.Context()))
}
