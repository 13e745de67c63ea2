package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenSource fetches a fresh access token.
type TokenSource func(ctx context.Context) (*oauth2.Token, error)

// ClientCredentials returns a TokenSource for the OAuth2 client credentials
// grant with credentials sent as form parameters.
func ClientCredentials(tokenURL, clientID, clientSecret string) TokenSource {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return func(ctx context.Context) (*oauth2.Token, error) { return cfg.Token(ctx) }
}

// TokenCache holds one access token and refreshes it on expiry. Concurrent
// callers share a single refresh.
type TokenCache struct {
	mu     sync.Mutex
	fetch  TokenSource
	tok    *oauth2.Token
	leeway time.Duration
	now    func() time.Time
}

func NewTokenCache(fetch TokenSource) *TokenCache {
	return &TokenCache{fetch: fetch, leeway: time.Minute, now: time.Now}
}

func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.tok.AccessToken, nil
	}
	tok, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	if tok == nil || tok.AccessToken == "" {
		return "", errors.New("catalog: empty access token")
	}
	c.tok = tok
	return tok.AccessToken, nil
}

// Invalidate drops the cached token, e.g. after the API answered 401.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.tok = nil
	c.mu.Unlock()
}

func (c *TokenCache) valid() bool {
	if c.tok == nil || c.tok.AccessToken == "" {
		return false
	}
	return c.tok.Expiry.IsZero() || c.now().Add(c.leeway).Before(c.tok.Expiry)
}
