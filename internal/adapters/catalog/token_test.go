package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"review_studio/internal/adapters/catalog"
)

func TestTokenCache_ReusesUntilExpiry(t *testing.T) {
	var fetches int32
	expiry := time.Now().Add(time.Hour)
	c := catalog.NewTokenCache(func(ctx context.Context) (*oauth2.Token, error) {
		atomic.AddInt32(&fetches, 1)
		return &oauth2.Token{AccessToken: "a", Expiry: expiry}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tok, err := c.Get(context.Background()); err != nil || tok != "a" {
				t.Errorf("Get = %q, %v", tok, err)
			}
		}()
	}
	wg.Wait()
	if fetches != 1 {
		t.Fatalf("expected a single fetch, got %d", fetches)
	}

	c.Invalidate()
	_, _ = c.Get(context.Background())
	if fetches != 2 {
		t.Fatalf("expected refetch after Invalidate, got %d", fetches)
	}
}

func TestTokenCache_RefreshesExpired(t *testing.T) {
	var fetches int32
	c := catalog.NewTokenCache(func(ctx context.Context) (*oauth2.Token, error) {
		atomic.AddInt32(&fetches, 1)
		// inside the refresh leeway: treated as expired
		return &oauth2.Token{AccessToken: "short", Expiry: time.Now().Add(10 * time.Second)}, nil
	})
	_, _ = c.Get(context.Background())
	_, _ = c.Get(context.Background())
	if fetches != 2 {
		t.Fatalf("expected 2 fetches, got %d", fetches)
	}
}

func TestTokenCache_FetchError(t *testing.T) {
	boom := errors.New("twitch down")
	c := catalog.NewTokenCache(func(ctx context.Context) (*oauth2.Token, error) { return nil, boom })
	if _, err := c.Get(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestClientCredentials(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" || r.Form.Get("client_id") != "id" || r.Form.Get("client_secret") != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"live","token_type":"bearer","expires_in":5000}`))
	}))
	defer ts.Close()

	c := catalog.NewTokenCache(catalog.ClientCredentials(ts.URL, "id", "secret"))
	tok, err := c.Get(context.Background())
	if err != nil || tok != "live" {
		t.Fatalf("Get = %q, %v", tok, err)
	}
}
