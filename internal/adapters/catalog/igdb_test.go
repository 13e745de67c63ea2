package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"review_studio/internal/adapters/catalog"
	"review_studio/internal/domain"
)

func staticTokens(tok string) *catalog.TokenCache {
	return catalog.NewTokenCache(func(ctx context.Context) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: tok, Expiry: time.Now().Add(time.Hour)}, nil
	})
}

func TestIGDB_GetGame_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(503)
		default:
			if r.Method != http.MethodPost || r.URL.Path != "/games" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if got := r.Header.Get("Client-ID"); got != "cid" {
				t.Errorf("Client-ID = %q", got)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
				t.Errorf("Authorization = %q", got)
			}
			b, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(b), "where id = 1942;") {
				t.Errorf("unexpected body %q", b)
			}
			_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 1942.0, "name": "The Witcher 3"}})
		}
	}))
	defer ts.Close()

	cl, err := catalog.NewIGDB(ts.URL, "cid", staticTokens("tok-1"), 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := cl.GetGame(ctx, 1942)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got["name"] != "The Witcher 3" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected 3 calls due to retries, got %d", hits)
	}
}

func TestIGDB_GetGame_EmptyResultIsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	cl, _ := catalog.NewIGDB(ts.URL, "cid", staticTokens("t"), 100)
	_, err := cl.GetGame(context.Background(), 1)
	if !errors.Is(err, catalog.ErrNotFound) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIGDB_RefreshesTokenAfter401(t *testing.T) {
	var issued int32
	tokens := catalog.NewTokenCache(func(ctx context.Context) (*oauth2.Token, error) {
		n := atomic.AddInt32(&issued, 1)
		return &oauth2.Token{AccessToken: "tok-" + string(rune('0'+n)), Expiry: time.Now().Add(time.Hour)}, nil
	})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id": 1, "name": "Tetris"}]`))
	}))
	defer ts.Close()

	cl, _ := catalog.NewIGDB(ts.URL, "cid", tokens, 100)
	got, err := cl.PopularGames(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 || atomic.LoadInt32(&issued) != 2 {
		t.Fatalf("got %d games, %d tokens", len(got), issued)
	}
}

func TestIGDB_HonorsRetryAfter(t *testing.T) {
	var hits int32
	var first time.Time
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			first = time.Now()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if time.Since(first) < 900*time.Millisecond {
			t.Errorf("retried after %v, before Retry-After elapsed", time.Since(first))
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	cl, _ := catalog.NewIGDB(ts.URL, "cid", staticTokens("t"), 100)
	if _, err := cl.SearchGames(context.Background(), `Zelda "BotW"`, 3); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestNewIGDB_RequiresCredentials(t *testing.T) {
	if _, err := catalog.NewIGDB("http://x", "", staticTokens("t"), 1); err == nil {
		t.Fatalf("expected error without client id")
	}
}
