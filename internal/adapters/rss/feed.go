// Package rss reads hardware news feeds and turns entries into plain
// FeedEntry values.
package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"review_studio/internal/adapters/observability"
	"review_studio/internal/domain"
)

type Reader struct {
	hc *http.Client
}

func NewReader() *Reader {
	return &Reader{hc: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch downloads and parses a single RSS or Atom feed.
func (r *Reader) Fetch(ctx context.Context, url string) ([]domain.FeedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "review-studio/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.5")

	start := time.Now()
	resp, err := r.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("rss", "feed", 0, time.Since(start))
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("rss", "feed", resp.StatusCode, time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch feed %s: status %d", url, resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}
	out := make([]domain.FeedEntry, 0, len(feed.Items))
	for _, it := range feed.Items {
		if e, ok := toEntry(it); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// FetchAll reads every feed; a broken feed is logged and skipped.
func (r *Reader) FetchAll(ctx context.Context, urls []string) []domain.FeedEntry {
	var all []domain.FeedEntry
	for _, u := range urls {
		entries, err := r.Fetch(ctx, u)
		if err != nil {
			log.Warn().Err(err).Str("feed", u).Msg("feed skipped")
			continue
		}
		log.Info().Str("feed", u).Int("entries", len(entries)).Msg("feed read")
		all = append(all, entries...)
	}
	return all
}

func toEntry(it *gofeed.Item) (domain.FeedEntry, bool) {
	title := strings.TrimSpace(html.UnescapeString(it.Title))
	if title == "" {
		return domain.FeedEntry{}, false
	}
	body := it.Description
	if body == "" {
		body = it.Content
	}
	text, img := textAndImage(body)
	if it.Image != nil && it.Image.URL != "" {
		img = it.Image.URL
	}
	if img == "" {
		for _, enc := range it.Enclosures {
			if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
				img = enc.URL
				break
			}
		}
	}
	e := domain.FeedEntry{Title: title, Link: it.Link, Summary: text, Image: img}
	if it.PublishedParsed != nil {
		e.Published = *it.PublishedParsed
	}
	return e, true
}

// textAndImage flattens an HTML fragment to whitespace-normalised text and
// returns the first <img src>.
func textAndImage(fragment string) (text, img string) {
	if strings.TrimSpace(fragment) == "" {
		return "", ""
	}
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " "), img
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Script, atom.Style:
				if tok.Type == html.StartTagToken {
					skip++
				}
			case atom.Img:
				if img == "" {
					for _, a := range tok.Attr {
						if a.Key == "src" && strings.HasPrefix(a.Val, "http") {
							img = a.Val
						}
					}
				}
			case atom.Br, atom.P, atom.Div, atom.Li:
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			tok := z.Token()
			if (tok.DataAtom == atom.Script || tok.DataAtom == atom.Style) && skip > 0 {
				skip--
			}
		}
	}
}
