package app_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"review_studio/internal/app"
	"review_studio/internal/domain"
)

// ---- fakes ----

type fakeCompleter struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", fmt.Errorf("no scripted response")
	}
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return r, nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// fakeGenerator returns a fixed review per item and counts calls.
type fakeGenerator struct {
	mu    sync.Mutex
	calls map[string]int
	err   func(item string) error
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, prompt, itemName string) (app.GeneratedReview, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[itemName]++
	f.mu.Unlock()
	if f.err != nil {
		if err := f.err(itemName); err != nil {
			return app.GeneratedReview{}, err
		}
	}
	return app.GeneratedReview{
		DE:    app.LocalizedContent{Title: itemName + " im Test", Content: "Text ![[IMAGE_1]] ![[IMAGE_4]]", Pros: []string{"gut"}},
		EN:    app.LocalizedContent{Title: itemName + " review", Content: "Body ![[IMAGE_1]]", Pros: []string{"good"}},
		Score: 81,
		Specs: map[string]any{"vram": "24 GB"},
	}, nil
}

func (f *fakeGenerator) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads []string
}

func (f *fakeUploader) Upload(ctx context.Context, src, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.Contains(src, "broken") {
		return "", fmt.Errorf("download failed")
	}
	f.uploads = append(f.uploads, src)
	return "https://cdn.test/" + name + ".webp", nil
}

type fakeSearcher struct{ urls []string }

func (f fakeSearcher) SearchImages(ctx context.Context, q string, n int) ([]string, error) {
	if n < len(f.urls) {
		return f.urls[:n], nil
	}
	return f.urls, nil
}

type fakeGames struct {
	game    map[string]any
	popular []map[string]any
	gets    int
}

func (f *fakeGames) PopularGames(ctx context.Context, limit int) ([]map[string]any, error) {
	return f.popular, nil
}
func (f *fakeGames) SearchGames(ctx context.Context, q string, limit int) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeGames) GetGame(ctx context.Context, id int64) (map[string]any, error) {
	f.gets++
	if f.game == nil {
		return nil, domain.ErrNotFound
	}
	return f.game, nil
}

// scriptedProcessor lets runner tests decide each item's outcome.
type scriptedProcessor struct {
	mu     sync.Mutex
	calls  map[string]int
	result func(item domain.SourceItem, call int) app.ItemResult
}

func (p *scriptedProcessor) ProcessItem(ctx context.Context, item domain.SourceItem, opts app.ProcessOptions) app.ItemResult {
	p.mu.Lock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[item.Name]++
	n := p.calls[item.Name]
	p.mu.Unlock()
	return p.result(item, n)
}

func (p *scriptedProcessor) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

// recordingJobs wraps a JobStore and keeps every persisted snapshot.
type recordingJobs struct {
	domain.JobStore
	mu      sync.Mutex
	updates []domain.Job
}

func (r *recordingJobs) UpdateJob(ctx context.Context, j domain.Job) error {
	r.mu.Lock()
	r.updates = append(r.updates, j.Clone())
	r.mu.Unlock()
	return r.JobStore.UpdateJob(ctx, j)
}

func (r *recordingJobs) batches() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, u := range r.updates {
		if len(out) == 0 || out[len(out)-1] != u.CurrentBatch {
			out = append(out, u.CurrentBatch)
		}
	}
	return out
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]domain.Review
	sets int
	dels int
}

func (c *mapCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return false, nil
	}
	*dst.(*domain.Review) = v
	return true, nil
}
func (c *mapCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]domain.Review{}
	}
	c.data[key] = v.(domain.Review)
	c.sets++
	return nil
}
func (c *mapCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.dels++
	return nil
}
