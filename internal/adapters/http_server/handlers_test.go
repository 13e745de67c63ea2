package httpserver_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "review_studio/internal/adapters/http_server"
	redisad "review_studio/internal/adapters/redis"
	"review_studio/internal/app"
	"review_studio/internal/domain"
	"review_studio/internal/storage/memory"
)

type stubProcessor struct {
	mu   sync.Mutex
	seen []string
}

func (p *stubProcessor) ProcessItem(ctx context.Context, item domain.SourceItem, opts app.ProcessOptions) app.ItemResult {
	p.mu.Lock()
	p.seen = append(p.seen, item.Name)
	n := len(p.seen)
	p.mu.Unlock()
	return app.ItemResult{Success: true, ReviewID: int64(n), Slug: app.Slugify(item.Name), Title: item.Name}
}

type stubGenerator struct{ err error }

func (g stubGenerator) GenerateContent(ctx context.Context, prompt, itemName string) (app.GeneratedReview, error) {
	if g.err != nil {
		return app.GeneratedReview{}, g.err
	}
	return app.GeneratedReview{
		DE:    app.LocalizedContent{Title: itemName + " im Test", Content: "Inhalt"},
		EN:    app.LocalizedContent{Title: itemName + " review", Content: "Body"},
		Score: 88,
	}, nil
}

type popularSource struct{}

func (popularSource) Popular(ctx context.Context, c domain.Category, limit int) ([]domain.SourceItem, error) {
	out := []domain.SourceItem{}
	for i := 1; i <= 10 && i <= limit; i++ {
		out = append(out, domain.SourceItem{Name: fmt.Sprintf("Popular %d", i), Category: c})
	}
	return out, nil
}

type fixture struct {
	ts    *httptest.Server
	store *memory.Store
	proc  *stubProcessor
}

func newFixture(t *testing.T, gen app.ContentGenerator) *fixture {
	t.Helper()
	store := memory.New()
	proc := &stubProcessor{}
	runner := app.NewRunner(store, proc)
	t.Cleanup(runner.Close)

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{
		Q:         app.NewQueryService(store, store, redisad.Noop{}, time.Minute),
		Jobs:      runner,
		Sources:   popularSource{},
		Generator: gen,
		Defaults:  domain.JobOptions{BatchSize: 2, MaxRetries: 1, SkipExisting: true},
		MaxItems:  5,
	})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, store: store, proc: proc}
}

func (f *fixture) do(t *testing.T, method, path, body string, hdr map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *fixture) waitJob(t *testing.T, id string) domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp := f.do(t, http.MethodGet, "/v1/jobs/"+id, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		job := decode[domain.Job](t, resp)
		if job.Status.Terminal() {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s still %s", id, job.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestCreateJob_RunsToCompletion(t *testing.T) {
	f := newFixture(t, stubGenerator{})

	resp := f.do(t, http.MethodPost, "/v1/jobs",
		`{"category":"game","items":["Elden Ring","Hades", "elden ring", {"name":"Celeste","externalId":"42"}],"delayMs":0}`, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	created := decode[domain.Job](t, resp)
	assert.Equal(t, "/v1/jobs/"+created.ID, resp.Header.Get("Location"))
	assert.Equal(t, 3, created.Total)
	assert.Equal(t, 2, created.TotalBatches)
	assert.Equal(t, "42", created.Queue[2].ExternalID)

	job := f.waitJob(t, created.ID)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, 3, job.Successful)
	assert.Len(t, job.Reviews, 3)

	list := f.do(t, http.MethodGet, "/v1/jobs?limit=5", "", nil)
	require.Equal(t, http.StatusOK, list.StatusCode)
	body := decode[map[string][]domain.Job](t, list)
	assert.Len(t, body["jobs"], 1)

	again := f.do(t, http.MethodPost, "/v1/jobs/"+created.ID+"/resume", "", nil)
	assert.Equal(t, http.StatusConflict, again.StatusCode)
}

func TestCreateJob_PopularIsCapped(t *testing.T) {
	f := newFixture(t, stubGenerator{})
	resp := f.do(t, http.MethodPost, "/v1/jobs", `{"category":"movie","source":"popular","maxItems":20}`, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	job := decode[domain.Job](t, resp)
	assert.Equal(t, 5, job.Total, "server-side max wins")
	f.waitJob(t, job.ID)
}

func TestCreateJob_Validation(t *testing.T) {
	f := newFixture(t, stubGenerator{})
	cases := map[string]string{
		"bad json":     `{`,
		"bad category": `{"category":"book","items":["x"]}`,
		"no items":     `{"category":"game","items":["  ","# comment"]}`,
		"bad source":   `{"category":"game","source":"rss"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/v1/jobs", body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
		})
	}
}

func TestJobs_NotFound(t *testing.T) {
	f := newFixture(t, stubGenerator{})
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/jobs/nope", "", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/v1/jobs/nope/resume", "", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/jobs?limit=0", "", nil).StatusCode)
}

func TestReviews_GetETagAndPublish(t *testing.T) {
	f := newFixture(t, stubGenerator{})
	rv := &domain.Review{Title: "Hades im Test", Slug: "hades", Category: domain.CategoryGame, Status: domain.ReviewDraft, Score: 90}
	require.NoError(t, f.store.CreateReview(context.Background(), rv))

	resp := f.do(t, http.MethodGet, "/v1/reviews/hades", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	got := decode[domain.Review](t, resp)
	assert.Equal(t, 90, got.Score)

	cached := f.do(t, http.MethodGet, "/v1/reviews/hades", "", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, cached.StatusCode)

	pub := f.do(t, http.MethodPost, fmt.Sprintf("/v1/reviews/%d/publish", rv.ID), "", nil)
	require.Equal(t, http.StatusOK, pub.StatusCode)
	assert.Equal(t, domain.ReviewPublished, decode[domain.Review](t, pub).Status)

	list := f.do(t, http.MethodGet, "/v1/reviews?category=game&status=published", "", nil)
	require.Equal(t, http.StatusOK, list.StatusCode)
	assert.Len(t, decode[map[string][]domain.Review](t, list)["reviews"], 1)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/reviews/missing", "", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/reviews/abc/publish", "", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/reviews?status=archived", "", nil).StatusCode)
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, stubGenerator{})
	resp := f.do(t, http.MethodPost, "/v1/generate", `{"prompt":"Schreibe","itemName":"Hades"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, float64(88), body["score"])
	assert.Equal(t, "none", body["repairTier"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/generate", `{"prompt":" "}`, nil).StatusCode)

	bad := newFixture(t, stubGenerator{err: fmt.Errorf("%w: truncated", domain.ErrInvalidOutput)})
	assert.Equal(t, http.StatusBadGateway, bad.do(t, http.MethodPost, "/v1/generate", `{"prompt":"x"}`, nil).StatusCode)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, stubGenerator{})
	resp := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type busyRunner struct{}

func (busyRunner) Start(ctx context.Context, req app.JobRequest) (domain.Job, error) {
	return domain.Job{}, app.ErrJobRunning
}

func (busyRunner) Resume(ctx context.Context, id string) (domain.Job, error) {
	return domain.Job{}, app.ErrJobRunning
}

func TestResumeRunningJobConflicts(t *testing.T) {
	store := memory.New()
	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{
		Q:        app.NewQueryService(store, store, redisad.Noop{}, time.Minute),
		Jobs:     busyRunner{},
		MaxItems: 5,
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/jobs/abc/resume", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}
