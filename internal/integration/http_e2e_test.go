//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	server "review_studio/internal/adapters/http_server"
	"review_studio/internal/adapters/llm"
	redisad "review_studio/internal/adapters/redis"
	"review_studio/internal/app"
	"review_studio/internal/domain"
	mysqlrepo "review_studio/internal/storage/mysql"
)

// ---------- helpers ----------
func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// ---------- fake chat-completions endpoint ----------
const celesteTruncated = `{"de":{"title":"Celeste im Test","content":"Ein präziser Plattformer.","pros":["Steuerung"],"cons":["Schwer"]},` +
	`"en":{"title":"Celeste review","content":"A precise platformer.","pros":["Controls"],"cons":["Hard`

func fakeLLM(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prompt := req.Messages[len(req.Messages)-1].Content
		content := ""
		switch {
		case strings.Contains(prompt, "Celeste"):
			content = celesteTruncated
		case strings.Contains(prompt, "RTX 4090"):
			content = `{"de":{"title":"RTX 4090 im Test","content":"Schnell. ![[IMAGE_1]]","pros":["Leistung"],"cons":["Preis"]},` +
				`"en":{"title":"RTX 4090 review","content":"Fast.","pros":["Performance"],"cons":["Price"]},"score":9.1,"specs":{"vram":"24 GB"}}`
		default:
			content = `{"de":{"title":"Hollow Knight im Test","content":"Düster und schön.","pros":["Atmosphäre"],"cons":["Karte"]},` +
				`"en":{"title":"Hollow Knight review","content":"Dark and beautiful.","pros":["Atmosphere"],"cons":["Map"]},"score":92}`
		}
		resp := map[string]any{"choices": []any{map[string]any{"finish_reason": "stop", "message": map[string]any{"content": content}}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

// ---------- the test ----------
func TestHTTP_EndToEnd_MassCreation(t *testing.T) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=reviews",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/reviews?multiStatements=true", resource.GetPort("3306/tcp"))
	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = mysqlrepo.Open(dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)

	llmSrv := fakeLLM(t)
	defer llmSrv.Close()
	client, err := llm.New(llm.Options{BaseURL: llmSrv.URL, APIKey: "test", Model: "test"})
	if err != nil {
		t.Fatal(err)
	}

	repo := mysqlrepo.New(db)
	proc := app.NewProcessor(app.ProcessorDeps{Reviews: repo, Hardware: repo, Generator: app.NewGenerator(client)})
	runner := app.NewRunner(repo, proc)
	defer runner.Close()

	srv := server.New()
	srv.MountHandlers(&server.Handlers{
		Q:         app.NewQueryService(repo, repo, redisad.Noop{}, time.Minute),
		Jobs:      runner,
		Generator: app.NewGenerator(client),
		Defaults:  domain.JobOptions{BatchSize: 2, MaxRetries: 2, SkipExisting: true},
		MaxItems:  10,
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	post := func(path, body string) *http.Response {
		t.Helper()
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		return resp
	}
	waitJob := func(id string) domain.Job {
		t.Helper()
		deadline := time.Now().Add(30 * time.Second)
		for {
			resp, err := http.Get(ts.URL + "/v1/jobs/" + id)
			if err != nil {
				t.Fatalf("GET job: %v", err)
			}
			var job domain.Job
			_ = json.NewDecoder(resp.Body).Decode(&job)
			resp.Body.Close()
			if job.Status.Terminal() {
				return job
			}
			if time.Now().After(deadline) {
				t.Fatalf("job %s did not finish: %+v", id, job)
			}
			time.Sleep(100 * time.Millisecond)
		}
	}

	// games: one clean answer, one truncated answer that needs repair
	resp := post("/v1/jobs", `{"category":"game","items":["Hollow Knight","Celeste"],"delayMs":0}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("create job: %d", resp.StatusCode)
	}
	var created domain.Job
	_ = json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	job := waitJob(created.ID)
	if job.Status != domain.JobCompleted || job.Successful != 2 || job.Failed != 0 {
		t.Fatalf("unexpected job: %+v", job)
	}

	got, err := http.Get(ts.URL + "/v1/reviews/hollow-knight")
	if err != nil {
		t.Fatal(err)
	}
	var rv domain.Review
	_ = json.NewDecoder(got.Body).Decode(&rv)
	got.Body.Close()
	if got.StatusCode != http.StatusOK || rv.Score != 92 || rv.TitleEN != "Hollow Knight review" {
		t.Fatalf("unexpected review %d: %+v", got.StatusCode, rv)
	}
	celeste, err := repo.GetReviewBySlug(context.Background(), "celeste")
	if err != nil || celeste.ContentEN != "A precise platformer." {
		t.Fatalf("repaired review: %+v %v", celeste, err)
	}

	// running the same list again skips both
	resp = post("/v1/jobs", `{"category":"game","items":["hollow knight","Celeste"],"delayMs":0}`)
	_ = json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	job = waitJob(created.ID)
	if job.Skipped != 2 {
		t.Fatalf("expected skips: %+v", job)
	}

	// hardware creates the product row lazily
	resp = post("/v1/jobs", `{"category":"hardware","items":["ASUS ROG Strix RTX 4090"],"delayMs":0}`)
	_ = json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	job = waitJob(created.ID)
	if job.Successful != 1 {
		t.Fatalf("hardware job: %+v", job)
	}
	hwReview, err := repo.GetReviewBySlug(context.Background(), "asus-rog-strix-rtx-4090")
	if err != nil || hwReview.HardwareID == nil || hwReview.Score != 91 {
		t.Fatalf("hardware review: %+v %v", hwReview, err)
	}
	if strings.Contains(hwReview.Content, "IMAGE_1") {
		t.Fatalf("placeholder without image survived: %q", hwReview.Content)
	}

	pub := post(fmt.Sprintf("/v1/reviews/%d/publish", rv.ID), "")
	pub.Body.Close()
	if pub.StatusCode != http.StatusOK {
		t.Fatalf("publish: %d", pub.StatusCode)
	}
}
