package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"review_studio/internal/app"
	"review_studio/internal/domain"
)

// JobRunner starts and resumes mass-creation jobs in the background.
type JobRunner interface {
	Start(ctx context.Context, req app.JobRequest) (domain.Job, error)
	Resume(ctx context.Context, id string) (domain.Job, error)
}

type ItemSource interface {
	Popular(ctx context.Context, c domain.Category, limit int) ([]domain.SourceItem, error)
}

type Handlers struct {
	Q         *app.QueryService
	Jobs      JobRunner
	Sources   ItemSource
	Generator app.ContentGenerator
	Defaults  domain.JobOptions
	MaxItems  int
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(15 * time.Second))
		r.Use(MaxBody(1 << 20))
		r.Post("/v1/jobs", h.createJob)
		r.Get("/v1/jobs", h.listJobs)
		r.Get("/v1/jobs/{id}", h.getJob)
		r.Post("/v1/jobs/{id}/resume", h.resumeJob)
		r.Get("/v1/reviews", h.listReviews)
		r.Get("/v1/reviews/{slug}", h.getReview)
		r.Post("/v1/reviews/{id}/publish", h.publishReview)
	})
	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(3 * time.Minute))
		r.Use(MaxBody(256 << 10))
		r.Post("/v1/generate", h.generate)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeErr maps domain errors onto problem responses.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrJobNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalidCategory):
		writeProblem(w, http.StatusBadRequest, "Invalid category", err.Error())
	case errors.Is(err, app.ErrJobFinished):
		writeProblem(w, http.StatusConflict, "Job finished", err.Error())
	case errors.Is(err, app.ErrJobRunning):
		writeProblem(w, http.StatusConflict, "Job running", err.Error())
	case errors.Is(err, domain.ErrInvalidOutput):
		writeProblem(w, http.StatusBadGateway, "Invalid model output", err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

// jobItemInput accepts either a bare name or {"name", "externalId"}.
type jobItemInput struct {
	Name       string `json:"name"`
	ExternalID string `json:"externalId"`
}

func (in *jobItemInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		in.Name = s
		return nil
	}
	type plain jobItemInput
	return json.Unmarshal(b, (*plain)(in))
}

type createJobRequest struct {
	Category     string         `json:"category"`
	Items        []jobItemInput `json:"items"`
	Source       string         `json:"source"`
	MaxItems     int            `json:"maxItems"`
	DelayMS      *int           `json:"delayMs"`
	BatchSize    int            `json:"batchSize"`
	SkipExisting *bool          `json:"skipExisting"`
	Status       string         `json:"status"`
}

func (h *Handlers) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	cat, err := domain.ParseCategory(req.Category)
	if err != nil {
		writeErr(w, err)
		return
	}

	limit := h.MaxItems
	if req.MaxItems > 0 && (limit <= 0 || req.MaxItems < limit) {
		limit = req.MaxItems
	}
	if limit <= 0 {
		limit = 50
	}

	var items []domain.SourceItem
	switch strings.ToLower(req.Source) {
	case "popular":
		if h.Sources == nil {
			writeProblem(w, http.StatusBadRequest, "Unsupported source", "no catalog configured")
			return
		}
		items, err = h.Sources.Popular(r.Context(), cat, limit)
		if err != nil {
			writeErr(w, err)
			return
		}
	case "", "list":
		items = itemsFromInput(cat, req.Items)
	default:
		writeProblem(w, http.StatusBadRequest, "Unsupported source", req.Source)
		return
	}
	if len(items) > limit {
		items = items[:limit]
	}
	if len(items) == 0 {
		writeProblem(w, http.StatusBadRequest, "No items", "items must contain at least one name")
		return
	}

	opts := h.Defaults
	if req.BatchSize > 0 {
		opts.BatchSize = req.BatchSize
	}
	if req.DelayMS != nil {
		opts.DelayMS = *req.DelayMS
	}
	if req.SkipExisting != nil {
		opts.SkipExisting = *req.SkipExisting
	}
	if st := domain.ReviewStatus(req.Status); st.Valid() {
		opts.Status = st
	}

	job, err := h.Jobs.Start(r.Context(), app.JobRequest{Category: cat, Items: items, Options: opts})
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Location", "/v1/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func itemsFromInput(c domain.Category, in []jobItemInput) []domain.SourceItem {
	names := make([]string, 0, len(in))
	ids := make(map[string]string, len(in))
	for _, it := range in {
		names = append(names, it.Name)
		if it.ExternalID != "" {
			ids[strings.TrimSpace(it.Name)] = it.ExternalID
		}
	}
	items := app.FromNames(c, names)
	for i := range items {
		items[i].ExternalID = ids[items[i].Name]
	}
	return items
}

func (h *Handlers) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Q.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, job)
}

func (h *Handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 20)
	if !ok {
		return
	}
	jobs, err := h.Q.ListJobs(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *Handlers) resumeJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

type generateRequest struct {
	Prompt   string `json:"prompt"`
	ItemName string `json:"itemName"`
}

func (h *Handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeProblem(w, http.StatusBadRequest, "Missing prompt", "prompt is required")
		return
	}
	if req.ItemName == "" {
		req.ItemName = "preview"
	}
	rev, err := h.Generator.GenerateContent(r.Context(), req.Prompt, req.ItemName)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"de":         rev.DE,
		"en":         rev.EN,
		"score":      rev.Score,
		"specs":      rev.Specs,
		"repairTier": rev.Tier.String(),
	})
}

func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	rv, err := h.Q.GetReviewBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeErr(w, err)
		return
	}

	etag, body := calcETagAndBody(rv)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getReview body")
	}
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 20)
	if !ok {
		return
	}
	q := domain.ReviewQuery{Limit: limit}
	if cs := r.URL.Query().Get("category"); cs != "" {
		c, err := domain.ParseCategory(cs)
		if err != nil {
			writeErr(w, err)
			return
		}
		q.Category = &c
	}
	if ss := r.URL.Query().Get("status"); ss != "" {
		st := domain.ReviewStatus(ss)
		if !st.Valid() {
			writeProblem(w, http.StatusBadRequest, "Invalid status", "status must be draft or published")
			return
		}
		q.Status = &st
	}
	out, err := h.Q.ListReviews(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": out})
}

func (h *Handlers) publishReview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	rv, err := h.Q.Publish(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	ls := r.URL.Query().Get("limit")
	if ls == "" {
		return def, true
	}
	l, err := strconv.Atoi(ls)
	if err != nil || l <= 0 || l > 100 {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 100")
		return 0, false
	}
	return l, true
}
