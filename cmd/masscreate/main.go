package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"review_studio/internal/adapters/observability"
	"review_studio/internal/app"
	"review_studio/internal/bootstrap"
	"review_studio/internal/domain"
	"review_studio/internal/shared"
)

func main() {
	os.Exit(run())
}

func run() int {
	resumeID := flag.String("resume", "", "Resume the job with this id instead of creating a new one")
	flag.Parse()

	cfg, err := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)
	if err != nil {
		log.Error().Err(err).Msg("config load failed")
		return 1
	}
	if cfg.LLM.APIKey == "" {
		log.Error().Msg("LLM_API_KEY is required for mass creation")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	deps, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("dependency setup failed")
		return 1
	}
	defer deps.Close()

	id := *resumeID
	if id == "" {
		cat, err := domain.ParseCategory(cfg.Job.Category)
		if err != nil {
			log.Error().Err(err).Msg("JOB_CATEGORY")
			return 1
		}
		items, err := loadItems(ctx, cfg.Job, cat, deps.Sources)
		if err != nil {
			log.Error().Err(err).Msg("loading items failed")
			return 1
		}
		if len(items) == 0 {
			log.Warn().Str("category", string(cat)).Msg("nothing to create")
			return 0
		}
		job, err := deps.Runner.Create(ctx, app.JobRequest{Category: cat, Items: items, Options: bootstrap.JobOptions(cfg.Job)})
		if err != nil {
			log.Error().Err(err).Msg("create job failed")
			return 1
		}
		id = job.ID
	}

	log.Info().Str("job_id", id).Msg("mass creation starting")
	job, err := deps.Runner.Run(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("job_id", id).Msg("job aborted")
		return 1
	}
	log.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int("successful", job.Successful).
		Int("failed", job.Failed).
		Int("skipped", job.Skipped).
		Msg("mass creation completed")
	for _, e := range job.Errors {
		fmt.Fprintln(os.Stderr, "  -", e)
	}
	return 0
}

// loadItems reads ITEMS_FILE (one name per line) when set, otherwise pulls
// popular titles from the catalog.
func loadItems(ctx context.Context, j shared.JobConfig, c domain.Category, src *app.Sources) ([]domain.SourceItem, error) {
	if j.ItemsFile != "" {
		f, err := os.Open(j.ItemsFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var names []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			names = append(names, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", j.ItemsFile, err)
		}
		items := app.FromNames(c, names)
		if j.MaxItems > 0 && len(items) > j.MaxItems {
			items = items[:j.MaxItems]
		}
		return items, nil
	}
	if j.Source != "popular" {
		return nil, fmt.Errorf("JOB_SOURCE %q needs JOB_ITEMS_FILE", j.Source)
	}
	return src.Popular(ctx, c, j.MaxItems)
}
