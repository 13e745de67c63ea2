package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"review_studio/internal/adapters/observability"
	"review_studio/internal/adapters/rss"
	"review_studio/internal/app"
	"review_studio/internal/bootstrap"
	"review_studio/internal/domain"
	"review_studio/internal/shared"
)

func main() {
	os.Exit(run())
}

func run() int {
	queue := flag.Bool("queue", false, "Queue a hardware review job for newly created products (overrides RSS_QUEUE_REVIEWS)")
	flag.Parse()

	cfg, err := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)
	if err != nil {
		log.Error().Err(err).Msg("config load failed")
		return 1
	}
	if len(cfg.RSSFeeds) == 0 {
		log.Error().Msg("RSS_FEEDS is empty")
		return 1
	}
	queueReviews := cfg.RSSQueueReviews || *queue
	if queueReviews && cfg.LLM.APIKey == "" {
		log.Error().Msg("LLM_API_KEY is required to queue reviews")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("dependency setup failed")
		return 1
	}
	defer deps.Close()

	entries := rss.NewReader().FetchAll(ctx, cfg.RSSFeeds)
	res, err := app.NewHardwareImporter(deps.Hardware).Import(ctx, entries)
	if err != nil {
		log.Error().Err(err).Msg("hardware import failed")
		return 1
	}
	log.Info().
		Int("entries", len(entries)).
		Int("created", len(res.Created)).
		Int("skipped", res.Skipped).
		Int("ignored", res.Ignored).
		Msg("hardware import done")

	if !queueReviews || len(res.Created) == 0 {
		return 0
	}
	items := make([]domain.SourceItem, 0, len(res.Created))
	for _, hw := range res.Created {
		items = append(items, app.HardwareSource(hw))
	}
	if cfg.Job.MaxItems > 0 && len(items) > cfg.Job.MaxItems {
		items = items[:cfg.Job.MaxItems]
	}
	job, err := deps.Runner.Create(ctx, app.JobRequest{
		Category: domain.CategoryHardware,
		Items:    items,
		Options:  bootstrap.JobOptions(cfg.Job),
	})
	if err != nil {
		log.Error().Err(err).Msg("create job failed")
		return 1
	}
	done, err := deps.Runner.Run(ctx, job.ID)
	if err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("review job aborted")
		return 1
	}
	log.Info().Str("job_id", done.ID).Int("successful", done.Successful).Int("failed", done.Failed).Msg("hardware reviews created")
	return 0
}
