// Package bootstrap builds the dependency graph shared by the commands.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"review_studio/internal/adapters/catalog"
	"review_studio/internal/adapters/images"
	"review_studio/internal/adapters/llm"
	"review_studio/internal/adapters/objectstore"
	redisad "review_studio/internal/adapters/redis"
	"review_studio/internal/app"
	"review_studio/internal/domain"
	"review_studio/internal/shared"
	"review_studio/internal/storage/memory"
	mysqlrepo "review_studio/internal/storage/mysql"
)

// ErrLLMDisabled is returned by generation when no LLM key is configured.
var ErrLLMDisabled = errors.New("LLM_API_KEY is not configured")

type Deps struct {
	Reviews  domain.ReviewRepository
	Hardware domain.HardwareRepository
	Jobs     domain.JobStore
	Cache    domain.Cache

	Games domain.GameCatalog
	Media domain.MediaCatalog

	Generator *app.Generator
	Processor *app.Processor
	Runner    *app.Runner
	Sources   *app.Sources
	Objects   *objectstore.Store
	Queries   *app.QueryService

	closers []func()
}

// Close stops running jobs first, then releases connections.
func (d *Deps) Close() {
	if d.Runner != nil {
		d.Runner.Close()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

type disabledCompleter struct{}

func (disabledCompleter) Complete(context.Context, string) (string, error) {
	return "", ErrLLMDisabled
}

func Build(ctx context.Context, cfg shared.Config) (*Deps, error) {
	d := &Deps{}
	if err := d.storage(ctx, cfg); err != nil {
		d.Close()
		return nil, err
	}
	d.cache(ctx, cfg)
	if err := d.catalogs(cfg); err != nil {
		d.Close()
		return nil, err
	}

	var completer domain.Completer = disabledCompleter{}
	if cfg.LLM.APIKey != "" {
		c, err := llm.New(llm.Options{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			MaxInFlight: cfg.LLM.MaxInFlight,
			Timeout:     cfg.LLM.Timeout,
		})
		if err != nil {
			d.Close()
			return nil, err
		}
		completer = c
	}
	d.Generator = app.NewGenerator(completer)

	objects, err := objectstore.New(cfg.Storage.Dir, cfg.Storage.PublicURL)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Objects = objects

	deps := app.ProcessorDeps{
		Reviews:         d.Reviews,
		Hardware:        d.Hardware,
		Generator:       d.Generator,
		Games:           d.Games,
		Media:           d.Media,
		Store:           objects,
		ImagesPerReview: cfg.Images.PerReview,
	}
	if cfg.Images.TavilyAPIKey != "" {
		deps.ImageSearch = images.NewTavily("", cfg.Images.TavilyAPIKey)
	}
	if cfg.LLM.APIKey != "" && cfg.Images.Model != "" {
		deps.ImageGen = images.NewGenerator(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.Images.Model)
	}
	d.Processor = app.NewProcessor(deps)
	d.Runner = app.NewRunner(d.Jobs, d.Processor)
	d.Sources = app.NewSources(d.Games, d.Media)
	d.Queries = app.NewQueryService(d.Reviews, d.Jobs, d.Cache, cfg.CacheTTL)
	return d, nil
}

func (d *Deps) storage(ctx context.Context, cfg shared.Config) error {
	if cfg.MySQLDSN == "" {
		log.Warn().Msg("MYSQL_DSN is empty; reviews and jobs are kept in memory")
		mem := memory.New()
		d.Reviews, d.Hardware, d.Jobs = mem, mem, mem
		return nil
	}
	db, err := mysqlrepo.Open(cfg.MySQLDSN)
	if err != nil {
		return err
	}
	d.closers = append(d.closers, func() { _ = db.Close() })
	if err := pingDB(ctx, db); err != nil {
		return err
	}
	log.Info().Msg("database connection ok")
	repo := mysqlrepo.New(db)
	d.Reviews, d.Hardware, d.Jobs = repo, repo, repo
	return nil
}

func pingDB(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

func (d *Deps) cache(ctx context.Context, cfg shared.Config) {
	d.Cache = redisad.Noop{}
	if cfg.RedisAddr == "" {
		return
	}
	rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable; caching disabled")
		_ = rc.Close()
		return
	}
	d.Cache = rc
	d.closers = append(d.closers, func() { _ = rc.Close() })
}

func (d *Deps) catalogs(cfg shared.Config) error {
	c := cfg.Catalog
	if c.IGDBClientID != "" && c.IGDBClientSecret != "" {
		tokens := catalog.NewTokenCache(catalog.ClientCredentials(c.IGDBTokenURL, c.IGDBClientID, c.IGDBClientSecret))
		igdb, err := catalog.NewIGDB(c.IGDBBaseURL, c.IGDBClientID, tokens, c.RPS)
		if err != nil {
			return err
		}
		d.Games = catalog.NewCachedGames(igdb, d.Cache, cfg.CacheTTL)
	}
	if c.TMDBAPIKey != "" {
		tmdb, err := catalog.NewTMDB(c.TMDBBaseURL, c.TMDBAPIKey, c.TMDBLanguage, c.RPS)
		if err != nil {
			return err
		}
		d.Media = catalog.NewCachedMedia(tmdb, d.Cache, cfg.CacheTTL)
	} else {
		log.Warn().Msg("TMDB_API_KEY is empty; movie and series catalog disabled")
	}
	return nil
}

// JobOptions converts the configured defaults into request options.
func JobOptions(j shared.JobConfig) domain.JobOptions {
	return domain.JobOptions{
		BatchSize:    j.BatchSize,
		DelayMS:      int(j.ItemDelay / time.Millisecond),
		BatchDelayMS: int(j.BatchDelay / time.Millisecond),
		MaxRetries:   j.MaxRetries,
		RetryBaseMS:  int(j.RetryBase / time.Millisecond),
		SkipExisting: j.SkipExisting,
		Status:       domain.ReviewStatus(j.Status),
	}
}
