package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string `env:"APP_ENV"      envDefault:"prod"`
	HTTPAddr    string `env:"HTTP_ADDR"    envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9100"`

	// Empty MySQLDSN keeps reviews and jobs in process memory.
	MySQLDSN  string        `env:"MYSQL_DSN"`
	RedisAddr string        `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPass string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int           `env:"REDIS_DB"       envDefault:"0"`
	CacheTTL  time.Duration `env:"CACHE_TTL"      envDefault:"15m"`

	LLM     LLMConfig
	Images  ImageConfig
	Catalog CatalogConfig
	Storage StorageConfig
	Job     JobConfig `envPrefix:"JOB_"`

	RSSFeeds        []string `env:"RSS_FEEDS"         envSeparator:","`
	RSSQueueReviews bool     `env:"RSS_QUEUE_REVIEWS" envDefault:"false"`
}

type LLMConfig struct {
	BaseURL     string        `env:"LLM_BASE_URL"     envDefault:"https://openrouter.ai/api/v1"`
	APIKey      string        `env:"LLM_API_KEY"`
	Model       string        `env:"LLM_MODEL"        envDefault:"openai/gpt-4o-mini"`
	MaxTokens   int           `env:"LLM_MAX_TOKENS"   envDefault:"4096"`
	MaxInFlight int           `env:"LLM_MAX_INFLIGHT" envDefault:"5"`
	Timeout     time.Duration `env:"LLM_TIMEOUT"      envDefault:"2m"`
}

type ImageConfig struct {
	Model        string `env:"IMAGE_MODEL"         envDefault:"google/gemini-2.5-flash-image"`
	TavilyAPIKey string `env:"TAVILY_API_KEY"`
	PerReview    int    `env:"IMAGES_PER_REVIEW"   envDefault:"4"`
}

type CatalogConfig struct {
	IGDBClientID     string `env:"IGDB_CLIENT_ID"`
	IGDBClientSecret string `env:"IGDB_CLIENT_SECRET"`
	IGDBTokenURL     string `env:"IGDB_TOKEN_URL"  envDefault:"https://id.twitch.tv/oauth2/token"`
	IGDBBaseURL      string `env:"IGDB_BASE_URL"   envDefault:"https://api.igdb.com/v4"`
	TMDBAPIKey       string `env:"TMDB_API_KEY"`
	TMDBBaseURL      string `env:"TMDB_BASE_URL"   envDefault:"https://api.themoviedb.org/3"`
	TMDBLanguage     string `env:"TMDB_LANGUAGE"   envDefault:"de-DE"`
	RPS              int    `env:"CATALOG_RPS"     envDefault:"4"`
}

type StorageConfig struct {
	Dir       string `env:"STORAGE_DIR"        envDefault:"./media"`
	PublicURL string `env:"STORAGE_PUBLIC_URL" envDefault:"http://localhost:8080/media"`
}

// JobConfig holds the defaults of a mass-creation run; requests may override them.
type JobConfig struct {
	BatchSize    int           `env:"BATCH_SIZE"    envDefault:"5"`
	ItemDelay    time.Duration `env:"ITEM_DELAY"    envDefault:"2s"`
	BatchDelay   time.Duration `env:"BATCH_DELAY"   envDefault:"10s"`
	MaxRetries   int           `env:"MAX_RETRIES"   envDefault:"3"`
	RetryBase    time.Duration `env:"RETRY_BASE"    envDefault:"2s"`
	MaxItems     int           `env:"MAX_ITEMS"     envDefault:"50"`
	SkipExisting bool          `env:"SKIP_EXISTING" envDefault:"true"`
	Status       string        `env:"STATUS"        envDefault:"draft"`
	Category     string        `env:"CATEGORY"      envDefault:"game"`
	Source       string        `env:"SOURCE"        envDefault:"popular"`
	ItemsFile    string        `env:"ITEMS_FILE"`
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	c.Sanitize()

	if c.LLM.APIKey == "" {
		log.Warn().Msg("LLM_API_KEY is empty")
	}
	if c.Catalog.IGDBClientID == "" || c.Catalog.IGDBClientSecret == "" {
		log.Warn().Msg("IGDB credentials are empty; game catalog disabled")
	}
	return c, nil
}

// Sanitize clamps values that would stall or flood a run.
func (c *Config) Sanitize() {
	if c.Job.BatchSize <= 0 {
		c.Job.BatchSize = 5
	}
	if c.Job.BatchSize > 20 {
		c.Job.BatchSize = 20
	}
	if c.Job.MaxRetries <= 0 {
		c.Job.MaxRetries = 1
	}
	if c.Job.ItemDelay < 0 {
		c.Job.ItemDelay = 0
	}
	if c.Job.BatchDelay < 0 {
		c.Job.BatchDelay = 0
	}
	if c.Job.RetryBase < 0 {
		c.Job.RetryBase = 0
	}
	if c.LLM.MaxInFlight <= 0 {
		c.LLM.MaxInFlight = 1
	}
	if c.Catalog.RPS <= 0 {
		c.Catalog.RPS = 4
	}
	if c.Images.PerReview < 0 {
		c.Images.PerReview = 0
	}
	c.Storage.PublicURL = strings.TrimRight(c.Storage.PublicURL, "/")
	for i, f := range c.RSSFeeds {
		c.RSSFeeds[i] = strings.TrimSpace(f)
	}
}
