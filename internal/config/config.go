// Package config loads and validates titlecheck configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Checker     CheckerConfig    `mapstructure:"checker"`
	Browser     BrowserConfig    `mapstructure:"browser"`
	Input       InputConfig      `mapstructure:"input"`
	Output      OutputConfig     `mapstructure:"output"`
	Screenshots ScreenshotConfig `mapstructure:"screenshots"`
	DB          DBConfig         `mapstructure:"db"`
	PubSub      PubSubConfig     `mapstructure:"pubsub"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

// CheckerConfig governs scheduling and per-check timeouts.
type CheckerConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	NavTimeout        time.Duration `mapstructure:"nav_timeout"`
	HeadingTimeout    time.Duration `mapstructure:"heading_timeout"`
	ScreenshotTimeout time.Duration `mapstructure:"screenshot_timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax   time.Duration `mapstructure:"retry_backoff_max"`
	DomainQPS         float64       `mapstructure:"domain_qps"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// BrowserConfig selects and tunes the browser backend.
type BrowserConfig struct {
	Backend   string `mapstructure:"backend"`
	Headless  bool   `mapstructure:"headless"`
	Bin       string `mapstructure:"bin"`
	NoSandbox bool   `mapstructure:"no_sandbox"`
	Stealth   bool   `mapstructure:"stealth"`
}

// InputConfig locates the link list.
type InputConfig struct {
	Path        string `mapstructure:"path"`
	URLColumn   string `mapstructure:"url_column"`
	TitleColumn string `mapstructure:"title_column"`
}

// OutputConfig locates the sink files and the report.
type OutputConfig struct {
	MatchedPath    string `mapstructure:"matched_path"`
	FailedPath     string `mapstructure:"failed_path"`
	BotBlockedPath string `mapstructure:"bot_blocked_path"`
	ReportPath     string `mapstructure:"report_path"`
}

// ScreenshotConfig sets where failure evidence goes.
type ScreenshotConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	Naming    string `mapstructure:"naming"`
}

// DBConfig controls the optional Postgres mirror.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the ops server.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	APIKey     string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Browser backends.
const (
	BackendChromedp = "chromedp"
	BackendRod      = "rod"
	BackendStatic   = "static"
)

// Screenshot backends.
const (
	ShotsLocal  = "local"
	ShotsGCS    = "gcs"
	ShotsMemory = "memory"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TITLECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("checker.concurrency", 5)
	v.SetDefault("checker.nav_timeout", 15*time.Second)
	v.SetDefault("checker.heading_timeout", 5*time.Second)
	v.SetDefault("checker.screenshot_timeout", 30*time.Second)
	v.SetDefault("checker.max_retries", 0)
	v.SetDefault("checker.retry_backoff", 2*time.Second)
	v.SetDefault("checker.retry_backoff_max", 20*time.Second)
	v.SetDefault("checker.domain_qps", 0.0)
	v.SetDefault("checker.user_agent", "")
	v.SetDefault("browser.backend", BackendChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("input.path", "./links.csv")
	v.SetDefault("input.url_column", "article_link")
	v.SetDefault("input.title_column", "title")
	v.SetDefault("output.matched_path", "./success.csv")
	v.SetDefault("output.failed_path", "./failure.csv")
	v.SetDefault("output.bot_blocked_path", "./bot_blocked.csv")
	v.SetDefault("output.report_path", "./report.xlsx")
	v.SetDefault("screenshots.backend", ShotsLocal)
	v.SetDefault("screenshots.dir", "./screenshots")
	v.SetDefault("screenshots.gcs_bucket", "")
	v.SetDefault("screenshots.prefix", "screenshots")
	v.SetDefault("screenshots.naming", "index")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "title_checks")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("metrics.api_key", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Checker.Concurrency <= 0 {
		return fmt.Errorf("checker.concurrency must be > 0")
	}
	if c.Checker.NavTimeout <= 0 {
		return fmt.Errorf("checker.nav_timeout must be > 0")
	}
	if c.Checker.HeadingTimeout <= 0 {
		return fmt.Errorf("checker.heading_timeout must be > 0")
	}
	if c.Checker.ScreenshotTimeout <= 0 {
		return fmt.Errorf("checker.screenshot_timeout must be > 0")
	}
	if c.Checker.MaxRetries < 0 {
		return fmt.Errorf("checker.max_retries must be >= 0")
	}
	if c.Checker.MaxRetries > 0 && c.Checker.RetryBackoff <= 0 {
		return fmt.Errorf("checker.retry_backoff must be > 0 when retries are enabled")
	}
	if c.Checker.DomainQPS < 0 {
		return fmt.Errorf("checker.domain_qps must be >= 0")
	}
	switch c.Browser.Backend {
	case BackendChromedp, BackendRod, BackendStatic:
	default:
		return fmt.Errorf("browser.backend must be one of chromedp, rod, static")
	}
	if strings.TrimSpace(c.Input.Path) == "" {
		return fmt.Errorf("input.path must be set")
	}
	if c.Output.MatchedPath == "" || c.Output.FailedPath == "" || c.Output.BotBlockedPath == "" {
		return fmt.Errorf("output sink paths must be set")
	}
	if err := c.Output.distinct(); err != nil {
		return err
	}
	switch c.Screenshots.Backend {
	case ShotsLocal:
		if c.Screenshots.Dir == "" {
			return fmt.Errorf("screenshots.dir must be set for the local backend")
		}
	case ShotsGCS:
		if c.Screenshots.GCSBucket == "" {
			return fmt.Errorf("screenshots.gcs_bucket must be set for the gcs backend")
		}
	case ShotsMemory:
	default:
		return fmt.Errorf("screenshots.backend must be one of local, gcs, memory")
	}
	switch c.Screenshots.Naming {
	case "index", "url":
	default:
		return fmt.Errorf("screenshots.naming must be index or url")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

func (o OutputConfig) distinct() error {
	seen := make(map[string]string, 3)
	for _, p := range []struct{ key, path string }{
		{"output.matched_path", o.MatchedPath},
		{"output.failed_path", o.FailedPath},
		{"output.bot_blocked_path", o.BotBlockedPath},
	} {
		clean := filepath.Clean(p.path)
		if other, ok := seen[clean]; ok {
			return fmt.Errorf("output sink paths must be distinct: %s and %s both use %s", other, p.key, clean)
		}
		seen[clean] = p.key
	}
	return nil
}
