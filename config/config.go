package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Writer is a configured author identity with a fixed number of
// topic slots per daily cycle.
type Writer struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Interests []string `yaml:"interests"`
	Quota     int      `yaml:"quota"`
}

// SeasonalEvent is a calendar entry that becomes a topic candidate in
// the weeks leading up to its date.
type SeasonalEvent struct {
	Keyword       string `yaml:"keyword"`
	Category      string `yaml:"category"`
	Day           int    `yaml:"day"`
	PublishBefore int    `yaml:"publish_before"`
}

// EvergreenTopic is a pool entry used when no other source yields a
// candidate.
type EvergreenTopic struct {
	Keyword  string `yaml:"keyword"`
	Category string `yaml:"category"`
}

// Config holds all application configuration.
type Config struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
	OpenAIAPIKey   string `yaml:"openai_api_key"`
	OpenAIModel    string `yaml:"openai_model"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`

	PublishBaseURL string `yaml:"publish_base_url"`
	PublishAPIKey  string `yaml:"publish_api_key"`

	DBPath    string `yaml:"db_path"`
	CycleTime string `yaml:"cycle_time"`
	Timezone  string `yaml:"timezone"`

	PublishWindowStartHour int `yaml:"publish_window_start_hour"`
	PublishWindowEndHour   int `yaml:"publish_window_end_hour"`
	MinGlobalGapMinutes    int `yaml:"min_global_gap_minutes"`
	MinWriterGapMinutes    int `yaml:"min_writer_gap_minutes"`
	PostCooldownSeconds    int `yaml:"post_cooldown_seconds"`

	ApprovalTimeoutMinutes int `yaml:"approval_timeout_minutes"`
	AssetTimeoutMinutes    int `yaml:"asset_timeout_minutes"`
	DedupTTLDays           int `yaml:"dedup_ttl_days"`

	NewsFeedURL   string `yaml:"news_feed_url"`
	TrendsFeedURL string `yaml:"trends_feed_url"`

	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs"`
	LogLevel         string `yaml:"log_level"`

	Writers   []Writer                `yaml:"writers"`
	Calendar  map[int][]SeasonalEvent `yaml:"calendar"`
	Evergreen []EvergreenTopic        `yaml:"evergreen"`
}

// cycleTimeRegex validates HH:MM format with proper ranges.
var cycleTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("BLOGPILOT_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// TotalSlots returns the sum of all writer quotas.
func (c *Config) TotalSlots() int {
	total := 0
	for _, w := range c.Writers {
		total += w.Quota
	}
	return total
}

func applyDefaults(cfg *Config) {
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./blogpilot.db"
	}
	if cfg.CycleTime == "" {
		cfg.CycleTime = "09:00"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.PublishWindowStartHour == 0 {
		cfg.PublishWindowStartHour = 10
	}
	if cfg.PublishWindowEndHour == 0 {
		cfg.PublishWindowEndHour = 22
	}
	if cfg.MinGlobalGapMinutes == 0 {
		cfg.MinGlobalGapMinutes = 60
	}
	if cfg.MinWriterGapMinutes == 0 {
		cfg.MinWriterGapMinutes = 180
	}
	if cfg.PostCooldownSeconds == 0 {
		cfg.PostCooldownSeconds = 30
	}
	if cfg.ApprovalTimeoutMinutes == 0 {
		cfg.ApprovalTimeoutMinutes = 240
	}
	if cfg.AssetTimeoutMinutes == 0 {
		cfg.AssetTimeoutMinutes = 120
	}
	if cfg.DedupTTLDays == 0 {
		cfg.DedupTTLDays = 30
	}
	if cfg.NewsFeedURL == "" {
		cfg.NewsFeedURL = "https://news.google.com/rss"
	}
	if cfg.TrendsFeedURL == "" {
		cfg.TrendsFeedURL = "https://trends.google.com/trending/rss?geo=US"
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 10
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	for i := range cfg.Writers {
		if cfg.Writers[i].Quota == 0 {
			cfg.Writers[i].Quota = 2
		}
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	if dbPath := os.Getenv("BLOGPILOT_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAIAPIKey = key
	}
}

func validate(cfg *Config) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("telegram_token is required")
	}
	if cfg.TelegramChatID == 0 {
		return fmt.Errorf("telegram_chat_id is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("openai_api_key is required")
	}
	if cfg.PublishBaseURL == "" {
		return fmt.Errorf("publish_base_url is required")
	}
	if len(cfg.Writers) == 0 {
		return fmt.Errorf("at least one writer is required")
	}
	for _, w := range cfg.Writers {
		if w.ID == "" {
			return fmt.Errorf("writer id is required")
		}
		if w.Quota < 1 {
			return fmt.Errorf("writer %q quota must be >= 1", w.ID)
		}
	}
	if !cycleTimeRegex.MatchString(cfg.CycleTime) {
		return fmt.Errorf("cycle_time must be in HH:MM format (00:00-23:59), got %q", cfg.CycleTime)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.PublishWindowStartHour < 0 || cfg.PublishWindowStartHour > 23 {
		return fmt.Errorf("publish_window_start_hour out of range: %d", cfg.PublishWindowStartHour)
	}
	if cfg.PublishWindowEndHour < 1 || cfg.PublishWindowEndHour > 24 {
		return fmt.Errorf("publish_window_end_hour out of range: %d", cfg.PublishWindowEndHour)
	}
	if cfg.PublishWindowEndHour <= cfg.PublishWindowStartHour {
		return fmt.Errorf("publish window is empty: %d..%d",
			cfg.PublishWindowStartHour, cfg.PublishWindowEndHour)
	}
	return nil
}
