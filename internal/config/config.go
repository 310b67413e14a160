package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures credentials, API endpoints, search queries, and the run schedule.
type Config struct {
	Account        AccountConfig        `yaml:"account"`
	Credentials    CredentialsConfig    `yaml:"credentials"`
	API            APIConfig            `yaml:"api"`
	Search         SearchConfig         `yaml:"search"`
	Following      FollowingConfig      `yaml:"following"`
	DirectMessages DirectMessagesConfig `yaml:"directMessages"`
	Replies        RepliesConfig        `yaml:"replies"`
	Schedule       ScheduleConfig       `yaml:"schedule"`
	Storage        StorageConfig        `yaml:"storage"`
	Logging        LoggingConfig        `yaml:"logging"`
	Metrics        MetricsConfig        `yaml:"metrics"`
}

type AccountConfig struct {
	// Handle of the bot account, without "@".
	Handle string `yaml:"handle"`
}

type CredentialsConfig struct {
	// OAuth2 client identity. If empty, read XAPI_CLIENT_ID / XAPI_CLIENT_SECRET
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	// Seed tokens, saved to the store when it holds none yet.
	AccessToken  string `yaml:"accessToken"`
	RefreshToken string `yaml:"refreshToken"`
	// 64 hex characters; tokens are stored in clear when empty.
	EncryptionKey string `yaml:"encryptionKey"`
}

type APIConfig struct {
	BaseURL        string  `yaml:"baseUrl"`
	TokenURL       string  `yaml:"tokenUrl"`
	TimeoutSeconds int     `yaml:"timeoutSeconds"`
	RPS            float64 `yaml:"rps"`
	Burst          int     `yaml:"burst"`
}

type SearchConfig struct {
	Queries       []string `yaml:"queries"`
	LookbackHours int      `yaml:"lookbackHours"`
	MaxPages      int      `yaml:"maxPages"`
	PageDelayMs   int      `yaml:"pageDelayMs"`
}

type FollowingConfig struct {
	MaxPages int `yaml:"maxPages"`
}

type DirectMessagesConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxPages int  `yaml:"maxPages"`
}

type RepliesConfig struct {
	Enabled bool `yaml:"enabled"`
	// Reply budgets; 0 disables the limit.
	MaxPerHour int `yaml:"maxPerHour"`
	MaxPerDay  int `yaml:"maxPerDay"`
}

type ScheduleConfig struct {
	IntervalMinutes int `yaml:"intervalMinutes"`
	// Align runs to interval boundaries (e.g. the top of the hour).
	Align bool `yaml:"align"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Account: AccountConfig{Handle: "reputest"},
		API: APIConfig{
			BaseURL:        "https://api.x.com/2",
			TokenURL:       "https://api.twitter.com/2/oauth2/token",
			TimeoutSeconds: 15,
			RPS:            2,
			Burst:          10,
		},
		Search: SearchConfig{
			Queries:       []string{"#gmgv OR #megajoules", "@reputest"},
			LookbackHours: 6,
			MaxPages:      10,
			PageDelayMs:   500,
		},
		Following:      FollowingConfig{MaxPages: 15},
		DirectMessages: DirectMessagesConfig{Enabled: true, MaxPages: 10},
		Replies:        RepliesConfig{Enabled: true},
		Schedule:       ScheduleConfig{IntervalMinutes: 60, Align: true},
		Storage:        StorageConfig{Driver: "sqlite", DSN: "./reputest.db"},
		Logging:        LoggingConfig{Level: "info", JSON: true},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Credentials.ClientID == "" {
		c.Credentials.ClientID = os.Getenv("XAPI_CLIENT_ID")
	}
	if c.Credentials.ClientSecret == "" {
		c.Credentials.ClientSecret = os.Getenv("XAPI_CLIENT_SECRET")
	}
	if c.Credentials.AccessToken == "" {
		c.Credentials.AccessToken = os.Getenv("XAPI_ACCESS_TOKEN")
	}
	if c.Credentials.RefreshToken == "" {
		c.Credentials.RefreshToken = os.Getenv("XAPI_REFRESH_TOKEN")
	}
	if c.Credentials.EncryptionKey == "" {
		c.Credentials.EncryptionKey = os.Getenv("TOKEN_ENCRYPTION_KEY")
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
		if strings.HasPrefix(v, "postgres") {
			c.Storage.Driver = "postgres"
		}
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("METRICS_ADDR")
	}
	if v := os.Getenv("X_API_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.API.RPS = f
		}
	}
	if v := os.Getenv("X_API_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.API.Burst = n
		}
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Account.Handle == "" {
		return errors.New("account.handle is required")
	}
	if c.Schedule.IntervalMinutes <= 0 {
		return fmt.Errorf("schedule.intervalMinutes must be positive, got %d", c.Schedule.IntervalMinutes)
	}
	if c.Search.MaxPages < 1 || c.Following.MaxPages < 1 {
		return errors.New("page caps must be at least 1")
	}
	if c.DirectMessages.Enabled && c.DirectMessages.MaxPages < 1 {
		return errors.New("directMessages.maxPages must be at least 1")
	}
	if c.Search.LookbackHours <= 0 {
		return errors.New("search.lookbackHours must be positive")
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if k := c.Credentials.EncryptionKey; k != "" {
		b, err := hex.DecodeString(k)
		if err != nil || len(b) != 32 {
			return errors.New("credentials.encryptionKey must be 64 hex characters")
		}
	}
	return nil
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalMinutes) * time.Minute
}

func (c Config) Lookback() time.Duration {
	return time.Duration(c.Search.LookbackHours) * time.Hour
}

func (c Config) PageDelay() time.Duration {
	return time.Duration(c.Search.PageDelayMs) * time.Millisecond
}

// Load reads YAML config from path. Fields missing from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
