package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server        ServerConfig       `json:"server"`
	Providers     []ProviderConfig   `json:"providers"`
	Planner       PlannerConfig      `json:"planner"`
	Automation    AutomationConfig   `json:"automation"`
	Queue         QueueConfig        `json:"queue"`
	Notifications NotificationConfig `json:"notifications"`
	Gateway       GatewayConfig      `json:"gateway"`
	Database      DatabaseConfig     `json:"database"`
	Metrics       MetricsConfig      `json:"metrics"`
	SkillsDir     string             `json:"skills_dir"`
}

type ServerConfig struct {
	Port           int      `json:"port"`
	LogLevel       string   `json:"log_level"`
	CORSOrigins    []string `json:"cors_origins"`
	AllowAnyOrigin bool     `json:"allow_any_origin"`
}

type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Model    string            `json:"model"`
	Timeout  Duration          `json:"timeout"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// PlannerConfig picks the reasoning provider. Default names a provider id;
// Fallbacks are tried in order when it fails.
type PlannerConfig struct {
	Default   string   `json:"default"`
	Fallbacks []string `json:"fallbacks"`
	Model     string   `json:"model"`
}

type AutomationConfig struct {
	BaseURL        string   `json:"base_url"`
	APIKey         string   `json:"api_key"`
	ProfileID      string   `json:"profile_id"`
	ConnectTimeout Duration `json:"connect_timeout"`
	DirectTimeout  Duration `json:"direct_timeout"`
	SessionTimeout Duration `json:"session_timeout"`
	PollInterval   Duration `json:"poll_interval"`
	PollAttempts   int      `json:"poll_attempts"`
	CleanupTimeout Duration `json:"cleanup_timeout"`
	// DryRun answers every skill with a canned result instead of calling
	// the provider.
	DryRun bool `json:"dry_run"`
}

type QueueConfig struct {
	Capacity int      `json:"capacity"`
	Workers  int      `json:"workers"`
	JobDelay Duration `json:"job_delay"`
}

type NotificationConfig struct {
	TitleMax         int      `json:"title_max"`
	ExcerptMax       int      `json:"excerpt_max"`
	SubscriberBuffer int      `json:"subscriber_buffer"`
	KeepAlive        Duration `json:"keep_alive"`
}

type GatewayConfig struct {
	Timeout Duration             `json:"timeout"`
	Stream  StreamGatewayConfig  `json:"stream"`
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
}

type StreamGatewayConfig struct {
	Enabled bool   `json:"enabled"`
	Name    string `json:"name"`
	MaxLen  int64  `json:"max_len"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
	APIURL   string `json:"api_url"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN        string `json:"dsn"`
	Migrations string `json:"migrations"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
}

// Duration is a time.Duration that reads "3s"-style strings or a number
// of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(val * float64(time.Second))
	case string:
		if val == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable
// references and fills unset values with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every zero value with its default. The worker count
// is always 1.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"http://localhost:3000"}
	}

	setDuration(&c.Automation.ConnectTimeout, 10*time.Second)
	setDuration(&c.Automation.DirectTimeout, 30*time.Second)
	setDuration(&c.Automation.SessionTimeout, 180*time.Second)
	setDuration(&c.Automation.PollInterval, 3*time.Second)
	setDuration(&c.Automation.CleanupTimeout, 30*time.Second)
	if c.Automation.PollAttempts <= 0 {
		c.Automation.PollAttempts = 100
	}

	if c.Queue.Capacity <= 0 {
		c.Queue.Capacity = 100
	}
	c.Queue.Workers = 1
	setDuration(&c.Queue.JobDelay, 500*time.Millisecond)

	if c.Notifications.TitleMax <= 0 {
		c.Notifications.TitleMax = 255
	}
	if c.Notifications.ExcerptMax <= 0 {
		c.Notifications.ExcerptMax = 200
	}
	if c.Notifications.SubscriberBuffer <= 0 {
		c.Notifications.SubscriberBuffer = 100
	}
	setDuration(&c.Notifications.KeepAlive, 30*time.Second)

	setDuration(&c.Gateway.Timeout, 10*time.Second)
	if c.Gateway.Stream.Name == "" {
		c.Gateway.Stream.Name = "tappy:notifications"
	}
	if c.Gateway.Stream.MaxLen <= 0 {
		c.Gateway.Stream.MaxLen = 1000
	}

	if c.Database.Postgres.Migrations == "" {
		c.Database.Postgres.Migrations = "migrations"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "tappy"
	}
	if c.SkillsDir == "" {
		c.SkillsDir = "skills"
	}
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Providers) == 0 {
		errs = append(errs, errors.New("at least one provider is required"))
	}
	if c.Automation.APIKey == "" && !c.Automation.DryRun {
		errs = append(errs, errors.New("automation.api_key is required unless automation.dry_run is set"))
	}
	if c.Notifications.TitleMax > 255 {
		errs = append(errs, fmt.Errorf("notifications.title_max %d exceeds the column size 255", c.Notifications.TitleMax))
	}
	if c.Gateway.Stream.Enabled && c.Database.Redis.URL == "" {
		errs = append(errs, errors.New("gateway.stream requires database.redis.url"))
	}
	if c.Gateway.Slack.Enabled && (c.Gateway.Slack.BotToken == "" || c.Gateway.Slack.Channel == "") {
		errs = append(errs, errors.New("gateway.slack requires bot_token and channel"))
	}
	if c.Gateway.Discord.Enabled && (c.Gateway.Discord.BotToken == "" || c.Gateway.Discord.Channel == "") {
		errs = append(errs, errors.New("gateway.discord requires bot_token and channel"))
	}
	return errors.Join(errs...)
}

func setDuration(d *Duration, def time.Duration) {
	if *d <= 0 {
		*d = Duration(def)
	}
}
