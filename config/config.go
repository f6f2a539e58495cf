package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override file values,
// e.g. LAUNDRY_DATABASE_DSN.
const EnvPrefix = "laundry"

// Config represents the overall application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server" envconfig:"server"`
	Database     DatabaseConfig     `yaml:"database" envconfig:"database"`
	Log          LogConfig          `yaml:"log" envconfig:"log"`
	Schedule     ScheduleConfig     `yaml:"schedule" envconfig:"schedule"`
	Sweep        SweepConfig        `yaml:"sweep" envconfig:"sweep"`
	Notification NotificationConfig `yaml:"notification" envconfig:"notification"`
	Push         PushConfig         `yaml:"push" envconfig:"push"`
	AMQP         AMQPConfig         `yaml:"amqp" envconfig:"amqp"`
	WorkerPool   WorkerPoolConfig   `yaml:"worker_pool" envconfig:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" envconfig:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" envconfig:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" envconfig:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds" envconfig:"cache_ttl_seconds"`
	AdminToken      string  `yaml:"admin_token" envconfig:"admin_token"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" envconfig:"driver"` // postgres | sqlite
	DSN                    string `yaml:"dsn" envconfig:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns" envconfig:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns" envconfig:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" envconfig:"conn_max_lifetime_minutes"`
	ExclusionConstraint    bool   `yaml:"exclusion_constraint" envconfig:"exclusion_constraint"`
	LogLevel               string `yaml:"log_level" envconfig:"log_level"` // silent | error | warn | info
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level       string `yaml:"level" envconfig:"level"`
	Development bool   `yaml:"development" envconfig:"development"`
}

// ScheduleConfig describes the operating window and booking policy.
type ScheduleConfig struct {
	Timezone            string         `yaml:"timezone" envconfig:"timezone"`
	Open                string         `yaml:"open" envconfig:"open"`
	Close               string         `yaml:"close" envconfig:"close"`
	SlotMinutes         int            `yaml:"slot_minutes" envconfig:"slot_minutes"`
	CategorySlotMinutes map[string]int `yaml:"category_slot_minutes" envconfig:"category_slot_minutes"`
	SameDayCutoff       string         `yaml:"same_day_cutoff" envconfig:"same_day_cutoff"`
	HorizonDays         int            `yaml:"horizon_days" envconfig:"horizon_days"`

	Location    *time.Location `yaml:"-" ignored:"true"`
	OpenOffset  time.Duration  `yaml:"-" ignored:"true"`
	CloseOffset time.Duration  `yaml:"-" ignored:"true"`
	Slot        time.Duration  `yaml:"-" ignored:"true"`
	Cutoff      time.Duration  `yaml:"-" ignored:"true"` // 0 disables the same-day cutoff
}

// SweepConfig holds the confirmation sweep configuration.
type SweepConfig struct {
	Enabled         bool `yaml:"enabled" envconfig:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds" envconfig:"interval_seconds"`
	ReminderMinutes int  `yaml:"reminder_minutes" envconfig:"reminder_minutes"`
	ExpiryMinutes   int  `yaml:"expiry_minutes" envconfig:"expiry_minutes"`

	Interval time.Duration `yaml:"-" ignored:"true"`
	Reminder time.Duration `yaml:"-" ignored:"true"`
	Expiry   time.Duration `yaml:"-" ignored:"true"`
}

// NotificationConfig configures outbound delivery.
type NotificationConfig struct {
	Backend              string  `yaml:"backend" envconfig:"backend"` // log | webpush | amqp
	RatePerSec           float64 `yaml:"rate_per_sec" envconfig:"rate_per_sec"`
	RetryBackoffMillis   int     `yaml:"retry_backoff_ms" envconfig:"retry_backoff_ms"`
	MaxRetryAfterSeconds int     `yaml:"max_retry_after_seconds" envconfig:"max_retry_after_seconds"`
	DefaultLanguage      string  `yaml:"default_language" envconfig:"default_language"`

	RetryBackoff  time.Duration `yaml:"-" ignored:"true"`
	MaxRetryAfter time.Duration `yaml:"-" ignored:"true"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" envconfig:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key" envconfig:"vapid_private_key"`
	Subject    string `yaml:"subject" envconfig:"subject"`
	TTL        int    `yaml:"ttl" envconfig:"ttl"`
}

// AMQPConfig configures the message broker used for lifecycle events and,
// with the amqp notification backend, for message delivery.
type AMQPConfig struct {
	URL           string `yaml:"url" envconfig:"url"`
	Exchange      string `yaml:"exchange" envconfig:"exchange"`
	EventsEnabled bool   `yaml:"events_enabled" envconfig:"events_enabled"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size" envconfig:"size"`
	QueueSize int `yaml:"queue_size" envconfig:"queue_size"`
}

// Load reads the configuration from the given path and applies environment
// overrides on top of it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finalize fills defaults, validates values and derives durations.
func (cfg *Config) finalize() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver %q is not supported", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if err := cfg.Schedule.finalize(); err != nil {
		return err
	}
	if err := cfg.Sweep.finalize(); err != nil {
		return err
	}

	n := &cfg.Notification
	n.Backend = strings.ToLower(n.Backend)
	switch n.Backend {
	case "":
		n.Backend = "log"
	case "log", "webpush", "amqp":
	default:
		return fmt.Errorf("notification.backend %q is not supported", n.Backend)
	}
	if n.RatePerSec <= 0 {
		n.RatePerSec = 20
	}
	if n.RetryBackoffMillis <= 0 {
		n.RetryBackoffMillis = 1000
	}
	if n.MaxRetryAfterSeconds <= 0 {
		n.MaxRetryAfterSeconds = 30
	}
	if n.DefaultLanguage == "" {
		n.DefaultLanguage = "RU"
	}
	n.RetryBackoff = time.Duration(n.RetryBackoffMillis) * time.Millisecond
	n.MaxRetryAfter = time.Duration(n.MaxRetryAfterSeconds) * time.Second

	if n.Backend == "webpush" && (cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "") {
		return fmt.Errorf("push.vapid_public_key and push.vapid_private_key are required for the webpush backend")
	}
	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.AMQP.Exchange == "" {
		cfg.AMQP.Exchange = "laundry.events"
	}
	if (n.Backend == "amqp" || cfg.AMQP.EventsEnabled) && cfg.AMQP.URL == "" {
		return fmt.Errorf("amqp.url is required when the broker is in use")
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 64
	}
	return nil
}

func (s *ScheduleConfig) finalize() error {
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", s.Timezone, err)
	}
	s.Location = loc

	if s.Open == "" {
		s.Open = "08:00"
	}
	if s.Close == "" {
		s.Close = "23:00"
	}
	if s.OpenOffset, err = ParseClock(s.Open); err != nil {
		return fmt.Errorf("schedule.open: %w", err)
	}
	if s.CloseOffset, err = ParseClock(s.Close); err != nil {
		return fmt.Errorf("schedule.close: %w", err)
	}
	if s.OpenOffset >= s.CloseOffset {
		return fmt.Errorf("schedule.open (%s) must be before schedule.close (%s)", s.Open, s.Close)
	}

	if s.SlotMinutes <= 0 {
		s.SlotMinutes = 90
	}
	s.Slot = time.Duration(s.SlotMinutes) * time.Minute
	for category, minutes := range s.CategorySlotMinutes {
		if minutes <= 0 {
			return fmt.Errorf("schedule.category_slot_minutes[%s] must be positive", category)
		}
	}

	if s.SameDayCutoff == "" {
		s.SameDayCutoff = s.Close
	}
	if s.SameDayCutoff == "off" {
		s.Cutoff = 0
	} else if s.Cutoff, err = ParseClock(s.SameDayCutoff); err != nil {
		return fmt.Errorf("schedule.same_day_cutoff: %w", err)
	}
	if s.HorizonDays < 0 {
		return fmt.Errorf("schedule.horizon_days must not be negative")
	}
	return nil
}

// SlotFor returns the slot length for a category, falling back to the default.
func (s *ScheduleConfig) SlotFor(category string) time.Duration {
	if minutes, ok := s.CategorySlotMinutes[strings.ToUpper(category)]; ok {
		return time.Duration(minutes) * time.Minute
	}
	return s.Slot
}

func (s *SweepConfig) finalize() error {
	if s.IntervalSeconds <= 0 {
		s.IntervalSeconds = 60
	}
	if s.ReminderMinutes <= 0 {
		s.ReminderMinutes = 40
	}
	if s.ExpiryMinutes <= 0 {
		s.ExpiryMinutes = 30
	}
	if s.ExpiryMinutes >= s.ReminderMinutes {
		return fmt.Errorf("sweep.expiry_minutes (%d) must be less than sweep.reminder_minutes (%d)", s.ExpiryMinutes, s.ReminderMinutes)
	}
	s.Interval = time.Duration(s.IntervalSeconds) * time.Second
	s.Reminder = time.Duration(s.ReminderMinutes) * time.Minute
	s.Expiry = time.Duration(s.ExpiryMinutes) * time.Minute
	return nil
}

// ParseClock parses a "HH:MM" time of day into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
