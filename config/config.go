package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Room        RoomConfig        `yaml:"room"`
	Reservation ReservationConfig `yaml:"reservation"`
	Penalty     PenaltyConfig     `yaml:"penalty"`
	Occupancy   OccupancyConfig   `yaml:"occupancy"`
	Database    DatabaseConfig    `yaml:"database"`
	Push        PushConfig        `yaml:"push"`
	WorkerPool  WorkerPoolConfig  `yaml:"worker_pool"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// RoomConfig holds everything about the monitored room and its state
// engine: which room, how often to tick, and the arrival/cleanup margins.
type RoomConfig struct {
	ID                      string `yaml:"id"`
	TickIntervalSeconds     int    `yaml:"tick_interval_seconds"`
	GracePeriodSec          int    `yaml:"grace_period_sec"`
	ArrivalWindowBeforeSec  int    `yaml:"arrival_window_before_sec"`
	ArrivalWindowAfterSec   int    `yaml:"arrival_window_after_sec"`
	CleanupMarginSec        int    `yaml:"cleanup_margin_sec"`
	OccupancyTimeoutSeconds int    `yaml:"occupancy_timeout_seconds"`

	TickInterval     time.Duration `yaml:"-"`
	OccupancyTimeout time.Duration `yaml:"-"`
}

// ReservationConfig holds the booking policy enforced at the request
// layer plus the turnover buffer enforced by the store.
type ReservationConfig struct {
	BufferMinutes int `yaml:"buffer_minutes"`
	MinMinutes    int `yaml:"min_minutes"`
	MaxMinutes    int `yaml:"max_minutes"`
	MaxDaysAhead  int `yaml:"max_days_ahead"`

	Buffer time.Duration `yaml:"-"`
}

// PenaltyConfig holds the rolling-window ban parameters.
type PenaltyConfig struct {
	WindowDays      int `yaml:"window_days"`
	Threshold       int `yaml:"threshold"`
	PointsPerNoShow int `yaml:"points_per_no_show"`
}

// OccupancyConfig selects and configures the occupancy source.
type OccupancyConfig struct {
	Mode   string       `yaml:"mode"` // "dummy" or "camera"
	Camera CameraConfig `yaml:"camera"`
}

// CameraConfig defines the HTTP request to the camera inference endpoint.
type CameraConfig struct {
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
}

// DatabaseConfig holds the storage backend selection and connection
// settings. Backend "memory" needs no DSN.
type DatabaseConfig struct {
	Backend                string `yaml:"backend"` // "memory", "sqlite" or "postgres"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the alert worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path and applies defaults.
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

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when
// no config file is present.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Room.ID == "" {
		cfg.Room.ID = "Room-A"
	}
	if cfg.Room.TickIntervalSeconds <= 0 {
		cfg.Room.TickIntervalSeconds = 5
	}
	if cfg.Room.GracePeriodSec <= 0 {
		cfg.Room.GracePeriodSec = 300
	}
	if cfg.Room.ArrivalWindowBeforeSec <= 0 {
		cfg.Room.ArrivalWindowBeforeSec = 600
	}
	if cfg.Room.ArrivalWindowAfterSec <= 0 {
		cfg.Room.ArrivalWindowAfterSec = 600
	}
	if cfg.Room.CleanupMarginSec <= 0 {
		cfg.Room.CleanupMarginSec = 300
	}
	if cfg.Room.OccupancyTimeoutSeconds <= 0 {
		cfg.Room.OccupancyTimeoutSeconds = 3
	}
	cfg.Room.TickInterval = time.Duration(cfg.Room.TickIntervalSeconds) * time.Second
	cfg.Room.OccupancyTimeout = time.Duration(cfg.Room.OccupancyTimeoutSeconds) * time.Second

	if cfg.Reservation.BufferMinutes <= 0 {
		cfg.Reservation.BufferMinutes = 5
	}
	if cfg.Reservation.MinMinutes <= 0 {
		cfg.Reservation.MinMinutes = 15
	}
	if cfg.Reservation.MaxMinutes <= 0 {
		cfg.Reservation.MaxMinutes = 120
	}
	if cfg.Reservation.MaxDaysAhead <= 0 {
		cfg.Reservation.MaxDaysAhead = 7
	}
	cfg.Reservation.Buffer = time.Duration(cfg.Reservation.BufferMinutes) * time.Minute

	if cfg.Penalty.WindowDays <= 0 {
		cfg.Penalty.WindowDays = 30
	}
	if cfg.Penalty.Threshold <= 0 {
		cfg.Penalty.Threshold = 3
	}
	if cfg.Penalty.PointsPerNoShow <= 0 {
		cfg.Penalty.PointsPerNoShow = 1
	}

	if cfg.Occupancy.Mode == "" {
		cfg.Occupancy.Mode = "dummy"
	}

	if cfg.Database.Backend == "" {
		cfg.Database.Backend = "memory"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes <= 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
}
