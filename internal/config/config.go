package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration, loaded from TOML with defaults
// applied for anything left unset.
type Config struct {
	Server      Server      `toml:"server"`
	Network     Network     `toml:"network"`
	RateLimit   RateLimit   `toml:"rate_limit"`
	Movement    Movement    `toml:"movement"`
	Gameplay    Gameplay    `toml:"gameplay"`
	Database    Database    `toml:"database"`
	Persistence Persistence `toml:"persistence"`
	Translation Translation `toml:"translation"`
	Paths       Paths       `toml:"paths"`
	Logging     Logging     `toml:"logging"`
}

type Server struct {
	Name string `toml:"name"`
	ID   int    `toml:"id"`
}

type Network struct {
	BindAddress     string `toml:"bind_address"`
	TickRateMs      int    `toml:"tick_rate_ms"`       // main loop tick (input/update cadence)
	ServerTickMs    int    `toml:"server_tick_ms"`     // slow tick (regen, pvp windows)
	InQueueSize     int    `toml:"in_queue_size"`      // per-connection inbound queue
	MaxPayloadBytes int64  `toml:"max_payload_bytes"`  // single frame ceiling
	MaxConnsPerTick int    `toml:"max_conns_per_tick"` // new connection admission cap
	// Backpressure: non-priority sends are deferred while a connection's
	// unsent bytes exceed the ceiling, and a connection whose queued bytes
	// still overrun it is dropped.
	BufferCeilingBytes int64 `toml:"buffer_ceiling_bytes"`
	DeferRetryStepMs   int   `toml:"defer_retry_step_ms"`
	DeferRetryCapMs    int   `toml:"defer_retry_cap_ms"`
	DeferMaxRetries    int   `toml:"defer_max_retries"`
}

type RateLimit struct {
	Enabled         bool `toml:"enabled"`
	MaxRequests     int  `toml:"max_requests"`      // per decay window
	DecayIntervalMs int  `toml:"decay_interval_ms"` // counter reset cadence
	CooldownWindows int  `toml:"cooldown_windows"`  // windows before a limited conn is reinstated
	AuthPerMinute   int  `toml:"auth_per_minute"`   // AUTH attempts per connection
}

type Movement struct {
	FrameRate int     `toml:"frame_rate"` // movement steps per second
	StepX     float64 `toml:"step_x"`     // pixels per frame on X
	StepY     float64 `toml:"step_y"`     // pixels per frame on Y
}

type Gameplay struct {
	SpawnMap         string  `toml:"spawn_map"` // fallback map for new and orphaned players
	AttackCooldownMs int     `toml:"attack_cooldown_ms"`
	AttackRange      float64 `toml:"attack_range"` // pixels, center to center
	PvPQuietSeconds  int     `toml:"pvp_quiet_seconds"`
	XPPerKill        int     `toml:"xp_per_kill"`
	MaxNameLength    int     `toml:"max_name_length"`
	MaxChatLength    int     `toml:"max_chat_length"`
}

type Database struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	PoolSize int    `toml:"pool_size"`
}

// DSN builds a pgx connection string. The password can be supplied through
// MIRTHWOOD_DB_PASSWORD instead of the config file.
func (d Database) DSN() string {
	pw := d.Password
	if env := os.Getenv("MIRTHWOOD_DB_PASSWORD"); env != "" {
		pw = env
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?pool_max_conns=%d",
		d.User, pw, d.Host, d.Port, d.Name, d.PoolSize)
}

type Persistence struct {
	SaveIntervalSec int  `toml:"save_interval_sec"` // dirty session flush cadence
	AutoMigrate     bool `toml:"auto_migrate"`
}

type Translation struct {
	Endpoint        string `toml:"endpoint"` // empty disables translation
	TimeoutMs       int    `toml:"timeout_ms"`
	DefaultLanguage string `toml:"default_language"`
}

type Paths struct {
	MapList    string `toml:"map_list"`    // YAML map metadata
	AssetDir   string `toml:"asset_dir"`   // collision/nopvp layer buffers
	ScriptsDir string `toml:"scripts_dir"` // lua formula overrides, optional
}

type Logging struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"` // "json" or "console"
	File       string `toml:"file"`   // empty logs to stderr only
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// TickInterval returns the main loop cadence.
func (n Network) TickInterval() time.Duration {
	return time.Duration(n.TickRateMs) * time.Millisecond
}

// ServerTickInterval returns the slow tick cadence.
func (n Network) ServerTickInterval() time.Duration {
	return time.Duration(n.ServerTickMs) * time.Millisecond
}

// FramePeriod returns the duration of one movement frame.
func (m Movement) FramePeriod() time.Duration {
	return time.Second / time.Duration(m.FrameRate)
}

// Load reads a TOML config file. Missing file is not an error; defaults are
// returned so the server can run out of the box.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: Server{
			Name: "Mirthwood",
			ID:   1,
		},
		Network: Network{
			BindAddress:        ":8777",
			TickRateMs:         200,
			ServerTickMs:       1000,
			InQueueSize:        256,
			MaxPayloadBytes:    64 * 1024,
			MaxConnsPerTick:    64,
			BufferCeilingBytes: 16 * 1024 * 1024,
			DeferRetryStepMs:   50,
			DeferRetryCapMs:    500,
			DeferMaxRetries:    20,
		},
		RateLimit: RateLimit{
			Enabled:         true,
			MaxRequests:     50,
			DecayIntervalMs: 1000,
			CooldownWindows: 5,
			AuthPerMinute:   10,
		},
		Movement: Movement{
			FrameRate: 60,
			StepX:     2,
			StepY:     2,
		},
		Gameplay: Gameplay{
			SpawnMap:         "overworld",
			AttackCooldownMs: 600,
			AttackRange:      48,
			PvPQuietSeconds:  10,
			XPPerKill:        25,
			MaxNameLength:    24,
			MaxChatLength:    256,
		},
		Database: Database{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "mirthwood",
			Password: "mirthwood",
			Name:     "mirthwood",
			PoolSize: 8,
		},
		Persistence: Persistence{
			SaveIntervalSec: 30,
			AutoMigrate:     true,
		},
		Translation: Translation{
			Endpoint:        "",
			TimeoutMs:       1500,
			DefaultLanguage: "en",
		},
		Paths: Paths{
			MapList:    "data/maps.yaml",
			AssetDir:   "data/layers",
			ScriptsDir: "scripts",
		},
		Logging: Logging{
			Level:      "info",
			Format:     "console",
			File:       "",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}
