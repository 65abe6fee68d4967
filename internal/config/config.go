package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

type Config struct {
	Addr       string `toml:"addr"`        // API bind address, e.g., "127.0.0.1:8080" (Windows) or ":8080" (Docker)
	LogDir     string `toml:"log_dir"`     // logs directory
	LogLevel   string `toml:"log_level"`   // debug | info | warn | error
	LogConsole bool   `toml:"log_console"` // also write logs to stderr

	WorkerID       string   `toml:"worker_id"`       // copied into every result
	TimeoutMS      int      `toml:"timeout_ms"`      // per-probe budget
	MaxConcurrency int      `toml:"max_concurrency"` // URLs checked at once per batch; 0 = unbounded
	PingPrivileged bool     `toml:"ping_privileged"` // raw ICMP sockets instead of datagram ones
	Nameservers    []string `toml:"nameservers"`     // empty = system resolver

	MaxBatch       int      `toml:"max_batch"`  // upper bound on URLs per API call
	PublicRPM      int      `toml:"public_rpm"` // per-IP requests per minute; 0 disables
	PublicBurst    int      `toml:"public_burst"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Timeout is TimeoutMS as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func Defaults() Config {
	return Config{
		Addr:        "127.0.0.1:8080",
		LogDir:      "logs",
		LogLevel:    "info",
		WorkerID:    defaultWorkerID(),
		TimeoutMS:   30000,
		MaxBatch:    500,
		PublicRPM:   120,
		PublicBurst: 60,
	}
}

// Load builds the config from defaults, then the TOML file at path (skipped
// when path is empty), then the environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, fmt.Errorf("config file not found: %w", err)
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv is Load without a config file. Invalid values fall back to defaults.
func FromEnv() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	// Bind address (Windows-friendly default)
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Addr = v
	}

	// Logs
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := boolEnv("LOG_CONSOLE"); ok {
		cfg.LogConsole = v
	}

	// Probing
	if v := os.Getenv("WORKER_ID"); v != "" {
		cfg.WorkerID = v
	}
	if n, ok := intEnv("PROBE_TIMEOUT_MS"); ok && n > 0 {
		cfg.TimeoutMS = n
	}
	if n, ok := intEnv("MAX_CONCURRENT_CHECKS"); ok && n >= 0 {
		cfg.MaxConcurrency = n
	}
	if v, ok := boolEnv("PING_PRIVILEGED"); ok {
		cfg.PingPrivileged = v
	}
	if v := os.Getenv("NAMESERVERS"); v != "" {
		cfg.Nameservers = splitList(v)
	}

	// API guard rails
	if n, ok := intEnv("MAX_BATCH"); ok && n > 0 {
		cfg.MaxBatch = n
	}
	if n, ok := intEnv("PUBLIC_RPM"); ok && n >= 0 {
		cfg.PublicRPM = n
	}
	if n, ok := intEnv("PUBLIC_BURST"); ok && n >= 0 {
		cfg.PublicBurst = n
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs error

	if strings.TrimSpace(c.Addr) == "" {
		errs = multierr.Append(errs, fmt.Errorf("addr is required"))
	}
	if strings.TrimSpace(c.LogDir) == "" {
		errs = multierr.Append(errs, fmt.Errorf("log_dir is required"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = multierr.Append(errs, fmt.Errorf("log_level %q must be debug, info, warn or error", c.LogLevel))
	}
	if strings.TrimSpace(c.WorkerID) == "" {
		errs = multierr.Append(errs, fmt.Errorf("worker_id is required"))
	}
	if c.TimeoutMS <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("timeout_ms must be > 0"))
	}
	if c.MaxConcurrency < 0 {
		errs = multierr.Append(errs, fmt.Errorf("max_concurrency must be >= 0"))
	}
	if c.MaxBatch <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("max_batch must be > 0"))
	}
	if c.PublicRPM < 0 || c.PublicBurst < 0 {
		errs = multierr.Append(errs, fmt.Errorf("public_rpm and public_burst must be >= 0"))
	}
	for i, ns := range c.Nameservers {
		if strings.TrimSpace(ns) == "" {
			errs = multierr.Append(errs, fmt.Errorf("nameservers[%d] is empty", i))
		}
	}
	return errs
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + "-" + uuid.NewString()[:8]
}

func intEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func boolEnv(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
