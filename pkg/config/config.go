// Package config loads process configuration from the environment, the way
// the teacher's pkg/config.Load does: one flat struct, one function, each
// field falling back to a documented default when its variable is unset.
// Generalized from the teacher's server port/log-level/database knobs to
// this core's execution timeout, budget, approval, and adapter settings
// (spec.md §6's options table).
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jamfkit/core/pkg/adapter"
	"github.com/jamfkit/core/pkg/budget"
	"github.com/jamfkit/core/pkg/controller"
)

// Config holds every environment-tunable knob this core exposes.
type Config struct {
	LogLevel string

	ExecutionTimeout time.Duration
	ApprovalTTL      time.Duration

	Tier     budget.Tier
	ReadCap  int
	WriteCap int
	CmdCap   int

	CacheMaxEntries       int
	CacheTTL              time.Duration
	RequestTimeout        time.Duration
	RejectUnauthorizedTLS bool
	RequestsPerSecond     float64
	Burst                 int
}

// Load reads configuration from the environment, applying spec.md §6's
// defaults for anything unset. A tier (JAMFKIT_TIER) sets the three budget
// caps together; explicit JAMFKIT_READ_BUDGET / WRITE_BUDGET / COMMAND_BUDGET
// always override whatever the tier selected, matching spec.md's "explicit
// per-execution overrides take precedence over a tier" rule.
func Load() *Config {
	tier := budget.Tier(getenv("JAMFKIT_TIER", string(budget.TierPro)))
	caps := budget.CapsForTier(tier)

	cc := controller.DefaultConfig()
	ac := adapter.DefaultConfig()

	return &Config{
		LogLevel: getenv("JAMFKIT_LOG_LEVEL", "INFO"),

		ExecutionTimeout: getduration("JAMFKIT_EXECUTION_TIMEOUT_MS", cc.ExecutionTimeout),
		ApprovalTTL:      getduration("JAMFKIT_APPROVAL_TTL_MS", cc.ApprovalTTL),

		Tier:     tier,
		ReadCap:  getint("JAMFKIT_READ_BUDGET", caps.Reads),
		WriteCap: getint("JAMFKIT_WRITE_BUDGET", caps.Writes),
		CmdCap:   getint("JAMFKIT_COMMAND_BUDGET", caps.Commands),

		CacheMaxEntries:       getint("JAMFKIT_CACHE_MAX_ENTRIES", ac.CacheMaxEntries),
		CacheTTL:              getduration("JAMFKIT_CACHE_TTL_MS", ac.CacheTTL),
		RequestTimeout:        getduration("JAMFKIT_REQUEST_TIMEOUT_MS", ac.RequestTimeout),
		RejectUnauthorizedTLS: getbool("JAMFKIT_REJECT_UNAUTHORIZED_TLS", ac.RejectUnauthorizedTLS),
		RequestsPerSecond:     getfloat("JAMFKIT_REQUESTS_PER_SECOND", ac.RequestsPerSecond),
		Burst:                 getint("JAMFKIT_BURST", ac.Burst),
	}
}

// ControllerConfig projects Config onto controller.Config.
func (c *Config) ControllerConfig() controller.Config {
	return controller.Config{
		ExecutionTimeout: c.ExecutionTimeout,
		Caps:             budget.Caps{Reads: c.ReadCap, Writes: c.WriteCap, Commands: c.CmdCap},
		ApprovalTTL:      c.ApprovalTTL,
	}
}

// AdapterConfig projects Config onto adapter.Config.
func (c *Config) AdapterConfig() adapter.Config {
	return adapter.Config{
		CacheMaxEntries:       c.CacheMaxEntries,
		CacheTTL:              c.CacheTTL,
		RequestTimeout:        c.RequestTimeout,
		RejectUnauthorizedTLS: c.RejectUnauthorizedTLS,
		RequestsPerSecond:     c.RequestsPerSecond,
		Burst:                 c.Burst,
	}
}

// SlogLevel parses LogLevel into an slog.Level, defaulting to Info on an
// unrecognized value.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getduration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
