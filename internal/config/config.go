// Package config loads service configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Provider is the read-only configuration contract consumed by the rest of
// the service.
type Provider interface {
	GetServerAddr() string
	GetDatabasePath() string
	GetSessionBackend() string
	GetSessionRetention() time.Duration
	GetSessionSweepInterval() time.Duration
	GetHistoryMaxEntries() int
	GetHistoryRetention() time.Duration
	GetPoolMaxSize() int
	GetPoolAcquireTimeout() time.Duration
	GetMaxExecutionsPerInterpreter() int
	GetMaxIdleTime() time.Duration
	GetRecycleOnError() bool
	GetClearVariablesBetweenExecutions() bool
	GetValidateBeforeUse() bool
	GetGrowthStrategy() string
	GetMaxConcurrentExecutions() int
	GetDefaultTimeout() time.Duration
	GetScriptsDir() string
	GetHotReload() bool
}

// Config holds all configuration for the service.
type Config struct {
	ServerAddr                      string
	DatabasePath                    string
	SessionBackend                  string
	SessionRetention                time.Duration
	SessionSweepInterval            time.Duration
	HistoryMaxEntries               int
	HistoryRetention                time.Duration
	PoolMaxSize                     int
	PoolAcquireTimeout              time.Duration
	MaxExecutionsPerInterpreter     int
	MaxIdleTime                     time.Duration
	RecycleOnError                  bool
	ClearVariablesBetweenExecutions bool
	ValidateBeforeUse               bool
	GrowthStrategy                  string
	MaxConcurrentExecutions         int
	DefaultTimeout                  time.Duration
	ScriptsDir                      string
	HotReload                       bool
}

// New loads configuration from environment variables, falling back to
// defaults suitable for local development.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	return &Config{
		ServerAddr:                      envString("SERVER_ADDR", ":8080"),
		DatabasePath:                    envString("DATABASE_PATH", "sandscript.db"),
		SessionBackend:                  envString("SESSION_BACKEND", "sqlite"),
		SessionRetention:                envDuration("SESSION_RETENTION", 24*time.Hour),
		SessionSweepInterval:            envDuration("SESSION_SWEEP_INTERVAL", time.Hour),
		HistoryMaxEntries:               envInt("HISTORY_MAX_ENTRIES", 1000),
		HistoryRetention:                envDuration("HISTORY_RETENTION", 24*time.Hour),
		PoolMaxSize:                     envInt("POOL_MAX_SIZE", 10),
		PoolAcquireTimeout:              envDuration("POOL_ACQUIRE_TIMEOUT", 10*time.Second),
		MaxExecutionsPerInterpreter:     envInt("POOL_MAX_EXECUTIONS", 100),
		MaxIdleTime:                     envDuration("POOL_MAX_IDLE_TIME", 10*time.Minute),
		RecycleOnError:                  envBool("POOL_RECYCLE_ON_ERROR", true),
		ClearVariablesBetweenExecutions: envBool("POOL_CLEAR_VARIABLES", true),
		ValidateBeforeUse:               envBool("POOL_VALIDATE_BEFORE_USE", true),
		GrowthStrategy:                  envString("POOL_GROWTH_STRATEGY", "adaptive"),
		MaxConcurrentExecutions:         envInt("MAX_CONCURRENT_EXECUTIONS", 10),
		DefaultTimeout:                  envDuration("DEFAULT_EXECUTION_TIMEOUT", 30*time.Second),
		ScriptsDir:                      envString("SCRIPTS_DIR", "scripts"),
		HotReload:                       envBool("SCRIPTS_HOT_RELOAD", true),
	}
}

func (c *Config) GetServerAddr() string                        { return c.ServerAddr }
func (c *Config) GetDatabasePath() string                      { return c.DatabasePath }
func (c *Config) GetSessionBackend() string                    { return c.SessionBackend }
func (c *Config) GetSessionRetention() time.Duration           { return c.SessionRetention }
func (c *Config) GetSessionSweepInterval() time.Duration       { return c.SessionSweepInterval }
func (c *Config) GetHistoryMaxEntries() int                    { return c.HistoryMaxEntries }
func (c *Config) GetHistoryRetention() time.Duration           { return c.HistoryRetention }
func (c *Config) GetPoolMaxSize() int                          { return c.PoolMaxSize }
func (c *Config) GetPoolAcquireTimeout() time.Duration         { return c.PoolAcquireTimeout }
func (c *Config) GetMaxExecutionsPerInterpreter() int          { return c.MaxExecutionsPerInterpreter }
func (c *Config) GetMaxIdleTime() time.Duration                { return c.MaxIdleTime }
func (c *Config) GetRecycleOnError() bool                      { return c.RecycleOnError }
func (c *Config) GetClearVariablesBetweenExecutions() bool     { return c.ClearVariablesBetweenExecutions }
func (c *Config) GetValidateBeforeUse() bool                   { return c.ValidateBeforeUse }
func (c *Config) GetGrowthStrategy() string                    { return c.GrowthStrategy }
func (c *Config) GetMaxConcurrentExecutions() int              { return c.MaxConcurrentExecutions }
func (c *Config) GetDefaultTimeout() time.Duration             { return c.DefaultTimeout }
func (c *Config) GetScriptsDir() string                        { return c.ScriptsDir }
func (c *Config) GetHotReload() bool                           { return c.HotReload }

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %t", key, v, fallback)
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}
