// Package config loads the execution engine's environment-driven defaults
// (spec §6.6): CLI/environment wiring is deliberately thin, the engine
// itself takes explicit Options.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/chaingraph-labs/engine/exec"
)

// Config mirrors the six environment variables §6.6 names, pre-parsed into
// the types exec.Options expects.
type Config struct {
	DefaultConcurrency   int
	DefaultNodeTimeout   time.Duration
	DefaultFlowTimeout   time.Duration
	EventQueueCapacity   int
	PersistBatchSize     int
	PersistFlushInterval time.Duration
}

// Load reads a `.env` file if present (teacher's leofalp-aigo pattern via
// joho/godotenv, silently ignored if the file is absent) then the six
// environment variables, falling back to the spec's stated defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DefaultConcurrency:   envInt("EXECUTION_DEFAULT_CONCURRENCY", exec.DefaultMaxConcurrency),
		DefaultNodeTimeout:   envMillis("EXECUTION_DEFAULT_NODE_TIMEOUT_MS", exec.DefaultNodeTimeout),
		DefaultFlowTimeout:   envMillis("EXECUTION_DEFAULT_FLOW_TIMEOUT_MS", exec.DefaultFlowTimeout),
		EventQueueCapacity:   envInt("EVENT_QUEUE_CAPACITY", exec.DefaultEventQueueCapacity),
		PersistBatchSize:     envInt("PERSIST_BATCH_SIZE", exec.DefaultPersistBatchSize),
		PersistFlushInterval: envMillis("PERSIST_FLUSH_MS", exec.DefaultPersistFlushInterval),
	}
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envMillis(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

// ToOptions builds a base exec.Options from the loaded defaults; callers
// may still override per-execution fields.
func (c Config) ToOptions() exec.Options {
	return exec.Options{
		MaxConcurrency: c.DefaultConcurrency,
		NodeTimeout:    c.DefaultNodeTimeout,
		FlowTimeout:    c.DefaultFlowTimeout,
	}
}
