// Package judgeconfig loads the Judge Core's runtime configuration from
// the environment, following cmd/main.go's godotenv load sequence and the
// register/validate style of apex-build's internal/config/secrets.go: a
// table of named settings, each with a default and resolved once at
// startup.
package judgeconfig

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived knob the judge core reads at
// startup.
type Config struct {
	Environment string

	IsolateBin string
	BoxRoot    string

	WorkerCount  int
	BoxIDBase    int
	QueueCapacity int
	QueueTimeout time.Duration

	CompileTimeLimitSeconds float64
	MaxTimeLimitSeconds     float64
	MaxMemoryLimitMB        int
	OutputCapBytes          int

	DatabaseURL  string
	DatabaseType string

	RedisURL string

	HTTPAddr string
}

// Load reads .env (if present, following the same best-effort fallback
// search cmd/main.go uses) and then the process environment, returning a
// fully-defaulted Config.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),

		IsolateBin: getEnv("JUDGE_ISOLATE_BIN", "/usr/bin/isolate"),
		BoxRoot:    getEnv("JUDGE_BOX_ROOT", "/var/local/lib/isolate"),

		WorkerCount:   getEnvInt("JUDGE_WORKER_COUNT", defaultWorkerCount()),
		BoxIDBase:     getEnvInt("JUDGE_BOX_ID_BASE", 0),
		QueueCapacity: getEnvInt("JUDGE_QUEUE_CAPACITY", 256),
		QueueTimeout:  time.Duration(getEnvInt("JUDGE_QUEUE_TIMEOUT_SECONDS", 30)) * time.Second,

		CompileTimeLimitSeconds: getEnvFloat("JUDGE_COMPILE_TIME_LIMIT_SECONDS", 30),
		MaxTimeLimitSeconds:     getEnvFloat("JUDGE_MAX_TIME_LIMIT_SECONDS", 20),
		MaxMemoryLimitMB:        getEnvInt("JUDGE_MAX_MEMORY_LIMIT_MB", 1024),
		OutputCapBytes:          getEnvInt("JUDGE_OUTPUT_CAP_BYTES", 64*1024),

		DatabaseURL:  getEnv("DATABASE_URL", "judge_core.db"),
		DatabaseType: getEnv("DATABASE_TYPE", "sqlite"),

		RedisURL: getEnv("JUDGE_REDIS_URL", ""),

		HTTPAddr: getEnv("JUDGE_HTTP_ADDR", ":8080"),
	}

	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("JUDGE_WORKER_COUNT must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.DatabaseType != "postgres" && cfg.DatabaseType != "sqlite" {
		return nil, fmt.Errorf("DATABASE_TYPE must be postgres or sqlite, got %q", cfg.DatabaseType)
	}

	return cfg, nil
}

// BoxIDs returns the N box ids this process's workers own, starting at
// BoxIDBase.
func (c *Config) BoxIDs() []int {
	ids := make([]int, c.WorkerCount)
	for i := range ids {
		ids[i] = c.BoxIDBase + i
	}
	return ids
}

func loadDotEnv() {
	candidates := []string{".env", "../.env", "../../.env"}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func defaultWorkerCount() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
