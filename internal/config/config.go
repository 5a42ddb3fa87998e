package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every knob the process needs. It is constructed once in main
// and passed into constructors; nothing reads the environment afterwards.
type Config struct {
	HTTPAddr string
	LogLevel string
	Env      string

	GCPProjectID   string
	GCPAccessToken string

	InputBucket    string
	VertexBucket   string
	ProjectBuckets map[string]string

	PubSubEndpoint string
	BusMode        string

	StorageEndpoint string
	SignerEndpoint  string

	SecretManagerEndpoint string

	RunnerMode          string
	RunnerEndpoint      string
	ManagedJobEndpoint  string
	ManagedPollInterval time.Duration
	ManagedPollTimeout  time.Duration

	LedgerBackend string
	LedgerTTL     time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresDSN string

	EnabledStages []string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:              addr,
		LogLevel:              envDefault("LOG_LEVEL", "info"),
		Env:                   envDefault("CONVEYOR_ENV", "dev"),
		GCPProjectID:          os.Getenv("GCP_PROJECT_ID"),
		GCPAccessToken:        os.Getenv("GCP_ACCESS_TOKEN"),
		InputBucket:           envDefault("INPUT_BUCKET", "api-input-dev"),
		VertexBucket:          envDefault("VERTEX_BUCKET", "vertex-jobs-dev"),
		ProjectBuckets:        splitKV(os.Getenv("PROJECT_BUCKETS")),
		PubSubEndpoint:        envDefault("PUBSUB_ENDPOINT", "https://pubsub.googleapis.com"),
		BusMode:               envDefault("BUS_MODE", "pubsub"),
		StorageEndpoint:       envDefault("STORAGE_ENDPOINT", "https://storage.googleapis.com"),
		SignerEndpoint:        os.Getenv("SIGNER_ENDPOINT"),
		SecretManagerEndpoint: envDefault("GCP_SECRET_MANAGER_ENDPOINT", "https://secretmanager.googleapis.com"),
		RunnerMode:            envDefault("RUNNER_MODE", "local"),
		RunnerEndpoint:        os.Getenv("RUNNER_ENDPOINT"),
		ManagedJobEndpoint:    os.Getenv("MANAGED_JOB_ENDPOINT"),
		ManagedPollInterval:   envDurationDefault("MANAGED_POLL_INTERVAL", 10*time.Second),
		ManagedPollTimeout:    envDurationDefault("MANAGED_POLL_TIMEOUT", 30*time.Minute),
		LedgerBackend:         envDefault("LEDGER_BACKEND", "redis"),
		LedgerTTL:             envDurationDefault("LEDGER_TTL", 24*time.Hour),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               envIntDefault("REDIS_DB", 0),
		PostgresDSN:           os.Getenv("POSTGRES_DSN"),
		EnabledStages:         splitCSV(envDefault("ENABLED_STAGES", "all")),
	}
}

// StageEnabled reports whether this deployment hosts the named stage. The
// default "all" enables everything, which is what local mode and tests use.
func (c Config) StageEnabled(stage string) bool {
	for _, s := range c.EnabledStages {
		if s == "all" || s == stage {
			return true
		}
	}
	return false
}

// BucketForProject maps an owner project to its input bucket. Unmapped
// projects use the default input bucket.
func (c Config) BucketForProject(projectID string) string {
	if b, ok := c.ProjectBuckets[projectID]; ok {
		return b
	}
	return c.InputBucket
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// splitKV parses "proj-a=bucket-a,proj-b=bucket-b" style pairs.
func splitKV(v string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitCSV(v) {
		k, val, ok := strings.Cut(pair, "=")
		if !ok || k == "" || val == "" {
			continue
		}
		out[k] = val
	}
	return out
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
