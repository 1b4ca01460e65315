/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// LockBackend selects the lease implementation used to serialize playlist jobs.
type LockBackend string

const (
	LockMemory LockBackend = "memory"
	LockRedis  LockBackend = "redis"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string // empty disables API auth
	MetricsBind   string

	// Locking and job execution
	LockBackend        LockBackend
	LockTTL            time.Duration
	LockAcquireTimeout time.Duration
	WorkerLanes        int
	JobTimeout         time.Duration
	SimulatePlayback   bool // report autonext playback without a gateway

	// Multi-instance configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	InstanceID    string
	Instances     []string // all instance ids sharing the database, for studio ownership

	// Timeline fan-out
	NATSURL           string
	NATSSubject       string
	RedisPublish      bool
	RedisChannel      string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO
	S3ArchivePrefix   string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Studio seeding and time-of-day timers
	StudioFile string
	Timezone   string

	// ActionLogRetention bounds how long operator actions are kept; zero keeps them forever.
	ActionLogRetention time.Duration
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"GRIMNIR_ENV", "RUNDOWN_ENV"}, "development"),
		HTTPBind:      getEnvAny([]string{"GRIMNIR_HTTP_BIND", "RUNDOWN_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"GRIMNIR_HTTP_PORT", "RUNDOWN_HTTP_PORT"}, 8080),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"GRIMNIR_DB_BACKEND", "RUNDOWN_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:         getEnvAny([]string{"GRIMNIR_DB_DSN", "RUNDOWN_DB_DSN"}, ""),
		JWTSigningKey: getEnvAny([]string{"GRIMNIR_JWT_SIGNING_KEY", "RUNDOWN_JWT_SIGNING_KEY"}, ""),
		MetricsBind:   getEnvAny([]string{"GRIMNIR_METRICS_BIND", "RUNDOWN_METRICS_BIND"}, "127.0.0.1:9000"),

		LockBackend:        LockBackend(getEnvAny([]string{"GRIMNIR_LOCK_BACKEND", "RUNDOWN_LOCK_BACKEND"}, string(LockMemory))),
		LockTTL:            getEnvDurationAny([]string{"GRIMNIR_LOCK_TTL", "RUNDOWN_LOCK_TTL"}, 15*time.Second),
		LockAcquireTimeout: getEnvDurationAny([]string{"GRIMNIR_LOCK_ACQUIRE_TIMEOUT", "RUNDOWN_LOCK_ACQUIRE_TIMEOUT"}, 10*time.Second),
		WorkerLanes:        getEnvIntAny([]string{"GRIMNIR_WORKER_LANES", "RUNDOWN_WORKER_LANES"}, 4),
		JobTimeout:         getEnvDurationAny([]string{"GRIMNIR_JOB_TIMEOUT", "RUNDOWN_JOB_TIMEOUT"}, 30*time.Second),
		SimulatePlayback:   getEnvBoolAny([]string{"GRIMNIR_SIMULATE_PLAYBACK", "RUNDOWN_SIMULATE_PLAYBACK"}, false),

		RedisAddr:     getEnvAny([]string{"GRIMNIR_REDIS_ADDR", "RUNDOWN_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"GRIMNIR_REDIS_PASSWORD", "RUNDOWN_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"GRIMNIR_REDIS_DB", "RUNDOWN_REDIS_DB"}, 0),
		InstanceID:    getEnvAny([]string{"GRIMNIR_INSTANCE_ID", "RUNDOWN_INSTANCE_ID"}, ""),
		Instances:     splitList(getEnvAny([]string{"GRIMNIR_INSTANCES", "RUNDOWN_INSTANCES"}, "")),

		NATSURL:           getEnvAny([]string{"GRIMNIR_NATS_URL", "NATS_URL"}, ""),
		NATSSubject:       getEnvAny([]string{"GRIMNIR_NATS_SUBJECT", "RUNDOWN_NATS_SUBJECT"}, "rundown"),
		RedisPublish:      getEnvBoolAny([]string{"GRIMNIR_REDIS_PUBLISH", "RUNDOWN_REDIS_PUBLISH"}, false),
		RedisChannel:      getEnvAny([]string{"GRIMNIR_REDIS_CHANNEL", "RUNDOWN_REDIS_CHANNEL"}, "grimnir:rundown"),
		S3Region:          getEnvAny([]string{"GRIMNIR_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"GRIMNIR_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"GRIMNIR_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"GRIMNIR_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),
		S3ArchivePrefix:   getEnvAny([]string{"GRIMNIR_S3_ARCHIVE_PREFIX", "S3_ARCHIVE_PREFIX"}, "timelines"),
		S3AccessKeyID:     getEnvAny([]string{"GRIMNIR_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"GRIMNIR_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),

		TracingEnabled:    getEnvBoolAny([]string{"GRIMNIR_TRACING_ENABLED", "RUNDOWN_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"GRIMNIR_OTLP_ENDPOINT", "RUNDOWN_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"GRIMNIR_TRACING_SAMPLE_RATE", "RUNDOWN_TRACING_SAMPLE_RATE"}, 1.0),

		StudioFile: getEnvAny([]string{"GRIMNIR_STUDIO_FILE", "RUNDOWN_STUDIO_FILE"}, ""),
		Timezone:   getEnvAny([]string{"GRIMNIR_TIMEZONE", "TZ"}, "UTC"),

		ActionLogRetention: getEnvDurationAny([]string{"GRIMNIR_ACTION_LOG_RETENTION", "RUNDOWN_ACTION_LOG_RETENTION"}, 30*24*time.Hour),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("GRIMNIR_DB_DSN or RUNDOWN_DB_DSN must be provided")
	}

	if cfg.LockBackend != LockMemory && cfg.LockBackend != LockRedis {
		return nil, fmt.Errorf("unsupported lock backend %q", cfg.LockBackend)
	}

	if cfg.WorkerLanes < 1 {
		return nil, fmt.Errorf("GRIMNIR_WORKER_LANES must be at least 1, got %d", cfg.WorkerLanes)
	}

	if cfg.LockTTL <= 0 || cfg.LockAcquireTimeout <= 0 || cfg.JobTimeout <= 0 {
		return nil, fmt.Errorf("lock ttl, lock acquire timeout and job timeout must be positive")
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.JWTSigningKey == "" {
			return nil, fmt.Errorf("GRIMNIR_JWT_SIGNING_KEY or RUNDOWN_JWT_SIGNING_KEY must be provided in production")
		}
		if len(cfg.Instances) > 1 && cfg.LockBackend != LockRedis {
			return nil, fmt.Errorf("GRIMNIR_LOCK_BACKEND must be redis when several instances share a database")
		}
	}

	return cfg, nil
}

// Location returns the configured timezone for time-of-day timers.
func (c *Config) Location() *time.Location {
	if c == nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvDurationAny accepts Go duration strings ("15s") or plain milliseconds.
func getEnvDurationAny(keys []string, def time.Duration) time.Duration {
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
