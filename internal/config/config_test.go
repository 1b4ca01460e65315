package config

import (
	"testing"
	"time"

	"github.com/friendsincode/grimnir_rundown/internal/models"
)

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("GRIMNIR_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("GRIMNIR_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("GRIMNIR_ENV", "development")
	t.Setenv("GRIMNIR_LOCK_TTL", "20s")
	t.Setenv("GRIMNIR_JOB_TIMEOUT", "2500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
	if cfg.LockTTL != 20*time.Second {
		t.Fatalf("unexpected lock ttl: %s", cfg.LockTTL)
	}
	if cfg.JobTimeout != 2500*time.Millisecond {
		t.Fatalf("unexpected job timeout: %s", cfg.JobTimeout)
	}
	if cfg.LockBackend != LockMemory {
		t.Fatalf("expected memory lock backend by default, got %q", cfg.LockBackend)
	}
}

func TestLoadAcceptsRundownAliases(t *testing.T) {
	t.Setenv("RUNDOWN_DB_DSN", "file::memory:")
	t.Setenv("RUNDOWN_DB_BACKEND", "sqlite")
	t.Setenv("RUNDOWN_INSTANCES", "a, b,,c")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("unexpected backend %q", cfg.DBBackend)
	}
	if len(cfg.Instances) != 3 || cfg.Instances[1] != "b" {
		t.Fatalf("unexpected instances %v", cfg.Instances)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing dsn", map[string]string{}},
		{"bad backend", map[string]string{"GRIMNIR_DB_DSN": "x", "GRIMNIR_DB_BACKEND": "oracle"}},
		{"bad lock backend", map[string]string{"GRIMNIR_DB_DSN": "x", "GRIMNIR_LOCK_BACKEND": "etcd"}},
		{"zero lanes", map[string]string{"GRIMNIR_DB_DSN": "x", "GRIMNIR_WORKER_LANES": "0"}},
		{"bad timezone", map[string]string{"GRIMNIR_DB_DSN": "x", "GRIMNIR_TIMEZONE": "Mars/Olympus"}},
		{"production without jwt", map[string]string{"GRIMNIR_DB_DSN": "x", "GRIMNIR_ENV": "production"}},
		{"production multi instance memory lock", map[string]string{
			"GRIMNIR_DB_DSN": "x", "GRIMNIR_ENV": "production", "GRIMNIR_JWT_SIGNING_KEY": "k",
			"GRIMNIR_INSTANCES": "a,b",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GRIMNIR_DB_DSN", "")
			t.Setenv("RUNDOWN_DB_DSN", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected load to fail")
			}
		})
	}
}

func TestParseStudioFile(t *testing.T) {
	raw := []byte(`
studios:
  - id: studio0
    name: Studio A
    settings:
      minimumTakeSpanMs: 500
      forceQuickLoopAutoNext: enabled_when_valid_duration
      mappings:
        vt:
          device: caspar
          lookaheadMode: preload
          lookaheadTargetObjects: 2
          lookaheadMaxSearchDistance: 5
      abPools:
        clip:
          players:
            - id: p1
              mixerInput: 3
            - id: p2
              mixerInput: 4
      routeSets:
        backup:
          active: false
          abPlayers:
            - poolName: clip
              playerId: p2
`)

	studios, err := ParseStudioFile(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(studios) != 1 {
		t.Fatalf("expected 1 studio, got %d", len(studios))
	}
	s := studios[0].Settings
	if s.MinimumTakeSpanMs != 500 {
		t.Fatalf("unexpected take span %d", s.MinimumTakeSpanMs)
	}
	if !s.AllowHold {
		t.Fatal("expected default AllowHold to survive partial settings")
	}
	if s.Mappings["vt"].LookaheadMode != models.LookaheadPreload {
		t.Fatalf("unexpected mapping %+v", s.Mappings["vt"])
	}
	if len(s.AbPools["clip"].Players) != 2 {
		t.Fatalf("unexpected pool %+v", s.AbPools["clip"])
	}
}

func TestParseStudioFileRejectsUnknownPool(t *testing.T) {
	raw := []byte(`
studios:
  - id: s
    settings:
      routeSets:
        main:
          abPlayers:
            - poolName: missing
              playerId: p1
`)
	if _, err := ParseStudioFile(raw); err == nil {
		t.Fatal("expected unknown pool to be rejected")
	}
}
