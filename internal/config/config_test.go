package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.OfferTTL != 2*time.Minute {
		t.Fatalf("OfferTTL = %v, want 2m", cfg.OfferTTL)
	}
	if cfg.CandidateTTL != 5*time.Minute {
		t.Fatalf("CandidateTTL = %v, want 5m", cfg.CandidateTTL)
	}
	if cfg.NotifyWorkers != 4 {
		t.Fatalf("NotifyWorkers = %d, want 4", cfg.NotifyWorkers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", ":9091")
	t.Setenv("CALL_RING_TIMEOUT", "45s")
	t.Setenv("NOTIFY_QUEUE_SIZE", "32")
	t.Setenv("SIGNALING_SWEEP_INTERVAL", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9091" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9091")
	}
	if cfg.RingTimeout != 45*time.Second {
		t.Fatalf("RingTimeout = %v, want 45s", cfg.RingTimeout)
	}
	if cfg.NotifyQueueSize != 32 {
		t.Fatalf("NotifyQueueSize = %d, want 32", cfg.NotifyQueueSize)
	}
	if cfg.SweepInterval != 0 {
		t.Fatalf("SweepInterval = %v, want 0", cfg.SweepInterval)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "CALL_RING_TIMEOUT", "soon"},
		{"negative workers", "NOTIFY_WORKERS", "-1"},
		{"zero queue", "NOTIFY_QUEUE_SIZE", "0"},
		{"bad bool", "APP_ALLOW_ANY_ORIGIN", "maybe"},
		{"empty secret", "JWT_SECRET", "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}
