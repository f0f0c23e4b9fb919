package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NOTIFY_TRANSPORT", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("APP_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Addr() != "0.0.0.0:9090" {
		t.Fatalf("Addr() = %q", cfg.App.Addr())
	}
	if cfg.Notification.Transport != TransportLocal {
		t.Fatalf("transport = %q, want %q", cfg.Notification.Transport, TransportLocal)
	}
	if cfg.Auth.InviteTTL() != 7*24*time.Hour {
		t.Fatalf("InviteTTL() = %v", cfg.Auth.InviteTTL())
	}
	if cfg.Notification.Heartbeat() != 15*time.Second {
		t.Fatalf("Heartbeat() = %v", cfg.Notification.Heartbeat())
	}
	if cfg.Public.DefaultShareDays != 14 {
		t.Fatalf("DefaultShareDays = %d", cfg.Public.DefaultShareDays)
	}
}

func TestLoadRejectsBadTransport(t *testing.T) {
	tests := []struct {
		name      string
		transport string
		redisAddr string
	}{
		{name: "unknown transport", transport: "kafka"},
		{name: "redis without address", transport: "redis"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("NOTIFY_TRANSPORT", tc.transport)
			t.Setenv("REDIS_ADDR", tc.redisAddr)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for transport %q", tc.transport)
			}
		})
	}
}

func TestGetEnvAsIntFallsBack(t *testing.T) {
	t.Setenv("FIELDOPS_TEST_INT", "not-a-number")
	if got := getEnvAsInt("FIELDOPS_TEST_INT", 7); got != 7 {
		t.Fatalf("getEnvAsInt() = %d, want 7", got)
	}
}
