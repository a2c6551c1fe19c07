package config

import (
	"os"
	"testing"
)

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 0},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingRedisAddrs(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing redis addrs")
	}
}

func TestValidate_RadiusBounds(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
		Location: LocationConfig{
			DefaultRadiusKm: 200,
			MaxRadiusKm:     100,
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for default radius above max radius")
	}

	expected := "location.default_radius_km 200.0 exceeds location.max_radius_km 100.0"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Storage.KeyPrefix != "proximity:" {
		t.Errorf("expected KeyPrefix='proximity:', got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Location.PublishIntervalSec != 15 {
		t.Errorf("expected PublishIntervalSec=15, got %d", cfg.Location.PublishIntervalSec)
	}
	if cfg.Location.StaleRepublishSec != 120 {
		t.Errorf("expected StaleRepublishSec=120, got %d", cfg.Location.StaleRepublishSec)
	}
	if cfg.Location.RequeryIntervalSec != 30 {
		t.Errorf("expected RequeryIntervalSec=30, got %d", cfg.Location.RequeryIntervalSec)
	}
	if cfg.Location.CoalesceMs != 150 {
		t.Errorf("expected CoalesceMs=150, got %d", cfg.Location.CoalesceMs)
	}
	if cfg.Location.TeardownGraceSec != 5 {
		t.Errorf("expected TeardownGraceSec=5, got %d", cfg.Location.TeardownGraceSec)
	}
	if cfg.Location.DefaultRadiusKm != 5 {
		t.Errorf("expected DefaultRadiusKm=5, got %.1f", cfg.Location.DefaultRadiusKm)
	}
	if cfg.Location.MaxRadiusKm != 100 {
		t.Errorf("expected MaxRadiusKm=100, got %.1f", cfg.Location.MaxRadiusKm)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{ReadinessTimeout: 15},
		Storage:  StorageConfig{KeyPrefix: "custom:"},
		Location: LocationConfig{
			PublishIntervalSec: 5,
			StaleRepublishSec:  60,
			RequeryIntervalSec: 10,
			CoalesceMs:         50,
			TeardownGraceSec:   2,
			DefaultRadiusKm:    10,
			MaxRadiusKm:        50,
		},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Location.PublishIntervalSec != 5 {
		t.Errorf("expected PublishIntervalSec=5, got %d", cfg.Location.PublishIntervalSec)
	}
	if cfg.Location.DefaultRadiusKm != 10 {
		t.Errorf("expected DefaultRadiusKm=10, got %.1f", cfg.Location.DefaultRadiusKm)
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_PROXIMITY_ADDR", "redis-1:6379")
	defer os.Unsetenv("TEST_PROXIMITY_ADDR")

	in := []byte("addr: ${TEST_PROXIMITY_ADDR}\nprefix: ${TEST_PROXIMITY_UNSET:-fallback:}\nempty: ${TEST_PROXIMITY_UNSET}")
	out := string(expandEnvVars(in))

	expected := "addr: redis-1:6379\nprefix: fallback:\nempty: "
	if out != expected {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", out, expected)
	}
}
