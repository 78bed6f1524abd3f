package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	d := Default()
	if cfg.Server.Addr != d.Server.Addr || cfg.Tracker.ZoomFloor != d.Tracker.ZoomFloor {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Tracker.RevgeoInterval() != 5*time.Second || cfg.Tracker.FixTimeout() != 10*time.Second {
		t.Fatalf("duration helpers: %v %v", cfg.Tracker.RevgeoInterval(), cfg.Tracker.FixTimeout())
	}
	if cfg.Tracker.TrailLimit != 0 {
		t.Fatalf("trail limit default should be unbounded: %d", cfg.Tracker.TrailLimit)
	}
}

func TestLoadYAMLOverrides(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yml")
	body := `
server:
  addr: ":9090"
tracker:
  revgeo_interval_seconds: 10
  zoom_floor: 15
  trail_limit: 500
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr: %q", cfg.Server.Addr)
	}
	if cfg.Tracker.RevgeoIntervalSeconds != 10 || cfg.Tracker.ZoomFloor != 15 || cfg.Tracker.TrailLimit != 500 {
		t.Fatalf("tracker overrides: %+v", cfg.Tracker)
	}
	// 未写的段落保持缺省
	if cfg.Lookup.IPAPIURL != Default().Lookup.IPAPIURL {
		t.Fatalf("lookup default lost: %q", cfg.Lookup.IPAPIURL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yml")
	body := `
tracker:
  zoom_floor: 25
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("zoom_floor above range must fail validation")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("IPAPI_URL", "http://ipapi.test/json/")
	t.Setenv("ADDR", ":7070")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Lookup.IPAPIURL != "http://ipapi.test/json/" || cfg.Server.Addr != ":7070" {
		t.Fatalf("env override not applied: %+v", cfg)
	}
}
