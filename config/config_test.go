package config

import (
	"os"
	"path/filepath"
	"testing"

	"nobroker_watchdog/models"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("CITY", "Bangalore")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SoftMatchThreshold != 70 {
		t.Fatalf("default threshold must be 70, got %d", cfg.SoftMatchThreshold)
	}
	if cfg.ScanIntervalMinutes != 10 || cfg.ListingAgeMaxHours != 48 {
		t.Fatalf("unexpected scan defaults: %+v", cfg)
	}
	if cfg.HTTPMinDelaySeconds != 1.2 || cfg.HTTPMaxDelaySeconds != 2.4 {
		t.Fatalf("unexpected delay defaults: %+v", cfg)
	}
	if cfg.StateDBPath != "state.db" {
		t.Fatalf("unexpected db path %q", cfg.StateDBPath)
	}
}

func TestLoad_MissingCity(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("CITY", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected an error without CITY")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
city: Bangalore
areas:
  - Koramangala
  - HSR Layout
budget_min: 20000
budget_max: 30000
bhk_in: [2, 3]
soft_match_threshold: 85
score_weights:
  amenities: 40
  carpet: 20
  floor: 15
  pets: 10
  move_in: 15
area_coords:
  Koramangala:
    lat: 12.9279
    lng: 77.6271
proximity_km: 3
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CITY", "")
	t.Setenv("AREAS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.City != "Bangalore" || len(cfg.Areas) != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.SoftMatchThreshold != 85 {
		t.Fatalf("yaml threshold must win over the default, got %d", cfg.SoftMatchThreshold)
	}
	if cfg.ScoreWeights.Amenities != 40 {
		t.Fatalf("unexpected weights %+v", cfg.ScoreWeights)
	}
	if c, ok := cfg.AreaCoords["Koramangala"]; !ok || c.Lat != 12.9279 {
		t.Fatalf("unexpected coords %+v", cfg.AreaCoords)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfigFile(t, `
city: Bangalore
budget_max: 30000
soft_match_threshold: 85
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CITY", "Pune")
	t.Setenv("BUDGET_MAX", "25000")
	t.Setenv("AREAS", "Baner; Aundh")
	t.Setenv("BHK_IN", "1,2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.City != "Pune" {
		t.Fatalf("env CITY must override yaml, got %q", cfg.City)
	}
	if cfg.BudgetMax != 25000 {
		t.Fatalf("env BUDGET_MAX must override yaml, got %d", cfg.BudgetMax)
	}
	if len(cfg.Areas) != 2 || cfg.Areas[0] != "Baner" || cfg.Areas[1] != "Aundh" {
		t.Fatalf("semicolon list must parse, got %v", cfg.Areas)
	}
	if len(cfg.BHKIn) != 2 || cfg.BHKIn[0] != 1 {
		t.Fatalf("int list must parse, got %v", cfg.BHKIn)
	}
	if cfg.SoftMatchThreshold != 85 {
		t.Fatalf("untouched yaml values must survive, got %d", cfg.SoftMatchThreshold)
	}
}

func TestParseAreaCoords(t *testing.T) {
	coords := parseAreaCoords("Koramangala, Bangalore|12.9279|77.6271;HSR Layout|12.9116|77.6389;broken|x|y")
	if len(coords) != 2 {
		t.Fatalf("expected 2 valid entries, got %v", coords)
	}
	if c := coords["Koramangala, Bangalore"]; c.Lat != 12.9279 || c.Lng != 77.6271 {
		t.Fatalf("unexpected coord %+v", c)
	}
}

func TestCriteria_RadiusModeGating(t *testing.T) {
	cfg := &Config{City: "Bangalore", ProximityKm: 3}
	if cfg.Criteria().AreaMode != models.AreaMatchExact {
		t.Fatalf("radius mode needs area centers")
	}

	cfg.AreaCoords = map[string]models.Coord{"Koramangala": {Lat: 12.9, Lng: 77.6}}
	if cfg.Criteria().AreaMode != models.AreaMatchRadius {
		t.Fatalf("radius mode must engage with coords and a distance")
	}

	cfg.ProximityKm = 0
	if cfg.Criteria().AreaMode != models.AreaMatchExact {
		t.Fatalf("zero distance must disable radius mode")
	}
}

func TestPreferences_MoveInParsing(t *testing.T) {
	cfg := &Config{MoveInBy: "2026-09-15"}
	p := cfg.Preferences()
	if p.MoveInBy == nil || p.MoveInBy.Day() != 15 {
		t.Fatalf("move-in date must parse, got %v", p.MoveInBy)
	}

	cfg.MoveInBy = "soonish"
	if cfg.Preferences().MoveInBy != nil {
		t.Fatalf("junk move-in date must be ignored")
	}
}

func TestScanInterval_Floor(t *testing.T) {
	cfg := &Config{ScanIntervalMinutes: 0}
	if cfg.ScanInterval().Minutes() != 1 {
		t.Fatalf("interval must floor at one minute, got %v", cfg.ScanInterval())
	}
}
