package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() should validate: %v", err)
	}
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.PlanDir != "./plans" {
		t.Fatalf("expected default plan_dir, got %q", cfg.PlanDir)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "plan_dir: /var/lib/datatracks/plans\nwal:\n  dir: /var/lib/datatracks/wal\n  segment_max_bytes: 1048576\nengines:\n  - engine_id: e1\n    definition_id: d1\n    kind: sqlite\n    dsn: file:test.db\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PlanDir != "/var/lib/datatracks/plans" {
		t.Fatalf("plan_dir mismatch: %q", cfg.PlanDir)
	}
	if cfg.WAL.SegmentMaxBytes != 1048576 {
		t.Fatalf("segment_max_bytes mismatch: %d", cfg.WAL.SegmentMaxBytes)
	}
	if len(cfg.Engines) != 1 || cfg.Engines[0].Kind != "sqlite" {
		t.Fatalf("engines mismatch: %+v", cfg.Engines)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := "plan_dir = \"/opt/datatracks/plans\"\n\n[wal]\ndir = \"/opt/datatracks/wal\"\nsegment_max_bytes = 2097152\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PlanDir != "/opt/datatracks/plans" {
		t.Fatalf("plan_dir mismatch: %q", cfg.PlanDir)
	}
}

func TestValidateRejectsUnknownEngineKind(t *testing.T) {
	cfg := Default()
	cfg.Engines = []EngineBinding{{EngineID: "e1", DefinitionID: "d1", Kind: "mysql"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown engine kind to fail validation")
	}
}

func TestValidateRejectsDuplicateEngineBinding(t *testing.T) {
	cfg := Default()
	cfg.Engines = []EngineBinding{
		{EngineID: "e1", DefinitionID: "d1", Kind: "sqlite"},
		{EngineID: "e1", DefinitionID: "d1", Kind: "postgres"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate engine binding to fail validation")
	}
}

func TestValidateRejectsBadRetryDuration(t *testing.T) {
	cfg := Default()
	cfg.Retry.InitialDelay = "not-a-duration"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected malformed retry duration to fail validation")
	}
}

func TestValidateRejectsIncompleteIngressBinding(t *testing.T) {
	cfg := Default()
	cfg.Ingress = []IngressBinding{{StationID: "in-1", Path: "/ws"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected ingress binding missing http_port to fail validation")
	}
}

func TestValidateRejectsDuplicatePortAcrossIngressEgress(t *testing.T) {
	cfg := Default()
	cfg.Ingress = []IngressBinding{{StationID: "in-1", Path: "/in", HTTPPort: 8081}}
	cfg.Egress = []EgressBinding{{StationID: "out-1", Path: "/out", HTTPPort: 8081}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate http_port across ingress/egress to fail validation")
	}
}

func TestToRetryConfig(t *testing.T) {
	rc, err := Default().Retry.ToRetryConfig()
	if err != nil {
		t.Fatalf("ToRetryConfig: %v", err)
	}
	if rc.MaxAttempts != 5 || rc.Multiplier != 2.0 {
		t.Fatalf("unexpected retry.Config: %+v", rc)
	}
}
