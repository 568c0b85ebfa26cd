package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProfilesAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	contents := `
dev:
  project: my-project
  instance: my-instance
  database: my-database
prod:
  project: my-project
  instance: my-instance
  database: prod-database
  thread_pool_size: 16
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	profiles, err := LoadProfiles(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dev, ok := profiles["dev"]
	if !ok {
		t.Fatal("expected dev profile to be present")
	}
	if dev.ThreadPoolSize != defaultThreadPoolSize {
		t.Errorf("expected default thread pool size %d, got %d", defaultThreadPoolSize, dev.ThreadPoolSize)
	}
	if prod := profiles["prod"]; prod.ThreadPoolSize != 16 {
		t.Errorf("expected explicit thread pool size 16, got %d", prod.ThreadPoolSize)
	}
}

func TestLoadProfilesMissingFile(t *testing.T) {
	if _, err := LoadProfiles(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing profiles file")
	}
}

func TestApplyEnvOverlaysRecognizedKeys(t *testing.T) {
	t.Setenv("SPANNERFLUX_PROJECT", "env-project")
	t.Setenv("SPANNERFLUX_THREAD_POOL_SIZE", "8")
	t.Setenv("SPANNERFLUX_USE_PLAIN_TEXT", "true")

	got := ApplyEnv(ConnectionConfig{Project: "base-project", Instance: "base-instance", Database: "base-db"})
	if got.Project != "env-project" {
		t.Errorf("expected env overlay to win, got %s", got.Project)
	}
	if got.ThreadPoolSize != 8 {
		t.Errorf("expected thread pool size 8, got %d", got.ThreadPoolSize)
	}
	if !got.UsePlainText {
		t.Error("expected UsePlainText to be true")
	}
	if got.Instance != "base-instance" {
		t.Errorf("expected unrelated field to be untouched, got %s", got.Instance)
	}
}

func TestConnectionConfigNameFormatting(t *testing.T) {
	cfg := ConnectionConfig{Project: "p", Instance: "i", Database: "d"}
	if got, want := cfg.DatabaseName(), "projects/p/instances/i/databases/d"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got, want := cfg.InstanceName(), "projects/p/instances/i"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
