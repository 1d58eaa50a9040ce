package config

import (
	"os"
	"path/filepath"
	"testing"

	"hisat2-gui/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.Threads != DefaultThreads {
		t.Fatalf("threads = %d, want %d", cfg.Threads, DefaultThreads)
	}
	if cfg.Preset != domain.PresetSensitive {
		t.Fatalf("preset = %q, want sensitive", cfg.Preset)
	}
	if cfg.Mode != domain.ModeSingle {
		t.Fatalf("mode = %q, want single", cfg.Mode)
	}
	if !cfg.ConvertToBAM {
		t.Fatal("expected BAM conversion enabled by default")
	}
	if cfg.Hisat2Path == "" || cfg.SamtoolsPath == "" {
		t.Fatal("expected non-empty tool paths")
	}
	if cfg.OutputDir == "" {
		t.Fatal("expected non-empty output dir")
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Preset != domain.PresetSensitive {
		t.Fatalf("preset = %q, want sensitive", got.Preset)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := domain.Settings{
		Hisat2Path:     "/opt/hisat2/hisat2",
		SamtoolsPath:   "/usr/bin/samtools",
		IndexPath:      "/ref/grch38/genome",
		AnnotationPath: "/ref/splicesites.txt",
		OutputDir:      "/out",
		Threads:        8,
		Preset:         domain.PresetVerySensitive,
		Mode:           domain.ModePaired,
		Strandness:     domain.StrandForward,
		DTAMode:        true,
		ConvertToBAM:   true,
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}
