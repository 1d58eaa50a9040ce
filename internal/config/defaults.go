package config

import (
	"os"
	"os/exec"
	"path/filepath"

	"hisat2-gui/internal/domain"
)

// DefaultThreads matches the aligner's own recommended starting point.
const DefaultThreads = 4

// DefaultSettings returns baseline local configuration for first launch.
// Tool paths prefer PATH discovery and fall back to bare command names.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		Hisat2Path:   findTool("hisat2"),
		SamtoolsPath: findTool("samtools"),
		OutputDir:    filepath.Join(homeDir, "Documents", "Alignments"),
		Threads:      DefaultThreads,
		Preset:       domain.PresetSensitive,
		Mode:         domain.ModeSingle,
		ConvertToBAM: true,
	}
}

// findTool resolves a tool on PATH, falling back to the bare name so the
// user can still fix it later in settings.
func findTool(name string) string {
	path, err := exec.LookPath(name)
	if err != nil {
		return name
	}
	return path
}
