// Package diagnostics validates external tools and required filesystem
// paths before any alignment is attempted.
package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"hisat2-gui/internal/align"
	"hisat2-gui/internal/domain"
)

// Checker validates external tools and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("hisat2", settings.Hisat2Path),
		c.checkTool("hisat2-build", align.BuilderPath(settings.Hisat2Path)),
		c.checkTool("samtools", settings.SamtoolsPath),
		c.checkIndexPath(settings.IndexPath),
		c.checkOutputDir(settings.OutputDir),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a configured executable exists, either as an
// absolute/relative path or as a command on PATH.
func (c *Checker) checkTool(name, configured string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "tool_" + name,
		Name: name,
	}

	configured = strings.TrimSpace(configured)
	if configured == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("No path configured for %s", name)
		item.Hint = "Set the tool path in settings or install it so it is available on PATH."
		return item
	}

	if strings.ContainsRune(configured, os.PathSeparator) {
		if _, err := c.stat(configured); err != nil {
			item.Status = domain.DiagnosticStatusFail
			item.Message = fmt.Sprintf("Configured %s path does not exist: %s", name, configured)
			item.Hint = "Fix the tool path in settings."
			return item
		}
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Found at %s", configured)
		return item
	}

	path, err := c.lookPath(configured)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Tool not found in PATH: %s", configured)
		item.Hint = "Install it (e.g. via conda) and ensure the binary is available on PATH."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkIndexPath validates the configured index base by probing the first
// index shard next to it.
func (c *Checker) checkIndexPath(indexPath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "index_path",
		Name: "HISAT2 index",
	}

	if strings.TrimSpace(indexPath) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Index path is empty."
		item.Hint = "Select an existing index base or build one from a reference FASTA."
		return item
	}

	// Index bases have no file of their own; the shards carry .N.ht2
	// suffixes (.ht2l for large genomes).
	for _, suffix := range []string{".1.ht2", ".1.ht2l"} {
		if _, err := c.stat(indexPath + suffix); err == nil {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Index found: %s%s", indexPath, suffix)
			return item
		}
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = fmt.Sprintf("No index files found for base: %s", indexPath)
	item.Hint = "Point to the index base name (without the .N.ht2 suffix) or build a new index."
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where alignment files can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for alignment output."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// IsNotExist reports whether error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
