// Package align builds argument vectors for the HISAT2 aligner, the
// hisat2-build indexer, and the samtools converter. Commands are always
// constructed as argv slices, never as shell strings, so paths containing
// spaces or shell metacharacters need no quoting layer.
package align

import (
	"fmt"
	"strconv"
	"strings"

	"hisat2-gui/internal/domain"
)

// ConfigError reports invalid batch settings detected before any process
// is launched.
type ConfigError struct {
	Field  string
	Reason string
}

// Error formats the offending field and reason.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ValidateSettings checks the settings fields shared by every job in a
// batch. Returns a *ConfigError describing the first violation found.
func ValidateSettings(settings domain.Settings) error {
	if strings.TrimSpace(settings.Hisat2Path) == "" {
		return &ConfigError{Field: "hisat2Path", Reason: "aligner executable path is empty"}
	}
	if strings.TrimSpace(settings.IndexPath) == "" {
		return &ConfigError{Field: "indexPath", Reason: "index path is empty"}
	}
	if settings.Threads <= 0 {
		return &ConfigError{Field: "threads", Reason: fmt.Sprintf("thread count must be positive, got %d", settings.Threads)}
	}
	switch settings.Preset {
	case domain.PresetFast, domain.PresetSensitive, domain.PresetVerySensitive:
	default:
		return &ConfigError{Field: "preset", Reason: fmt.Sprintf("unknown preset %q", settings.Preset)}
	}
	switch settings.Mode {
	case domain.ModeSingle, domain.ModePaired:
	default:
		return &ConfigError{Field: "alignmentMode", Reason: fmt.Sprintf("unknown mode %q", settings.Mode)}
	}
	switch settings.Strandness {
	case domain.StrandNone, domain.StrandForward, domain.StrandReverse:
	default:
		return &ConfigError{Field: "strandness", Reason: fmt.Sprintf("unknown strandness %q", settings.Strandness)}
	}
	if settings.ConvertToBAM && strings.TrimSpace(settings.SamtoolsPath) == "" {
		return &ConfigError{Field: "samtoolsPath", Reason: "samtools executable path is empty but BAM conversion is enabled"}
	}
	return nil
}

// AlignArgs builds the full hisat2 argv for one job, starting with the
// executable path. Optional flags are omitted entirely when unset.
func AlignArgs(settings domain.Settings, job *domain.Job) ([]string, error) {
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	switch settings.Mode {
	case domain.ModeSingle:
		if len(job.Inputs) < 1 {
			return nil, &ConfigError{Field: "inputs", Reason: "single-end mode requires one read file"}
		}
	case domain.ModePaired:
		if len(job.Inputs) < 2 {
			return nil, &ConfigError{Field: "inputs", Reason: "paired-end mode requires two read files"}
		}
	}
	if strings.TrimSpace(job.SAMPath) == "" {
		return nil, &ConfigError{Field: "samPath", Reason: "alignment output path is empty"}
	}

	args := []string{
		settings.Hisat2Path,
		"-x", settings.IndexPath,
		"-p", strconv.Itoa(settings.Threads),
		"--" + string(settings.Preset),
	}

	if settings.DTAMode {
		args = append(args, "--dta")
	}
	if settings.Strandness != domain.StrandNone {
		args = append(args, "--rna-strandness", string(settings.Strandness))
	}
	if annotation := strings.TrimSpace(settings.AnnotationPath); annotation != "" {
		args = append(args, "--known-splicesite-infile", annotation)
	}

	if settings.Mode == domain.ModePaired {
		args = append(args, "-1", job.Inputs[0], "-2", job.Inputs[1])
	} else {
		args = append(args, "-U", job.Inputs[0])
	}

	args = append(args, "-S", job.SAMPath)
	return args, nil
}

// ViewArgs builds the samtools argv converting a SAM file to BAM.
func ViewArgs(samtoolsPath, samPath, bamPath string) []string {
	return []string{samtoolsPath, "view", "-b", "-o", bamPath, samPath}
}

// SortArgs builds the samtools argv sorting a BAM file.
func SortArgs(samtoolsPath, bamPath, sortedPath string) []string {
	return []string{samtoolsPath, "sort", "-o", sortedPath, bamPath}
}

// BuildIndexArgs builds the hisat2-build argv for creating a new index
// from a reference FASTA file.
func BuildIndexArgs(settings domain.Settings, fastaPath, indexBase string) ([]string, error) {
	if strings.TrimSpace(fastaPath) == "" {
		return nil, &ConfigError{Field: "fastaPath", Reason: "reference FASTA path is empty"}
	}
	if strings.TrimSpace(indexBase) == "" {
		return nil, &ConfigError{Field: "indexBase", Reason: "index base name is empty"}
	}
	if settings.Threads <= 0 {
		return nil, &ConfigError{Field: "threads", Reason: fmt.Sprintf("thread count must be positive, got %d", settings.Threads)}
	}
	if strings.TrimSpace(settings.Hisat2Path) == "" {
		return nil, &ConfigError{Field: "hisat2Path", Reason: "aligner executable path is empty"}
	}

	return []string{
		BuilderPath(settings.Hisat2Path),
		"-p", strconv.Itoa(settings.Threads),
		fastaPath,
		indexBase,
	}, nil
}

// BuilderPath derives the hisat2-build executable path from the aligner
// path, following the tool suite's naming convention.
func BuilderPath(hisat2Path string) string {
	return hisat2Path + "-build"
}
