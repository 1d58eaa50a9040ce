// Package batch expands user-selected samples into an ordered job queue
// and drives that queue through the process runner.
package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hisat2-gui/internal/align"
	"hisat2-gui/internal/domain"
)

// Sample is one user-selected input: a single read file or a read pair.
type Sample struct {
	Name  string   `json:"name,omitempty"`
	Reads []string `json:"reads"`
}

// MissingInputReason formats the failure recorded on a job whose input
// file does not exist or is unreadable.
func MissingInputReason(path string) string {
	return fmt.Sprintf("missing input: %s", path)
}

// DuplicateOutputReason formats the failure recorded on a job whose
// output path collides with an earlier job in the same batch.
func DuplicateOutputReason(path string) string {
	return fmt.Sprintf("duplicate output: %s", path)
}

// Planner expands samples plus shared settings into job descriptors.
type Planner struct {
	stat func(string) (os.FileInfo, error)
}

// NewPlanner creates a planner using real filesystem checks.
func NewPlanner() *Planner {
	return &Planner{stat: os.Stat}
}

// NewPlannerForTests creates a planner with an injectable stat.
func NewPlannerForTests(stat func(string) (os.FileInfo, error)) *Planner {
	return &Planner{stat: stat}
}

// Plan produces one job per sample in input order. Configuration problems
// shared by the whole batch abort planning; per-sample problems (missing
// input, duplicate output, missing mate file) mark only that job failed,
// and it will never reach the process runner.
func (p *Planner) Plan(samples []Sample, settings domain.Settings) ([]*domain.Job, error) {
	if err := align.ValidateSettings(settings); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.New("no samples to align")
	}

	claimed := make(map[string]struct{}, len(samples))
	planned := make([]*domain.Job, 0, len(samples))
	for i, sample := range samples {
		job := &domain.Job{
			ID:     i + 1,
			Inputs: append([]string(nil), sample.Reads...),
			Status: domain.JobStatusPending,
		}

		name := strings.TrimSpace(sample.Name)
		if name == "" && len(sample.Reads) > 0 {
			name = SampleNameFromPath(sample.Reads[0])
		}
		if name == "" {
			name = fmt.Sprintf("sample-%d", job.ID)
		}
		job.SampleName = name
		job.SAMPath = filepath.Join(settings.OutputDir, name+".sam")
		if settings.ConvertToBAM {
			job.BAMPath = filepath.Join(settings.OutputDir, name+".bam")
		}

		switch {
		case len(sample.Reads) == 0:
			failJob(job, "no read files selected")
		case settings.Mode == domain.ModePaired && len(sample.Reads) < 2:
			failJob(job, fmt.Sprintf("paired-end mode requires two read files, got %d", len(sample.Reads)))
		default:
			for _, read := range sample.Reads {
				if _, err := p.stat(read); err != nil {
					failJob(job, MissingInputReason(read))
					break
				}
			}
		}

		// Output claims are tracked even for failed jobs so later samples
		// with the same name still collide deterministically.
		if _, taken := claimed[job.SAMPath]; taken && job.Status != domain.JobStatusFailed {
			failJob(job, DuplicateOutputReason(job.SAMPath))
		}
		claimed[job.SAMPath] = struct{}{}

		planned = append(planned, job)
	}

	return planned, nil
}

// failJob marks a job failed at planning time, before any launch.
func failJob(job *domain.Job, reason string) {
	job.Status = domain.JobStatusFailed
	job.FailureReason = reason
}

// SampleNameFromPath derives a sample name from a read file path by
// stripping the recognized FASTQ extensions.
func SampleNameFromPath(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".gz", ".fastq", ".fq"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
