package domain

// AlignmentMode selects single-end or paired-end input handling.
type AlignmentMode string

const (
	ModeSingle AlignmentMode = "single"
	ModePaired AlignmentMode = "paired"
)

// Preset maps to the HISAT2 sensitivity preset flags.
type Preset string

const (
	PresetFast          Preset = "fast"
	PresetSensitive     Preset = "sensitive"
	PresetVerySensitive Preset = "very-sensitive"
)

// Strandness selects the --rna-strandness option; empty means unstranded.
type Strandness string

const (
	StrandNone    Strandness = ""
	StrandForward Strandness = "FR"
	StrandReverse Strandness = "RF"
)

// Settings contains user-selectable runtime configuration. A batch takes an
// immutable snapshot of these values when it starts; later edits only affect
// batches started afterwards.
type Settings struct {
	Hisat2Path     string        `json:"hisat2Path"`
	SamtoolsPath   string        `json:"samtoolsPath"`
	IndexPath      string        `json:"indexPath"`
	AnnotationPath string        `json:"annotationPath,omitempty"`
	OutputDir      string        `json:"outputDir"`
	Threads        int           `json:"threads"`
	Preset         Preset        `json:"preset"`
	Mode           AlignmentMode `json:"alignmentMode"`
	Strandness     Strandness    `json:"strandness,omitempty"`
	DTAMode        bool          `json:"dtaMode"`
	ConvertToBAM   bool          `json:"convertToBam"`
}

// JobStatus tracks the lifecycle of a single sample's alignment job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether a status is final and must not change again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Job is one sample's unit of work within a batch: one or two read files
// mapped to one alignment output, plus an optional converted BAM target.
type Job struct {
	ID            int       `json:"id"`
	SampleName    string    `json:"sampleName"`
	Inputs        []string  `json:"inputs"`
	SAMPath       string    `json:"samPath"`
	BAMPath       string    `json:"bamPath,omitempty"`
	Status        JobStatus `json:"status"`
	ExitCode      *int      `json:"exitCode,omitempty"`
	FailureReason string    `json:"failureReason,omitempty"`
}

// BatchStatus tracks the lifecycle of the whole batch run.
type BatchStatus string

const (
	BatchStatusIdle      BatchStatus = "idle"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusCancelled BatchStatus = "cancelled"
)

// Batch stores the current batch identity and lifecycle status.
type Batch struct {
	ID     string      `json:"id"`
	Status BatchStatus `json:"status"`
}

// BatchSummary aggregates per-job outcomes at the end of a run.
type BatchSummary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Total returns the number of jobs covered by the summary.
func (s BatchSummary) Total() int {
	return s.Succeeded + s.Failed + s.Cancelled
}
