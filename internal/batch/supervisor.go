package batch

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"hisat2-gui/internal/align"
	"hisat2-gui/internal/domain"
	"hisat2-gui/internal/jobs"
	"hisat2-gui/internal/runner"
)

// Process is the supervisor's view of one launched external command.
type Process interface {
	Cancel()
	CancelRequested() bool
}

// CommandStarter abstracts process launching for testability.
type CommandStarter interface {
	Start(argv []string, callbacks runner.Callbacks) (Process, error)
}

// ExecStarter launches real processes through the streaming runner.
type ExecStarter struct {
	runner *runner.Runner
}

// NewExecStarter wraps a runner as a CommandStarter.
func NewExecStarter(r *runner.Runner) *ExecStarter {
	return &ExecStarter{runner: r}
}

// Start launches the command and returns its handle.
func (s *ExecStarter) Start(argv []string, callbacks runner.Callbacks) (Process, error) {
	handle, err := s.runner.Start(argv, callbacks)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Supervisor drives a planned job sequence to completion, one external
// process at a time. The wrapped aligner parallelizes internally via its
// thread-count flag, so jobs run sequentially.
type Supervisor struct {
	starter CommandStarter
	publish func(jobs.Event)
	remove  func(string) error
	rename  func(oldPath, newPath string) error

	mu        sync.Mutex
	cancelled bool
	active    Process
}

// NewSupervisor creates a supervisor publishing events through the given
// function. The publish function must not block.
func NewSupervisor(starter CommandStarter, publish func(jobs.Event)) *Supervisor {
	return &Supervisor{
		starter: starter,
		publish: publish,
		remove:  os.Remove,
		rename:  os.Rename,
	}
}

// NewSupervisorForTests creates a supervisor with injectable filesystem
// operations for the conversion cleanup step.
func NewSupervisorForTests(
	starter CommandStarter,
	publish func(jobs.Event),
	remove func(string) error,
	rename func(oldPath, newPath string) error,
) *Supervisor {
	return &Supervisor{
		starter: starter,
		publish: publish,
		remove:  remove,
		rename:  rename,
	}
}

// Cancel requests cancellation of the running batch: the in-flight process
// is signalled, and no further jobs start. Safe to call repeatedly and
// from any goroutine.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	active := s.active
	s.mu.Unlock()

	if active != nil {
		active.Cancel()
	}
}

// cancelRequested reports whether Cancel has been called for this run.
func (s *Supervisor) cancelRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Run processes the planned jobs in order and returns the aggregate
// summary and the batch's terminal status. A failed job never halts the
// loop; only cancellation stops the remaining queue, marking every job
// still pending as cancelled without launching it.
func (s *Supervisor) Run(batchID string, planned []*domain.Job, settings domain.Settings) (domain.BatchSummary, domain.BatchStatus) {
	s.mu.Lock()
	s.cancelled = false
	s.active = nil
	s.mu.Unlock()

	var summary domain.BatchSummary
	for _, job := range planned {
		s.dispatch(batchID, job, settings)

		switch job.Status {
		case domain.JobStatusSucceeded:
			summary.Succeeded++
		case domain.JobStatusCancelled:
			summary.Cancelled++
		default:
			summary.Failed++
		}
	}

	status := domain.BatchStatusCompleted
	if s.cancelRequested() {
		status = domain.BatchStatusCancelled
	}

	s.publish(jobs.Event{
		BatchID:     batchID,
		Type:        jobs.EventTypeSummary,
		BatchStatus: status,
		Message: fmt.Sprintf("Batch finished: %d succeeded, %d failed, %d cancelled",
			summary.Succeeded, summary.Failed, summary.Cancelled),
		Summary: &summary,
	})
	return summary, status
}

// dispatch runs one job end to end: start event, output lines, exactly one
// terminal event.
func (s *Supervisor) dispatch(batchID string, job *domain.Job, settings domain.Settings) {
	if s.cancelRequested() {
		if !job.Status.Terminal() {
			job.Status = domain.JobStatusCancelled
		}
		s.publishTerminal(batchID, job)
		return
	}

	if job.Status == domain.JobStatusFailed {
		// Rejected by the planner; report without launching anything.
		s.publishStatus(batchID, job, domain.JobStatusFailed, "Job skipped: "+job.FailureReason)
		s.publishTerminal(batchID, job)
		return
	}

	argv, err := align.AlignArgs(settings, job)
	if err != nil {
		job.Status = domain.JobStatusFailed
		job.FailureReason = err.Error()
		s.publishStatus(batchID, job, domain.JobStatusFailed, "Job skipped: "+job.FailureReason)
		s.publishTerminal(batchID, job)
		return
	}

	job.Status = domain.JobStatusRunning
	s.publishStatus(batchID, job, domain.JobStatusRunning, "Starting alignment for "+job.SampleName)
	s.publishCommand(batchID, job, argv)

	state, exitCode, launchErr := s.runCommand(batchID, job, argv)
	if launchErr != nil {
		job.Status = domain.JobStatusFailed
		job.FailureReason = launchErr.Error()
		s.publishTerminal(batchID, job)
		return
	}

	code := exitCode
	job.ExitCode = &code

	switch state {
	case runner.StateCancelled:
		job.Status = domain.JobStatusCancelled
	case runner.StateFailed:
		job.Status = domain.JobStatusFailed
		job.FailureReason = fmt.Sprintf("alignment failed with exit code %d", exitCode)
	case runner.StateSucceeded:
		if settings.ConvertToBAM {
			s.convert(batchID, job, settings)
		} else {
			job.Status = domain.JobStatusSucceeded
		}
	}

	s.publishTerminal(batchID, job)
}

// convert runs the samtools view and sort steps after a successful
// alignment, then replaces the intermediates with the final BAM. Runs
// only when the primary step succeeded.
func (s *Supervisor) convert(batchID string, job *domain.Job, settings domain.Settings) {
	base := strings.TrimSuffix(job.BAMPath, ".bam")
	unsortedPath := base + ".unsorted.bam"
	sortedPath := base + ".sorted.bam"

	steps := []struct {
		label string
		argv  []string
	}{
		{"conversion", align.ViewArgs(settings.SamtoolsPath, job.SAMPath, unsortedPath)},
		{"sorting", align.SortArgs(settings.SamtoolsPath, unsortedPath, sortedPath)},
	}

	for _, step := range steps {
		s.publishCommand(batchID, job, step.argv)
		state, exitCode, launchErr := s.runCommand(batchID, job, step.argv)
		if launchErr != nil {
			job.Status = domain.JobStatusFailed
			job.FailureReason = fmt.Sprintf("BAM %s failed: %v", step.label, launchErr)
			return
		}
		switch state {
		case runner.StateCancelled:
			job.Status = domain.JobStatusCancelled
			return
		case runner.StateFailed:
			code := exitCode
			job.ExitCode = &code
			job.Status = domain.JobStatusFailed
			job.FailureReason = fmt.Sprintf("BAM %s failed with exit code %d", step.label, exitCode)
			return
		}
	}

	if err := s.rename(sortedPath, job.BAMPath); err != nil {
		job.Status = domain.JobStatusFailed
		job.FailureReason = fmt.Sprintf("rename sorted BAM: %v", err)
		return
	}
	for _, intermediate := range []string{job.SAMPath, unsortedPath} {
		if err := s.remove(intermediate); err != nil {
			s.publish(jobs.Event{
				BatchID:    batchID,
				JobID:      job.ID,
				SampleName: job.SampleName,
				Type:       jobs.EventTypeLine,
				Severity:   jobs.SeverityWarning,
				Message:    fmt.Sprintf("could not remove intermediate file %s: %v", intermediate, err),
			})
		}
	}

	job.Status = domain.JobStatusSucceeded
}

// runCommand launches one command, forwards its classified output lines,
// and blocks until the single terminal notification arrives.
func (s *Supervisor) runCommand(batchID string, job *domain.Job, argv []string) (runner.TerminalState, int, error) {
	type exitResult struct {
		state runner.TerminalState
		code  int
	}
	exitCh := make(chan exitResult, 1)

	callbacks := runner.Callbacks{
		OnLine: func(stream runner.Stream, line string) {
			s.publish(jobs.Event{
				BatchID:    batchID,
				JobID:      job.ID,
				SampleName: job.SampleName,
				Type:       jobs.EventTypeLine,
				Stream:     string(stream),
				Severity:   jobs.Classify(string(stream), line),
				Message:    line,
			})
		},
		OnExit: func(state runner.TerminalState, code int) {
			exitCh <- exitResult{state: state, code: code}
		},
	}

	proc, err := s.starter.Start(argv, callbacks)
	if err != nil {
		return runner.StateFailed, -1, fmt.Errorf("launch %s: %w", argv[0], err)
	}

	s.mu.Lock()
	s.active = proc
	raced := s.cancelled
	s.mu.Unlock()
	if raced {
		// Cancel arrived between job dispatch and launch.
		proc.Cancel()
	}

	result := <-exitCh

	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()

	return result.state, result.code, nil
}

// publishStatus sends a job status event.
func (s *Supervisor) publishStatus(batchID string, job *domain.Job, status domain.JobStatus, message string) {
	s.publish(jobs.Event{
		BatchID:    batchID,
		JobID:      job.ID,
		SampleName: job.SampleName,
		Type:       jobs.EventTypeStatus,
		Status:     status,
		Message:    message,
	})
}

// publishCommand reports the exact argv about to run, mirroring the
// command echo of the original console.
func (s *Supervisor) publishCommand(batchID string, job *domain.Job, argv []string) {
	s.publish(jobs.Event{
		BatchID:    batchID,
		JobID:      job.ID,
		SampleName: job.SampleName,
		Type:       jobs.EventTypeCommand,
		Message:    "Command: " + strings.Join(argv, " "),
		Command:    argv[0],
		Args:       append([]string(nil), argv[1:]...),
	})
}

// publishTerminal sends the job's single terminal event.
func (s *Supervisor) publishTerminal(batchID string, job *domain.Job) {
	event := jobs.Event{
		BatchID:    batchID,
		JobID:      job.ID,
		SampleName: job.SampleName,
		Type:       jobs.EventTypeResult,
		Status:     job.Status,
		ExitCode:   job.ExitCode,
	}

	switch job.Status {
	case domain.JobStatusSucceeded:
		event.Message = "Alignment completed successfully"
		event.OutputPath = job.SAMPath
		if job.BAMPath != "" {
			event.OutputPath = job.BAMPath
		}
	case domain.JobStatusCancelled:
		event.Message = "Job cancelled"
	default:
		event.Message = job.FailureReason
		event.Severity = jobs.SeverityError
	}

	s.publish(event)
}
