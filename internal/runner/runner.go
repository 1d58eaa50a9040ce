// Package runner launches one external command at a time and streams its
// output back line by line, keeping stdout and stderr apart so downstream
// consumers can classify them separately.
package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Stream identifies which output pipe produced a line.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// TerminalState is the single final outcome reported for an invocation.
type TerminalState string

const (
	StateSucceeded TerminalState = "succeeded"
	StateFailed    TerminalState = "failed"
	StateCancelled TerminalState = "cancelled"
)

// Callbacks receive streamed output and the terminal notification.
// OnExit is invoked exactly once, after every OnLine call for the same
// invocation has returned.
type Callbacks struct {
	OnLine func(stream Stream, line string)
	OnExit func(state TerminalState, exitCode int)
}

// DefaultGracePeriod bounds how long Cancel waits for a process to honor
// the termination signal before escalating to a forced kill.
const DefaultGracePeriod = 5 * time.Second

// Runner starts external commands with streamed output.
type Runner struct {
	gracePeriod time.Duration
}

// New creates a runner with the default cancellation grace period.
func New() *Runner {
	return &Runner{gracePeriod: DefaultGracePeriod}
}

// NewWithGracePeriod creates a runner with a custom grace period.
func NewWithGracePeriod(grace time.Duration) *Runner {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Runner{gracePeriod: grace}
}

// Handle refers to one launched process and supports cooperative
// cancellation.
type Handle struct {
	mu        sync.Mutex
	cancelled bool
	proc      *os.Process
	done      chan struct{}
	grace     time.Duration
}

// Start launches argv[0] with the remaining arguments and returns as soon
// as the process is running. Line and exit notifications arrive on the
// callbacks from background goroutines. A launch failure (executable not
// found or not runnable) is returned directly and produces no handle and
// no callbacks.
func (r *Runner) Start(argv []string, callbacks Callbacks) (*Handle, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", argv[0], err)
	}

	handle := &Handle{
		proc:  cmd.Process,
		done:  make(chan struct{}),
		grace: r.gracePeriod,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdoutPipe, StreamStdout, callbacks.OnLine)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderrPipe, StreamStderr, callbacks.OnLine)
	}()

	go func() {
		// Both pipes must be drained before Wait, and all line callbacks
		// must land before the terminal one.
		wg.Wait()
		waitErr := cmd.Wait()
		close(handle.done)

		state := StateSucceeded
		exitCode := 0
		if waitErr != nil {
			exitCode = -1
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				exitCode = exitErr.ExitCode()
			}
			if handle.CancelRequested() {
				state = StateCancelled
			} else {
				state = StateFailed
			}
		}

		if callbacks.OnExit != nil {
			callbacks.OnExit(state, exitCode)
		}
	}()

	return handle, nil
}

// Cancel signals the process to terminate and, after the grace period,
// kills it outright. Calling Cancel more than once has no further effect.
// A process that exits cleanly before the signal lands still reports
// StateSucceeded.
func (h *Handle) Cancel() {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		return
	}
	h.cancelled = true
	h.mu.Unlock()

	// Signal delivery can fail on platforms without interrupt support or
	// when the process already exited; the escalation below covers both.
	_ = h.proc.Signal(os.Interrupt)

	go func() {
		select {
		case <-h.done:
		case <-time.After(h.grace):
			_ = h.proc.Kill()
		}
	}()
}

// CancelRequested reports whether Cancel has been called for this handle.
func (h *Handle) CancelRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Wait blocks until the process has terminated and its output is drained.
func (h *Handle) Wait() {
	<-h.done
}

// scanLines forwards each line from one pipe, preserving in-stream order.
func scanLines(reader io.Reader, stream Stream, onLine func(Stream, string)) {
	scanner := bufio.NewScanner(reader)
	// Aligner progress lines can be long; grow past the default token size.
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, 64*1024)

	for scanner.Scan() {
		if onLine != nil {
			onLine(stream, scanner.Text())
		}
	}
}
