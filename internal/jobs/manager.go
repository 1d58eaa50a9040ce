package jobs

import (
	"errors"
	"fmt"
	"sync"

	"hisat2-gui/internal/domain"
)

// ErrBatchAlreadyRunning is returned when starting a second active batch.
var ErrBatchAlreadyRunning = errors.New("batch already running")

// ErrNoRunningBatch is returned when cancel is requested for idle state.
var ErrNoRunningBatch = errors.New("no running batch")

// Manager tracks the single allowed active batch and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Batch
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Batch{
			Status: domain.BatchStatusIdle,
		},
	}
}

// Start registers a new batch and moves it to running state.
func (m *Manager) Start(batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Status == domain.BatchStatusRunning {
		return ErrBatchAlreadyRunning
	}

	m.current = domain.Batch{
		ID:     batchID,
		Status: domain.BatchStatusRunning,
	}
	return nil
}

// Finish moves the running batch to a terminal state.
func (m *Manager) Finish(status domain.BatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Status != domain.BatchStatusRunning {
		return ErrNoRunningBatch
	}
	if status != domain.BatchStatusCompleted && status != domain.BatchStatusCancelled {
		return fmt.Errorf("invalid terminal batch status: %s", status)
	}

	m.current.Status = status
	return nil
}

// Current returns a snapshot of the current batch.
func (m *Manager) Current() domain.Batch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsRunning reports whether a batch is currently active.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Status == domain.BatchStatusRunning
}

// Reset clears batch metadata and returns the manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Batch{Status: domain.BatchStatusIdle}
}
