package bootstrap

import (
	"os"
	"sync"
	"testing"
	"time"

	"hisat2-gui/internal/batch"
	"hisat2-gui/internal/domain"
	"hisat2-gui/internal/jobs"
)

// fakeStore serves settings from memory.
type fakeStore struct {
	mu       sync.Mutex
	settings domain.Settings
}

func (s *fakeStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *fakeStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

// fakeSupervisor records runs and completes them immediately.
type fakeSupervisor struct {
	mu       sync.Mutex
	settings []domain.Settings
	jobCount []int
	cancels  int
	block    chan struct{}
}

func (f *fakeSupervisor) Run(batchID string, planned []*domain.Job, settings domain.Settings) (domain.BatchSummary, domain.BatchStatus) {
	f.mu.Lock()
	f.settings = append(f.settings, settings)
	f.jobCount = append(f.jobCount, len(planned))
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return domain.BatchSummary{Succeeded: len(planned)}, domain.BatchStatusCompleted
}

func (f *fakeSupervisor) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeSupervisor) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

// testSettings returns valid settings for a fake filesystem.
func testSettings() domain.Settings {
	return domain.Settings{
		Hisat2Path:   "hisat2",
		SamtoolsPath: "samtools",
		IndexPath:    "/ref/genome",
		OutputDir:    "/out",
		Threads:      4,
		Preset:       domain.PresetSensitive,
		Mode:         domain.ModeSingle,
	}
}

// newTestApp builds an app with fakes and a planner that accepts the
// given read paths.
func newTestApp(sup *fakeSupervisor, reads ...string) (*App, *fakeStore) {
	set := make(map[string]struct{}, len(reads))
	for _, r := range reads {
		set[r] = struct{}{}
	}
	store := &fakeStore{settings: testSettings()}
	app := &App{
		Store:   store,
		Batches: jobs.NewManager(),
		planner: batch.NewPlannerForTests(func(path string) (os.FileInfo, error) {
			if _, ok := set[path]; ok {
				return nil, nil
			}
			return nil, os.ErrNotExist
		}),
		events: jobs.NewEventBus(100),
	}
	app.supervisor = sup
	return app, store
}

// waitForBatchStatus polls until the batch reaches the wanted state.
func waitForBatchStatus(t *testing.T, app *App, want domain.BatchStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if app.CurrentBatch().Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("batch never reached %s, current = %+v", want, app.CurrentBatch())
}

// TestStartBatchEnforcesSingleRunningBatch checks the single-run slot.
func TestStartBatchEnforcesSingleRunningBatch(t *testing.T) {
	sup := &fakeSupervisor{block: make(chan struct{})}
	app, _ := newTestApp(sup, "/reads/a.fastq")
	samples := []batch.Sample{{Reads: []string{"/reads/a.fastq"}}}

	first, err := app.StartBatch(samples)
	if err != nil {
		t.Fatalf("StartBatch() error = %v", err)
	}
	if first.Status != domain.BatchStatusRunning {
		t.Fatalf("status = %s, want running", first.Status)
	}

	if _, err := app.StartBatch(samples); err != jobs.ErrBatchAlreadyRunning {
		t.Fatalf("second start error = %v, want %v", err, jobs.ErrBatchAlreadyRunning)
	}

	close(sup.block)
	waitForBatchStatus(t, app, domain.BatchStatusCompleted)
}

// TestStartBatchSnapshotsSettings checks a running batch keeps the
// settings captured at start even when the store changes mid-run.
func TestStartBatchSnapshotsSettings(t *testing.T) {
	sup := &fakeSupervisor{block: make(chan struct{})}
	app, store := newTestApp(sup, "/reads/a.fastq")

	if _, err := app.StartBatch([]batch.Sample{{Reads: []string{"/reads/a.fastq"}}}); err != nil {
		t.Fatalf("StartBatch() error = %v", err)
	}

	changed := testSettings()
	changed.Threads = 16
	changed.IndexPath = "/ref/other"
	if err := store.Save(changed); err != nil {
		t.Fatalf("save: %v", err)
	}

	close(sup.block)
	waitForBatchStatus(t, app, domain.BatchStatusCompleted)

	sup.mu.Lock()
	defer sup.mu.Unlock()
	if len(sup.settings) != 1 {
		t.Fatalf("runs = %d, want 1", len(sup.settings))
	}
	if sup.settings[0].Threads != 4 || sup.settings[0].IndexPath != "/ref/genome" {
		t.Fatalf("supervisor got %+v, want the start-time snapshot", sup.settings[0])
	}
}

// TestStartBatchPlanFailureFreesSlot checks a planning error leaves no
// stuck running batch behind.
func TestStartBatchPlanFailureFreesSlot(t *testing.T) {
	sup := &fakeSupervisor{}
	app, store := newTestApp(sup, "/reads/a.fastq")

	bad := testSettings()
	bad.IndexPath = ""
	if err := store.Save(bad); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := app.StartBatch([]batch.Sample{{Reads: []string{"/reads/a.fastq"}}}); err == nil {
		t.Fatal("expected configuration error")
	}
	if app.Batches.IsRunning() {
		t.Fatal("failed start must not leave a running batch")
	}
}

// TestCancelBatch checks cancel routing and the idle error.
func TestCancelBatch(t *testing.T) {
	sup := &fakeSupervisor{block: make(chan struct{})}
	app, _ := newTestApp(sup, "/reads/a.fastq")

	if err := app.CancelBatch(); err != jobs.ErrNoRunningBatch {
		t.Fatalf("idle cancel error = %v, want %v", err, jobs.ErrNoRunningBatch)
	}

	if _, err := app.StartBatch([]batch.Sample{{Reads: []string{"/reads/a.fastq"}}}); err != nil {
		t.Fatalf("StartBatch() error = %v", err)
	}
	if err := app.CancelBatch(); err != nil {
		t.Fatalf("CancelBatch() error = %v", err)
	}
	if err := app.CancelBatch(); err != nil {
		t.Fatalf("repeated CancelBatch() error = %v", err)
	}
	if sup.cancelCount() != 2 {
		t.Fatalf("supervisor cancels = %d", sup.cancelCount())
	}

	close(sup.block)
	waitForBatchStatus(t, app, domain.BatchStatusCompleted)
}

// TestBatchEventsExposesPublishedEvents checks the polling surface.
func TestBatchEventsExposesPublishedEvents(t *testing.T) {
	sup := &fakeSupervisor{}
	app, _ := newTestApp(sup, "/reads/a.fastq")

	if _, err := app.StartBatch([]batch.Sample{{Reads: []string{"/reads/a.fastq"}}}); err != nil {
		t.Fatalf("StartBatch() error = %v", err)
	}
	waitForBatchStatus(t, app, domain.BatchStatusCompleted)

	events := app.BatchEvents(0)
	if len(events) == 0 {
		t.Fatal("expected at least the batch start event")
	}
	if events[0].Type != jobs.EventTypeStatus || events[0].BatchStatus != domain.BatchStatusRunning {
		t.Fatalf("first event = %+v, want batch running status", events[0])
	}
}

// TestTrimIndexSuffix checks index base derivation from picked files.
func TestTrimIndexSuffix(t *testing.T) {
	cases := map[string]string{
		"/ref/genome.1.ht2":  "/ref/genome",
		"/ref/genome.8.ht2":  "/ref/genome",
		"/ref/genome.2.ht2l": "/ref/genome",
		"/ref/genome.fa":     "/ref/genome.fa",
	}
	for in, want := range cases {
		if got := trimIndexSuffix(in); got != want {
			t.Errorf("trimIndexSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestNormalizeSettingsDefaults checks enumerated defaults are applied.
func TestNormalizeSettingsDefaults(t *testing.T) {
	got := normalizeSettings(domain.Settings{
		Hisat2Path: "  hisat2 ",
		IndexPath:  " /ref/genome ",
	})
	if got.Hisat2Path != "hisat2" || got.IndexPath != "/ref/genome" {
		t.Fatalf("trim failed: %+v", got)
	}
	if got.Preset != domain.PresetSensitive {
		t.Fatalf("preset = %q, want sensitive default", got.Preset)
	}
	if got.Mode != domain.ModeSingle {
		t.Fatalf("mode = %q, want single default", got.Mode)
	}
}
