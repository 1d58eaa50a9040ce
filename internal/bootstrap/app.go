package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"hisat2-gui/internal/align"
	"hisat2-gui/internal/batch"
	"hisat2-gui/internal/config"
	"hisat2-gui/internal/diagnostics"
	"hisat2-gui/internal/domain"
	"hisat2-gui/internal/jobs"
	"hisat2-gui/internal/runner"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var fastqDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "FASTQ files",
		Pattern:     "*.fastq;*.fq;*.fastq.gz;*.fq.gz",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var indexDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "HISAT2 index files",
		Pattern:     "*.ht2;*.ht2l",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var fastaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "FASTA files",
		Pattern:     "*.fa;*.fasta;*.fa.gz;*.fasta.gz",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var annotationDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Splice site files",
		Pattern:     "*.txt;*.tsv",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// batchSupervisor isolates the batch driver behind an interface.
type batchSupervisor interface {
	Run(batchID string, planned []*domain.Job, settings domain.Settings) (domain.BatchSummary, domain.BatchStatus)
	Cancel()
}

// App wires configuration, batch orchestration, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Batches     *jobs.Manager
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	planner     *batch.Planner
	starter     batch.CommandStarter
	supervisor  batchSupervisor

	mu         sync.Mutex
	events     *jobs.EventBus
	indexProc  batch.Process
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".hisat2-gui", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	app := &App{
		Settings:    settings,
		Store:       store,
		Batches:     jobs.NewManager(),
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		planner:     batch.NewPlanner(),
		starter:     batch.NewExecStarter(runner.New()),
		events:      jobs.NewEventBus(5000),
	}
	app.supervisor = batch.NewSupervisor(app.starter, app.publishEvent)
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "HISAT2 Aligner",
		Width:       1180,
		Height:      820,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	return a.Diagnostics, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes
// diagnostics. A batch that is already running keeps the snapshot it was
// started with.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// StartBatch plans the given samples and runs them asynchronously under a
// settings snapshot taken now.
func (a *App) StartBatch(samples []batch.Sample) (domain.Batch, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Batch{}, fmt.Errorf("load settings: %w", err)
	}
	return a.startPlanned(samples, normalizeSettings(settings), nil)
}

// StartBatchFromDirectory discovers FASTQ samples in a directory and runs
// them as a batch. Pairing warnings surface as classified log lines.
func (a *App) StartBatchFromDirectory(dir string) (domain.Batch, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Batch{}, fmt.Errorf("load settings: %w", err)
	}
	normalized := normalizeSettings(settings)

	samples, warnings, err := batch.DiscoverSamples(dir, normalized.Mode)
	if err != nil {
		return domain.Batch{}, err
	}
	return a.startPlanned(samples, normalized, warnings)
}

// startPlanned validates, plans, and launches one batch run.
func (a *App) startPlanned(samples []batch.Sample, settings domain.Settings, warnings []string) (domain.Batch, error) {
	batchID := "batch-" + uuid.NewString()
	if err := a.Batches.Start(batchID); err != nil {
		return domain.Batch{}, err
	}

	planned, err := a.planner.Plan(samples, settings)
	if err != nil {
		a.Batches.Reset()
		return domain.Batch{}, err
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	a.publishEvent(jobs.Event{
		BatchID:     batchID,
		Type:        jobs.EventTypeStatus,
		BatchStatus: domain.BatchStatusRunning,
		Message:     fmt.Sprintf("Batch started with %d jobs", len(planned)),
	})
	for _, warning := range warnings {
		a.publishEvent(jobs.Event{
			BatchID:  batchID,
			Type:     jobs.EventTypeLine,
			Severity: jobs.SeverityWarning,
			Message:  warning,
		})
	}

	go func() {
		_, status := a.supervisor.Run(batchID, planned, settings)
		_ = a.Batches.Finish(status)
	}()

	return a.Batches.Current(), nil
}

// CancelBatch cancels the currently running batch or index build, if any.
// Repeated calls have the same effect as one.
func (a *App) CancelBatch() error {
	if !a.Batches.IsRunning() {
		return jobs.ErrNoRunningBatch
	}

	a.supervisor.Cancel()
	a.mu.Lock()
	indexProc := a.indexProc
	a.mu.Unlock()
	if indexProc != nil {
		indexProc.Cancel()
	}

	a.publishEvent(jobs.Event{
		BatchID: a.Batches.Current().ID,
		Type:    jobs.EventTypeStatus,
		Message: "Cancellation requested",
	})
	return nil
}

// CurrentBatch returns current batch metadata and status.
func (a *App) CurrentBatch() domain.Batch {
	return a.Batches.Current()
}

// BatchEvents returns all events with sequence greater than sinceSeq.
func (a *App) BatchEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// BuildIndex runs hisat2-build asynchronously with the same event
// plumbing as a batch. Index builds and batches share the single active
// run slot.
func (a *App) BuildIndex(fastaPath, indexBase string) (domain.Batch, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Batch{}, fmt.Errorf("load settings: %w", err)
	}

	argv, err := align.BuildIndexArgs(normalizeSettings(settings), fastaPath, indexBase)
	if err != nil {
		return domain.Batch{}, err
	}

	runID := "index-" + uuid.NewString()
	if err := a.Batches.Start(runID); err != nil {
		return domain.Batch{}, err
	}

	a.publishEvent(jobs.Event{
		BatchID:     runID,
		Type:        jobs.EventTypeStatus,
		BatchStatus: domain.BatchStatusRunning,
		Message:     "Building index " + indexBase,
	})
	a.publishEvent(jobs.Event{
		BatchID: runID,
		Type:    jobs.EventTypeCommand,
		Message: "Command: " + strings.Join(argv, " "),
		Command: argv[0],
		Args:    append([]string(nil), argv[1:]...),
	})

	go a.runIndexBuild(runID, indexBase, argv)
	return a.Batches.Current(), nil
}

// runIndexBuild executes the indexer and maps its outcome to events.
func (a *App) runIndexBuild(runID, indexBase string, argv []string) {
	type exitResult struct {
		state runner.TerminalState
		code  int
	}
	exitCh := make(chan exitResult, 1)

	proc, err := a.starter.Start(argv, runner.Callbacks{
		OnLine: func(stream runner.Stream, line string) {
			a.publishEvent(jobs.Event{
				BatchID:  runID,
				Type:     jobs.EventTypeLine,
				Stream:   string(stream),
				Severity: jobs.Classify(string(stream), line),
				Message:  line,
			})
		},
		OnExit: func(state runner.TerminalState, code int) {
			exitCh <- exitResult{state: state, code: code}
		},
	})
	if err != nil {
		a.publishEvent(jobs.Event{
			BatchID:  runID,
			Type:     jobs.EventTypeError,
			Severity: jobs.SeverityError,
			Message:  fmt.Sprintf("launch %s: %v", argv[0], err),
		})
		_ = a.Batches.Finish(domain.BatchStatusCompleted)
		return
	}

	a.mu.Lock()
	a.indexProc = proc
	a.mu.Unlock()

	result := <-exitCh

	a.mu.Lock()
	a.indexProc = nil
	a.mu.Unlock()

	event := jobs.Event{
		BatchID:  runID,
		Type:     jobs.EventTypeResult,
		ExitCode: &result.code,
	}
	finish := domain.BatchStatusCompleted
	switch result.state {
	case runner.StateSucceeded:
		event.Message = "Index built successfully"
		event.OutputPath = indexBase
	case runner.StateCancelled:
		event.Message = "Index build cancelled"
		finish = domain.BatchStatusCancelled
	default:
		event.Message = fmt.Sprintf("Index build failed with exit code %d", result.code)
		event.Severity = jobs.SeverityError
	}
	a.publishEvent(event)
	_ = a.Batches.Finish(finish)
}

// PickIndexFile opens a native file dialog for index selection and
// returns the index base name with the shard suffix stripped.
func (a *App) PickIndexFile() (string, error) {
	path, err := a.openFile("Select HISAT2 index file", indexDialogFilter)
	if err != nil {
		return "", err
	}
	return trimIndexSuffix(path), nil
}

// PickReadsFile opens a native file dialog for FASTQ selection.
func (a *App) PickReadsFile() (string, error) {
	return a.openFile("Select FASTQ file", fastqDialogFilter)
}

// PickAnnotationFile opens a native file dialog for known splice sites.
func (a *App) PickAnnotationFile() (string, error) {
	return a.openFile("Select known splice site file", annotationDialogFilter)
}

// PickFastaFile opens a native file dialog for a reference FASTA.
func (a *App) PickFastaFile() (string, error) {
	return a.openFile("Select reference FASTA", fastaDialogFilter)
}

// PickHisat2Executable opens a native file dialog for the aligner binary.
func (a *App) PickHisat2Executable() (string, error) {
	return a.openFile("Select hisat2 executable", nil)
}

// PickSamtoolsExecutable opens a native file dialog for samtools.
func (a *App) PickSamtoolsExecutable() (string, error) {
	return a.openFile("Select samtools executable", nil)
}

// PickBatchDirectory opens a native directory picker for batch input.
func (a *App) PickBatchDirectory() (string, error) {
	return a.openDirectory("Select directory containing FASTQ files")
}

// PickOutputDirectory opens a native directory picker for alignment output.
func (a *App) PickOutputDirectory() (string, error) {
	return a.openDirectory("Select output directory")
}

// OpenOutputFolder opens the given path (or configured output dir) in the
// platform file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// openFile shows an open-file dialog with the given filters.
func (a *App) openFile(title string, filters []wailsruntime.FileFilter) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   title,
		Filters: filters,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// openDirectory shows a directory picker.
func (a *App) openDirectory(title string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: title,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "batch:event", published)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and applies defaults for the
// enumerated options when empty.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.Hisat2Path = strings.TrimSpace(settings.Hisat2Path)
	settings.SamtoolsPath = strings.TrimSpace(settings.SamtoolsPath)
	settings.IndexPath = strings.TrimSpace(settings.IndexPath)
	settings.AnnotationPath = strings.TrimSpace(settings.AnnotationPath)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	if settings.Preset == "" {
		settings.Preset = domain.PresetSensitive
	}
	if settings.Mode == "" {
		settings.Mode = domain.ModeSingle
	}
	return settings
}

// trimIndexSuffix strips the .N.ht2 or .N.ht2l shard suffix so a picked
// index file becomes its base name.
func trimIndexSuffix(path string) string {
	for shard := 1; shard <= 8; shard++ {
		for _, ext := range []string{".ht2", ".ht2l"} {
			suffix := fmt.Sprintf(".%d%s", shard, ext)
			if strings.HasSuffix(path, suffix) {
				return strings.TrimSuffix(path, suffix)
			}
		}
	}
	return path
}

// openInFileManager launches the platform file explorer for the provided
// path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
