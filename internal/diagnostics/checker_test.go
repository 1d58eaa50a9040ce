package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hisat2-gui/internal/domain"
)

// statFor returns a stat function succeeding only for listed paths.
func statFor(existing ...string) func(string) (os.FileInfo, error) {
	set := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		set[p] = struct{}{}
	}
	return func(path string) (os.FileInfo, error) {
		if _, ok := set[path]; ok {
			return nil, nil
		}
		return nil, os.ErrNotExist
	}
}

// itemByID finds a report item or fails the test.
func itemByID(t *testing.T, report domain.DiagnosticReport, id string) domain.DiagnosticItem {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("item %q not in report: %+v", id, report.Items)
	return domain.DiagnosticItem{}
}

// TestCheckerAllPass uses a real temp dir and fully resolvable tools.
func TestCheckerAllPass(t *testing.T) {
	outDir := t.TempDir()
	checker := NewCheckerForTests(
		func(name string) (string, error) { return "/usr/bin/" + name, nil },
		statFor(
			string(os.PathSeparator)+filepath.Join("opt", "hisat2", "hisat2"),
			string(os.PathSeparator)+filepath.Join("opt", "hisat2", "hisat2-build"),
			string(os.PathSeparator)+filepath.Join("ref", "genome")+".1.ht2",
		),
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{
		Hisat2Path:   string(os.PathSeparator) + filepath.Join("opt", "hisat2", "hisat2"),
		SamtoolsPath: "samtools",
		IndexPath:    string(os.PathSeparator) + filepath.Join("ref", "genome"),
		OutputDir:    outDir,
	})

	if report.HasFailures {
		t.Fatalf("unexpected failures: %+v", report.Items)
	}
	if len(report.Items) != 5 {
		t.Fatalf("item count = %d, want 5", len(report.Items))
	}
}

// TestCheckerMissingToolFails checks PATH lookup failure reporting.
func TestCheckerMissingToolFails(t *testing.T) {
	checker := NewCheckerForTests(
		func(name string) (string, error) { return "", errors.New("not found") },
		statFor(),
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{
		Hisat2Path:   "hisat2",
		SamtoolsPath: "samtools",
		IndexPath:    "/ref/genome",
		OutputDir:    t.TempDir(),
	})

	if !report.HasFailures {
		t.Fatal("expected failures")
	}
	item := itemByID(t, report, "tool_hisat2")
	if item.Status != domain.DiagnosticStatusFail {
		t.Fatalf("hisat2 status = %s", item.Status)
	}
	if item.Hint == "" {
		t.Fatal("expected hint on the failed tool check")
	}
}

// TestCheckerIndexProbe checks the index shard probing logic, including
// the large-genome suffix.
func TestCheckerIndexProbe(t *testing.T) {
	sep := string(os.PathSeparator)
	base := sep + filepath.Join("ref", "grch38", "genome")

	regular := NewCheckerForTests(
		func(name string) (string, error) { return name, nil },
		statFor(base+".1.ht2"),
		os.MkdirAll, os.CreateTemp, os.Remove,
	)
	if item := itemByID(t, regular.Run(settingsWithIndex(base, t)), "index_path"); item.Status != domain.DiagnosticStatusPass {
		t.Fatalf("regular index status = %s: %s", item.Status, item.Message)
	}

	large := NewCheckerForTests(
		func(name string) (string, error) { return name, nil },
		statFor(base+".1.ht2l"),
		os.MkdirAll, os.CreateTemp, os.Remove,
	)
	if item := itemByID(t, large.Run(settingsWithIndex(base, t)), "index_path"); item.Status != domain.DiagnosticStatusPass {
		t.Fatalf("large index status = %s: %s", item.Status, item.Message)
	}

	missing := NewCheckerForTests(
		func(name string) (string, error) { return name, nil },
		statFor(),
		os.MkdirAll, os.CreateTemp, os.Remove,
	)
	if item := itemByID(t, missing.Run(settingsWithIndex(base, t)), "index_path"); item.Status != domain.DiagnosticStatusFail {
		t.Fatal("missing index should fail")
	}
}

// TestCheckerOutputDirNotWritable checks the write probe failure path.
func TestCheckerOutputDirNotWritable(t *testing.T) {
	checker := NewCheckerForTests(
		func(name string) (string, error) { return name, nil },
		statFor(),
		func(string, os.FileMode) error { return nil },
		func(string, string) (*os.File, error) { return nil, errors.New("read-only filesystem") },
		os.Remove,
	)

	report := checker.Run(domain.Settings{
		Hisat2Path:   "hisat2",
		SamtoolsPath: "samtools",
		IndexPath:    "/ref/genome",
		OutputDir:    "/mnt/readonly",
	})
	item := itemByID(t, report, "output_dir")
	if item.Status != domain.DiagnosticStatusFail {
		t.Fatalf("output dir status = %s", item.Status)
	}
}

// settingsWithIndex builds settings whose tool checks pass trivially.
func settingsWithIndex(indexPath string, t *testing.T) domain.Settings {
	return domain.Settings{
		Hisat2Path:   "hisat2",
		SamtoolsPath: "samtools",
		IndexPath:    indexPath,
		OutputDir:    t.TempDir(),
	}
}
