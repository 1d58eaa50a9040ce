package batch

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"hisat2-gui/internal/domain"
)

// fastqPatterns are the read file extensions scanned in directory mode.
var fastqPatterns = []string{"*.fastq", "*.fq", "*.fastq.gz", "*.fq.gz"}

// DiscoverSamples scans a directory for FASTQ files and groups them into
// samples. In paired mode, files are paired by the _R1/_R2 and .1/.2
// naming conventions; files that cannot be paired are skipped with a
// warning rather than failing discovery.
func DiscoverSamples(dir string, mode domain.AlignmentMode) ([]Sample, []string, error) {
	var files []string
	for _, pattern := range fastqPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", dir, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no FASTQ files found in %s", dir)
	}
	sort.Strings(files)

	if mode != domain.ModePaired {
		samples := make([]Sample, 0, len(files))
		for _, f := range files {
			samples = append(samples, Sample{
				Name:  SampleNameFromPath(f),
				Reads: []string{f},
			})
		}
		return samples, nil, nil
	}

	return groupPairedFiles(files)
}

// groupPairedFiles pairs adjacent sorted files whose names differ only by
// the mate marker.
func groupPairedFiles(files []string) ([]Sample, []string, error) {
	var samples []Sample
	var warnings []string

	i := 0
	for i < len(files) {
		if i+1 >= len(files) {
			warnings = append(warnings, fmt.Sprintf("Unpaired file: %s", files[i]))
			break
		}

		if pairKey(files[i]) == pairKey(files[i+1]) {
			samples = append(samples, Sample{
				Name:  pairKey(files[i]),
				Reads: []string{files[i], files[i+1]},
			})
			i += 2
			continue
		}

		warnings = append(warnings, fmt.Sprintf("Could not pair file: %s", files[i]))
		i++
	}

	if len(samples) == 0 {
		return nil, warnings, fmt.Errorf("no complete read pairs found among %d files", len(files))
	}
	return samples, warnings, nil
}

// pairKey reduces a read file name to its sample identity by removing the
// mate markers, so both mates of a pair map to the same key.
func pairKey(path string) string {
	name := SampleNameFromPath(path)
	for _, marker := range []string{"_R1", "_R2"} {
		name = strings.Replace(name, marker, "", 1)
	}
	name = strings.TrimSuffix(name, ".1")
	name = strings.TrimSuffix(name, ".2")
	return name
}
