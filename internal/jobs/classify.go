package jobs

import "strings"

// Severity is the display tier assigned to one output line.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// errorMarkers match the error vocabulary of hisat2 and samtools output.
var errorMarkers = []string{
	"(err)",
	"error",
	"fatal",
	"cannot",
	"could not",
	"no such file",
	"not found",
	"failed",
}

// warningMarkers match non-fatal notices worth highlighting.
var warningMarkers = []string{
	"warning",
	"warn:",
	"unpaired",
	"skipping",
	"deprecated",
}

// Classify assigns a severity tier to one output line using the tools'
// own output vocabulary. The aligner writes its progress report to
// stderr, so stream identity alone never makes a line an error.
func Classify(stream, line string) Severity {
	lower := strings.ToLower(line)

	for _, marker := range errorMarkers {
		if strings.Contains(lower, marker) {
			return SeverityError
		}
	}
	for _, marker := range warningMarkers {
		if strings.Contains(lower, marker) {
			return SeverityWarning
		}
	}
	return SeverityInfo
}
