package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/plonegovbr/transmute/iox"
	"github.com/plonegovbr/transmute/types"
)

// ReportFile is the audit artifact written next to the destination root.
const ReportFile = "report_transmute.csv"

var reportHeader = []string{
	"filename",
	"src_path",
	"src_uid",
	"src_type",
	"src_state",
	"dst_path",
	"dst_uid",
	"dst_type",
	"dst_state",
	"last_step",
}

// Reporter accumulates one audit row per processed branch.
// Implementations must preserve insertion order.
type Reporter interface {
	// Record appends one audit row.
	Record(entry types.ItemReport)
	// Flush serializes all accumulated rows to dir and returns the
	// artifact path. Returns "" when reporting is disabled.
	Flush(dir string) (string, error)
}

// NewReporter returns a CSV reporter when enabled, and a no-op reporter
// otherwise. The no-op variant imposes no overhead.
func NewReporter(enabled bool) Reporter {
	if !enabled {
		return nopReporter{}
	}
	return &csvReporter{}
}

type nopReporter struct{}

func (nopReporter) Record(types.ItemReport)      {}
func (nopReporter) Flush(string) (string, error) { return "", nil }

type csvReporter struct {
	entries []types.ItemReport
}

func (r *csvReporter) Record(entry types.ItemReport) {
	r.entries = append(r.entries, entry)
}

func (r *csvReporter) Flush(dir string) (string, error) {
	path := filepath.Join(dir, ReportFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("cannot create report %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(reportHeader); err != nil {
		iox.DiscardClose(f)
		return "", fmt.Errorf("cannot write report header: %w", err)
	}
	for _, e := range r.entries {
		row := []string{
			e.Filename,
			e.SrcPath,
			e.SrcUID,
			e.SrcType,
			e.SrcState,
			e.DstPath,
			e.DstUID,
			e.DstType,
			e.DstState,
			e.LastStep,
		}
		if err := w.Write(row); err != nil {
			iox.DiscardClose(f)
			return "", fmt.Errorf("cannot write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		iox.DiscardClose(f)
		return "", fmt.Errorf("cannot flush report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("cannot close report: %w", err)
	}
	return path, nil
}
