// Package pipeline drives every enumerated source record through the
// configured step chain exactly once, reconciles each record's identity
// against the run ledger, hands survivors to the exporter and keeps the
// run statistics accurate under drops and fan-out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/plonegovbr/transmute/log"
	"github.com/plonegovbr/transmute/metrics"
	"github.com/plonegovbr/transmute/types"
)

// Exporter persists transformed records and the consolidated index artifact.
// Implementations must be atomic per record: either the record and its
// blobs are fully written or none are.
type Exporter interface {
	// Export persists one record and its attachments, returning the
	// artifact locations used.
	Export(ctx context.Context, item types.Item) (types.ItemFiles, error)
	// WriteIndex persists the consolidated index artifact describing every
	// exported record and returns its location. Called once, after the
	// full source set has been consumed.
	WriteIndex(ctx context.Context, entries []types.IndexEntry, uids map[string]string) (string, error)
}

// Source streams decoded records from the enumerated content file list.
type Source interface {
	EachItem(ctx context.Context, files []string, fn func(filename string, item types.Item) error) error
}

// ProgressSink observes monotonic progress updates. Updates use values read
// from atomic counters, so a sink may also poll the collector directly.
type ProgressSink interface {
	Update(processed, total int64)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(processed, total int64)

// Update implements ProgressSink.
func (f ProgressFunc) Update(processed, total int64) { f(processed, total) }

// Config assembles an Orchestrator.
type Config struct {
	// Steps is the resolved step chain, in configured order.
	Steps []types.Step
	// StepNames are the configured names, parallel to Steps. Used for
	// drop attribution and diagnostics.
	StepNames []string
	// DropExceptions lists steps allowed to omit output without being
	// tallied as a drop.
	DropExceptions map[string]bool
	// Exporter persists records and the index artifact.
	Exporter Exporter
	// Meta is the immutable shared run context. Its Refs field is set by
	// the orchestrator to the run ledger.
	Meta *types.RunMeta
	// Collector accumulates run statistics. Optional.
	Collector *metrics.Collector
	// Reporter accumulates the audit rows. Optional; defaults to no-op.
	Reporter Reporter
	// ReportDir is the local directory the audit report is flushed to.
	// Defaults to Meta.Destination, which is only a directory for the
	// filesystem backend; remote backends must set it explicitly.
	ReportDir string
	// Logger is the run logger.
	Logger *log.Logger
	// Ledger may carry restored checkpoint state. Optional.
	Ledger *Ledger
	// Progress is notified after every consumed source record. Optional.
	Progress ProgressSink
}

// Orchestrator routes records through the step chain and maintains the
// identity ledger and run statistics.
type Orchestrator struct {
	steps          []types.Step
	stepNames      []string
	dropExceptions map[string]bool
	exporter       Exporter
	meta           *types.RunMeta
	collector      *metrics.Collector
	reporter       Reporter
	reportDir      string
	logger         *log.Logger
	ledger         *Ledger
	progress       ProgressSink

	// dropPaths maps a dropped folderish path to the step that dropped it,
	// so descendants are dropped with the same attribution.
	dropPaths map[string]string
	// usedPaths disambiguates destination path collisions.
	usedPaths map[string]int
	entries   []types.IndexEntry
}

// New creates an Orchestrator. Returns an error when the run context is
// invalid or the chain and its names disagree.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run context: %w", err)
	}
	if len(cfg.Steps) != len(cfg.StepNames) {
		return nil, fmt.Errorf("step chain has %d steps but %d names", len(cfg.Steps), len(cfg.StepNames))
	}
	if cfg.Exporter == nil {
		return nil, errors.New("exporter must not be nil")
	}

	ledger := cfg.Ledger
	if ledger == nil {
		ledger = NewLedger()
	}
	cfg.Meta.Refs = ledger

	reporter := cfg.Reporter
	if reporter == nil {
		reporter = NewReporter(false)
	}
	reportDir := cfg.ReportDir
	if reportDir == "" {
		reportDir = cfg.Meta.Destination
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger(cfg.Meta)
	}

	return &Orchestrator{
		steps:          cfg.Steps,
		stepNames:      cfg.StepNames,
		dropExceptions: cfg.DropExceptions,
		exporter:       cfg.Exporter,
		meta:           cfg.Meta,
		collector:      cfg.Collector,
		reporter:       reporter,
		reportDir:      reportDir,
		logger:         logger,
		ledger:         ledger,
		progress:       cfg.Progress,
		dropPaths:      make(map[string]string),
		usedPaths:      make(map[string]int),
	}, nil
}

// Ledger returns the run ledger, for checkpointing after the run.
func (o *Orchestrator) Ledger() *Ledger { return o.ledger }

// branch is one trajectory through the remaining step chain.
type branch struct {
	item  types.Item
	next  int
	isNew bool
}

// Run consumes every record of the source set, drives it through the step
// chain, exports survivors, and finally writes the consolidated index
// artifact, returning its location.
func (o *Orchestrator) Run(ctx context.Context, src Source, files types.SourceFiles) (string, error) {
	o.logger.Info("starting pipeline", map[string]any{
		"total": files.Total(),
		"steps": o.stepNames,
	})

	err := src.EachItem(ctx, files.Content, func(filename string, item types.Item) error {
		return o.processRecord(ctx, filename, item)
	})
	if err != nil {
		return "", err
	}

	if path, err := o.reporter.Flush(o.reportDir); err != nil {
		return "", fmt.Errorf("cannot write audit report: %w", err)
	} else if path != "" {
		o.logger.Info("wrote audit report", map[string]any{"path": path})
	}

	indexPath, err := o.exporter.WriteIndex(ctx, o.entries, o.ledger.Mappings())
	if err != nil {
		return "", fmt.Errorf("cannot write index artifact: %w", err)
	}

	o.logFinalState(indexPath)
	return indexPath, nil
}

// processRecord runs the full chain for one source record. Counter
// discipline: processed is incremented exactly once per source record,
// regardless of drops or fan-out.
func (o *Orchestrator) processRecord(ctx context.Context, filename string, item types.Item) error {
	defer func() {
		o.collector.IncProcessed()
		if o.progress != nil {
			o.progress.Update(o.collector.Processed(), o.collector.Total())
		}
	}()

	srcUID := item.UID()
	report := types.ItemReport{
		Filename: filename,
		SrcPath:  item.Path(),
		SrcUID:   srcUID,
		SrcType:  item.Type(),
		SrcState: item.ReviewState(),
	}

	if srcUID == "" {
		// Malformed source payload: a data-quality issue, not a fault.
		o.recordDrop(report, item, "decode")
		o.logger.Warn("record without identifier", map[string]any{"filename": filename})
		return nil
	}

	if o.ledger.HasSeen(srcUID) {
		o.collector.IncSkipped()
		o.logger.Debug("skipping already migrated record", map[string]any{"uid": srcUID})
		return nil
	}
	o.ledger.MarkSeen(srcUID)

	// Assign-if-absent, reuse-if-present: idempotent under duplicate
	// source identifiers and checkpoint restores.
	newUID := o.ledger.AssignOrGet(srcUID)
	item[types.KeyOldUID] = srcUID
	item[types.KeyUID] = newUID

	survivors, drops, err := o.runChain(srcUID, item)
	if err != nil {
		return err
	}

	for _, d := range drops {
		d.report.Filename = filename
		o.recordDrop(d.report, d.item, d.step)
	}
	for _, b := range survivors {
		if err := o.exportBranch(ctx, report, b); err != nil {
			return err
		}
	}
	return nil
}

type droppedBranch struct {
	item   types.Item
	step   string
	report types.ItemReport
}

// runChain threads the record through every configured step, carrying
// fan-out branches breadth-first through the remaining steps. Each branch
// is driven through steps next..end exactly once.
//
// The drop set is enforced before every step, not once up front: steps
// rewrite paths, and a folder dropped at step k is recorded under the path
// it carried at that point in the chain. A descendant reaches the same
// rewrite stage right before its own step k, so comparing there matches
// ancestor and child under the same normalization.
func (o *Orchestrator) runChain(srcUID string, item types.Item) ([]branch, []droppedBranch, error) {
	work := []branch{{item: item, next: 0}}
	var survivors []branch
	var drops []droppedBranch

	for len(work) > 0 {
		b := work[0]
		work = work[1:]

		if step, dropped := o.droppedByParent(b.item.Path()); dropped {
			drops = append(drops, droppedBranch{
				item:   b.item,
				step:   step,
				report: o.branchReport(b),
			})
			continue
		}

		if b.next == len(o.steps) {
			survivors = append(survivors, b)
			continue
		}

		name := o.stepNames[b.next]
		outs, err := o.steps[b.next](b.item, o.meta)
		if err != nil {
			return nil, nil, &ContractViolationError{Step: name, UID: srcUID, Err: err}
		}
		o.logger.Debug("step finished", map[string]any{
			"uid":     srcUID,
			"step":    name,
			"outputs": len(outs),
		})

		if len(outs) == 0 {
			drops = append(drops, droppedBranch{
				item:   b.item,
				step:   name,
				report: o.branchReport(b),
			})
			continue
		}
		for _, out := range outs {
			if err := out.Validate(); err != nil {
				return nil, nil, &ContractViolationError{Step: name, UID: srcUID, Err: err}
			}
			work = append(work, branch{
				item:  out,
				next:  b.next + 1,
				isNew: b.isNew || out.IsNew(),
			})
		}
	}
	return survivors, drops, nil
}

// branchReport rebuilds the source columns for a branch. Records minted by
// fan-out have no source file of their own; their source columns are
// blanked as in the original audit format.
func (o *Orchestrator) branchReport(b branch) types.ItemReport {
	r := types.ItemReport{
		SrcPath:  b.item.Path(),
		SrcUID:   b.item.UID(),
		SrcType:  b.item.Type(),
		SrcState: b.item.ReviewState(),
	}
	if orig, ok := b.item[types.KeyOrigPath].(string); ok {
		r.SrcPath = orig
	}
	if b.isNew {
		r.SrcUID = "--"
		r.SrcType = "--"
		r.SrcState = "--"
	}
	return r
}

// recordDrop tallies and reports one dropped branch. Steps on the
// exception list stop the branch without counting as a drop. A dropped
// folderish path poisons its subtree so descendants are dropped too.
func (o *Orchestrator) recordDrop(report types.ItemReport, item types.Item, step string) {
	counted := !o.dropExceptions[step]
	if counted {
		o.collector.IncDropped(step)
		if item.IsFolderish() && item.Path() != "" {
			o.dropPaths[item.Path()] = step
		}
	}
	report.DstPath = "--"
	report.DstUID = "--"
	report.DstType = "--"
	report.DstState = "--"
	report.LastStep = step
	o.reporter.Record(report)
}

// droppedByParent reports whether any parent of path was dropped earlier in
// the run, and by which step. Relies on the source set being sorted so
// containers are fully processed before their children enter the chain.
func (o *Orchestrator) droppedByParent(path string) (string, bool) {
	for parent := range types.AllParents(path) {
		if step, ok := o.dropPaths[parent]; ok {
			return step, true
		}
	}
	return "", false
}

// exportBranch persists one surviving branch and updates counters, index
// entries and the audit report.
func (o *Orchestrator) exportBranch(ctx context.Context, srcReport types.ItemReport, b branch) error {
	item := b.item
	o.disambiguatePath(item)

	files, err := o.exporter.Export(ctx, item)
	if err != nil {
		return &ExportError{UID: item.UID(), Path: item.Path(), Err: err}
	}

	o.collector.IncExported(item.Type())
	// Every exported identifier resolves to itself, so references minted
	// by fan-out steps stay consistent.
	o.ledger.Alias(item.UID(), item.UID())
	o.entries = append(o.entries, types.IndexEntry{
		UID:  item.UID(),
		Type: item.Type(),
		Path: item.Path(),
		Data: files.Data,
	})

	report := o.branchReport(b)
	report.Filename = srcReport.Filename
	if !b.isNew {
		report.SrcPath = srcReport.SrcPath
		report.SrcUID = srcReport.SrcUID
		report.SrcType = srcReport.SrcType
		report.SrcState = srcReport.SrcState
	}
	if orig, ok := item[types.KeyOrigPath].(string); ok && !b.isNew {
		report.SrcPath = orig
	}
	report.DstPath = item.Path()
	report.DstUID = item.UID()
	report.DstType = item.Type()
	report.DstState = item.ReviewState()
	report.LastStep = ""
	o.reporter.Record(report)
	return nil
}

// disambiguatePath suffixes the final path segment when two records map to
// the same destination path after transformation: first writer keeps the
// path, later ones get "-1", "-2", ... in insertion order.
func (o *Orchestrator) disambiguatePath(item types.Item) {
	path := item.Path()
	if path == "" {
		return
	}
	n, taken := o.usedPaths[path]
	if !taken {
		o.usedPaths[path] = 0
		return
	}
	for {
		n++
		candidate := fmt.Sprintf("%s-%d", path, n)
		if _, exists := o.usedPaths[candidate]; !exists {
			o.usedPaths[path] = n
			o.usedPaths[candidate] = 0
			item.SetPath(candidate)
			return
		}
	}
}

// logFinalState emits the end-of-run summary with counters sorted by
// descending count.
func (o *Orchestrator) logFinalState(indexPath string) {
	snap := o.collector.Snapshot()
	o.logger.Info("pipeline finished", map[string]any{
		"processed": snap.Processed,
		"exported":  sortCounts(snap.Exported),
		"dropped":   sortCounts(snap.Dropped),
		"skipped":   snap.Skipped,
		"index":     indexPath,
	})
}

// sortCounts renders a counter map as "name=count" pairs, largest first.
func sortCounts(data map[string]int64) []string {
	type kv struct {
		name  string
		count int64
	}
	pairs := make([]kv, 0, len(data))
	for k, v := range data {
		pairs = append(pairs, kv{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].name < pairs[j].name
	})
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, fmt.Sprintf("%s=%d", p.name, p.count))
	}
	return out
}
