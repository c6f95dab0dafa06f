package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/plonegovbr/transmute/metrics"
	"github.com/plonegovbr/transmute/types"
)

// memSource feeds in-memory records to the orchestrator.
type memSource struct {
	items []types.Item
}

func (s memSource) EachItem(_ context.Context, _ []string, fn func(filename string, item types.Item) error) error {
	for i, item := range s.items {
		if err := fn(fmt.Sprintf("%d.json", i), item); err != nil {
			return err
		}
	}
	return nil
}

// stubExporter records exports in memory. failPath makes Export fail for
// one destination path.
type stubExporter struct {
	exported []types.Item
	entries  []types.IndexEntry
	uids     map[string]string
	failPath string
}

func (e *stubExporter) Export(_ context.Context, item types.Item) (types.ItemFiles, error) {
	if e.failPath != "" && item.Path() == e.failPath {
		return types.ItemFiles{}, errors.New("disk full")
	}
	e.exported = append(e.exported, item)
	return types.ItemFiles{Data: item.UID() + "/data.json"}, nil
}

func (e *stubExporter) WriteIndex(_ context.Context, entries []types.IndexEntry, uids map[string]string) (string, error) {
	e.entries = entries
	e.uids = uids
	return "content/__metadata__.json", nil
}

func record(uid, path, typeName string) types.Item {
	return types.Item{
		types.KeyUID:  uid,
		types.KeyPath: path,
		types.KeyType: typeName,
	}
}

func passthrough(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
	return []types.Item{item}, nil
}

// dropType drops every record of the given type.
func dropType(typeName string) types.Step {
	return func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		if item.Type() == typeName {
			return nil, nil
		}
		return []types.Item{item}, nil
	}
}

// counting wraps a step and counts invocations.
func counting(step types.Step, calls *int) types.Step {
	return func(item types.Item, meta *types.RunMeta) ([]types.Item, error) {
		*calls++
		return step(item, meta)
	}
}

type fixture struct {
	orch     *Orchestrator
	exporter *stubExporter
	coll     *metrics.Collector
	reporter *csvReporter
	items    []types.Item
}

func newFixture(t *testing.T, cfg Config, items []types.Item) *fixture {
	t.Helper()
	exporter := &stubExporter{}
	coll := metrics.NewCollector("test-run", len(items))
	reporter := &csvReporter{}

	cfg.Exporter = exporter
	cfg.Collector = coll
	cfg.Reporter = reporter
	cfg.Meta = &types.RunMeta{RunID: "test-run", Source: "/src", Destination: t.TempDir()}

	orch, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{orch: orch, exporter: exporter, coll: coll, reporter: reporter, items: items}
}

func (f *fixture) run(t *testing.T) string {
	t.Helper()
	files := types.SourceFiles{Content: make([]string, len(f.items))}
	index, err := f.orch.Run(context.Background(), memSource{items: f.items}, files)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return index
}

func TestRun_EmptyChainExportsEverything(t *testing.T) {
	items := []types.Item{
		record("uid-1", "/site/a", "Document"),
		record("uid-2", "/site/b", "News Item"),
	}
	f := newFixture(t, Config{}, items)
	f.run(t)

	if len(f.exporter.exported) != 2 {
		t.Fatalf("expected 2 exports, got %d", len(f.exporter.exported))
	}
	snap := f.coll.Snapshot()
	if snap.Processed != 2 || snap.ExportedTotal() != 2 || snap.DroppedTotal() != 0 {
		t.Errorf("unexpected counters: %+v", snap)
	}
	// Identity must be remapped while the rest of the record is untouched.
	first := f.exporter.exported[0]
	if first.UID() == "uid-1" || len(first.UID()) != 32 {
		t.Errorf("expected a fresh 32 char identifier, got %q", first.UID())
	}
	if first[types.KeyOldUID] != "uid-1" {
		t.Errorf("original identifier not preserved: %v", first[types.KeyOldUID])
	}
	if first.Path() != "/site/a" {
		t.Errorf("path changed by empty chain: %q", first.Path())
	}
}

func TestRun_DropMidChainSkipsLaterSteps(t *testing.T) {
	items := []types.Item{
		record("uid-1", "/site/a", "Document"),
		record("uid-2", "/site/b", "News Item"),
		record("uid-3", "/site/c", "Document"),
	}
	var afterCalls int
	f := newFixture(t, Config{
		Steps:     []types.Step{dropType("News Item"), counting(passthrough, &afterCalls)},
		StepNames: []string{"filter", "after"},
	}, items)
	f.run(t)

	if afterCalls != 2 {
		t.Errorf("dropped record reached a later step: %d calls", afterCalls)
	}
	snap := f.coll.Snapshot()
	if snap.Processed != 3 {
		t.Errorf("processed = %d, want 3", snap.Processed)
	}
	if snap.Dropped["filter"] != 1 {
		t.Errorf("dropped = %v, want filter=1", snap.Dropped)
	}
	if snap.ExportedTotal() != 2 {
		t.Errorf("exported = %d, want 2", snap.ExportedTotal())
	}
}

func TestRun_FanOutBranchesContinueIndependently(t *testing.T) {
	split := func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		if !item.IsFolderish() {
			return []types.Item{item}, nil
		}
		minted := types.Item{
			types.KeyUID:     NewUID(),
			types.KeyPath:    item.Path() + "/listing",
			types.KeyType:    "Collection",
			types.KeyNewItem: true,
		}
		return []types.Item{item, minted}, nil
	}
	items := []types.Item{
		record("uid-1", "/site/folder", "Folder"),
		record("uid-2", "/site/page", "Document"),
	}
	items[0][types.KeyFolderish] = true

	var splitCalls, afterCalls int
	f := newFixture(t, Config{
		Steps:     []types.Step{counting(split, &splitCalls), counting(passthrough, &afterCalls)},
		StepNames: []string{"split", "after"},
	}, items)
	f.run(t)

	if splitCalls != 2 {
		t.Errorf("minted branch re-entered the splitting step: %d calls", splitCalls)
	}
	if afterCalls != 3 {
		t.Errorf("expected 3 downstream invocations, got %d", afterCalls)
	}
	snap := f.coll.Snapshot()
	if snap.Processed != 2 {
		t.Errorf("fan-out inflated processed: %d", snap.Processed)
	}
	if snap.ExportedTotal() != 3 {
		t.Errorf("exported = %d, want 3", snap.ExportedTotal())
	}
	if snap.Exported["Collection"] != 1 {
		t.Errorf("exported by type = %v", snap.Exported)
	}
}

func TestRun_StepErrorIsContractViolation(t *testing.T) {
	boom := func(types.Item, *types.RunMeta) ([]types.Item, error) {
		return nil, errors.New("nil map write")
	}
	f := newFixture(t, Config{
		Steps:     []types.Step{boom},
		StepNames: []string{"boom"},
	}, []types.Item{record("uid-1", "/site/a", "Document")})

	files := types.SourceFiles{Content: make([]string, 1)}
	_, err := f.orch.Run(context.Background(), memSource{items: f.items}, files)

	var violation *ContractViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ContractViolationError, got %v", err)
	}
	if violation.Step != "boom" || violation.UID != "uid-1" {
		t.Errorf("wrong attribution: %+v", violation)
	}
	if f.exporter.entries != nil {
		t.Error("index must not be written after an aborted run")
	}
}

func TestRun_InvalidStepOutputIsContractViolation(t *testing.T) {
	strip := func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		delete(item, types.KeyPath)
		return []types.Item{item}, nil
	}
	f := newFixture(t, Config{
		Steps:     []types.Step{strip},
		StepNames: []string{"strip"},
	}, []types.Item{record("uid-1", "/site/a", "Document")})

	files := types.SourceFiles{Content: make([]string, 1)}
	_, err := f.orch.Run(context.Background(), memSource{items: f.items}, files)

	var violation *ContractViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected ContractViolationError, got %v", err)
	}
}

func TestRun_ExportFailureAbortsRun(t *testing.T) {
	f := newFixture(t, Config{}, []types.Item{
		record("uid-1", "/site/a", "Document"),
		record("uid-2", "/site/b", "Document"),
	})
	f.exporter.failPath = "/site/b"

	files := types.SourceFiles{Content: make([]string, 2)}
	_, err := f.orch.Run(context.Background(), memSource{items: f.items}, files)

	var exportErr *ExportError
	if !errors.As(err, &exportErr) {
		t.Fatalf("expected ExportError, got %v", err)
	}
	if exportErr.Path != "/site/b" {
		t.Errorf("wrong attribution: %+v", exportErr)
	}
}

func TestRun_DuplicateIdentifierSkipped(t *testing.T) {
	items := []types.Item{
		record("uid-1", "/site/a", "Document"),
		record("uid-1", "/site/a", "Document"),
	}
	f := newFixture(t, Config{}, items)
	f.run(t)

	snap := f.coll.Snapshot()
	if snap.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", snap.Skipped)
	}
	if snap.ExportedTotal() != 1 {
		t.Errorf("exported = %d, want 1", snap.ExportedTotal())
	}
	if snap.Processed != 2 {
		t.Errorf("processed = %d, want 2", snap.Processed)
	}
}

func TestRun_RecordWithoutIdentifierIsDropped(t *testing.T) {
	items := []types.Item{
		{types.KeyPath: "/site/a", types.KeyType: "Document"},
		record("uid-2", "/site/b", "Document"),
	}
	f := newFixture(t, Config{}, items)
	f.run(t)

	snap := f.coll.Snapshot()
	if snap.Dropped["decode"] != 1 {
		t.Errorf("dropped = %v, want decode=1", snap.Dropped)
	}
	if snap.ExportedTotal() != 1 {
		t.Errorf("exported = %d, want 1", snap.ExportedTotal())
	}
}

func TestRun_FolderishDropPoisonsSubtree(t *testing.T) {
	items := []types.Item{
		record("uid-1", "/site/private", "Folder"),
		record("uid-2", "/site/private/doc", "Document"),
		record("uid-3", "/site/public", "Document"),
	}
	items[0][types.KeyFolderish] = true

	var calls int
	f := newFixture(t, Config{
		Steps:     []types.Step{counting(dropType("Folder"), &calls)},
		StepNames: []string{"filter"},
	}, items)
	f.run(t)

	snap := f.coll.Snapshot()
	if snap.Dropped["filter"] != 2 {
		t.Errorf("dropped = %v, want filter=2", snap.Dropped)
	}
	if snap.ExportedTotal() != 1 {
		t.Errorf("exported = %d, want 1", snap.ExportedTotal())
	}
	// No step ever runs for the child; attribution comes from the parent.
	if calls != 2 {
		t.Errorf("descendant of a dropped folder entered a step: %d calls", calls)
	}
}

func TestRun_PoisoningFollowsRewrittenPaths(t *testing.T) {
	stripPrefix := func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		item.SetPath(strings.TrimPrefix(item.Path(), "/Plone"))
		return []types.Item{item}, nil
	}
	items := []types.Item{
		record("uid-1", "/Plone/private", "Folder"),
		record("uid-2", "/Plone/private/doc", "Document"),
	}
	items[0][types.KeyFolderish] = true

	f := newFixture(t, Config{
		Steps:     []types.Step{stripPrefix, dropType("Folder")},
		StepNames: []string{"prefix", "filter"},
	}, items)
	f.run(t)

	// The folder is dropped under its rewritten path; the child carries the
	// same rewrite by the time it reaches the dropping step, so the subtree
	// still folds.
	snap := f.coll.Snapshot()
	if snap.Dropped["filter"] != 2 {
		t.Errorf("dropped = %v, want filter=2", snap.Dropped)
	}
	if snap.ExportedTotal() != 0 {
		t.Errorf("descendant of a dropped folder was exported: %d", snap.ExportedTotal())
	}
}

func TestRun_DropExceptionNotCounted(t *testing.T) {
	items := []types.Item{
		record("uid-1", "/site/folder", "Folder"),
		record("uid-2", "/site/folder/page", "Document"),
	}
	items[0][types.KeyFolderish] = true

	f := newFixture(t, Config{
		Steps:     []types.Step{dropType("Folder")},
		StepNames: []string{"fold"},
		DropExceptions: map[string]bool{
			"fold": true,
		},
	}, items)
	f.run(t)

	snap := f.coll.Snapshot()
	if snap.DroppedTotal() != 0 {
		t.Errorf("exception drop was counted: %v", snap.Dropped)
	}
	// An uncounted folderish drop must not poison the subtree.
	if snap.ExportedTotal() != 1 {
		t.Errorf("exported = %d, want 1", snap.ExportedTotal())
	}
	// The audit trail still carries the row.
	found := false
	for _, row := range f.reporter.entries {
		if row.LastStep == "fold" {
			found = true
		}
	}
	if !found {
		t.Error("exception drop missing from the audit rows")
	}
}

func TestRun_PathCollisionGetsSuffix(t *testing.T) {
	rewrite := func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		item.SetPath("/site/page")
		return []types.Item{item}, nil
	}
	items := []types.Item{
		record("uid-1", "/site/page one", "Document"),
		record("uid-2", "/site/page_one", "Document"),
		record("uid-3", "/site/page-one", "Document"),
	}
	f := newFixture(t, Config{
		Steps:     []types.Step{rewrite},
		StepNames: []string{"rewrite"},
	}, items)
	f.run(t)

	paths := make([]string, 0, 3)
	for _, item := range f.exporter.exported {
		paths = append(paths, item.Path())
	}
	want := []string{"/site/page", "/site/page-1", "/site/page-2"}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
	ids := make(map[any]bool)
	for _, item := range f.exporter.exported {
		ids[item[types.KeyShortID]] = true
	}
	if len(ids) != 3 {
		t.Errorf("short ids not disambiguated with the paths: %v", ids)
	}
}

func TestRun_ProgressReportedPerRecord(t *testing.T) {
	items := []types.Item{
		record("uid-1", "/site/a", "Document"),
		record("uid-2", "/site/b", "Document"),
	}
	var updates [][2]int64
	f := newFixture(t, Config{
		Progress: ProgressFunc(func(processed, total int64) {
			updates = append(updates, [2]int64{processed, total})
		}),
	}, items)
	f.run(t)

	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[1] != [2]int64{2, 2} {
		t.Errorf("final update = %v, want [2 2]", updates[1])
	}
}

func TestRun_IndexCarriesExportedEntries(t *testing.T) {
	items := []types.Item{
		record("uid-1", "/site/a", "Document"),
		record("uid-2", "/site/b", "News Item"),
	}
	f := newFixture(t, Config{
		Steps:     []types.Step{dropType("News Item")},
		StepNames: []string{"filter"},
	}, items)
	index := f.run(t)

	if index != "content/__metadata__.json" {
		t.Errorf("unexpected index location %q", index)
	}
	if len(f.exporter.entries) != 1 {
		t.Fatalf("expected 1 index entry, got %d", len(f.exporter.entries))
	}
	entry := f.exporter.entries[0]
	if entry.Path != "/site/a" || entry.Type != "Document" {
		t.Errorf("unexpected entry %+v", entry)
	}
	// The mapping covers the dropped record too, resolution prunes later.
	if len(f.exporter.uids) < 2 {
		t.Errorf("identity mapping incomplete: %v", f.exporter.uids)
	}
}

func TestRun_ReportFlushedToConfiguredDir(t *testing.T) {
	reportDir := t.TempDir()
	f := newFixture(t, Config{
		ReportDir: reportDir,
	}, []types.Item{record("uid-1", "/site/a", "Document")})
	f.run(t)

	if _, err := os.Stat(filepath.Join(reportDir, ReportFile)); err != nil {
		t.Fatalf("report not written to the configured directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.orch.meta.Destination, ReportFile)); !os.IsNotExist(err) {
		t.Errorf("report leaked into the destination: %v", err)
	}
}

func TestRun_RestoredLedgerSkipsMigratedRecords(t *testing.T) {
	items := []types.Item{
		record("uid-1", "/site/a", "Document"),
		record("uid-2", "/site/b", "Document"),
	}
	ledger := NewLedger()
	ledger.Restore([]string{"uid-1"}, map[string]string{"uid-1": "deadbeef"})

	f := newFixture(t, Config{Ledger: ledger}, items)
	f.run(t)

	snap := f.coll.Snapshot()
	if snap.Skipped != 1 || snap.ExportedTotal() != 1 {
		t.Errorf("unexpected counters after restore: %+v", snap)
	}
}
