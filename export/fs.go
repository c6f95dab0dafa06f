package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/plonegovbr/transmute/types"
)

// FSExporter writes artifacts to a local destination root. Per-record
// atomicity: each record is assembled in a hidden temp directory and
// renamed into place, so a crash mid-run never leaves a half-written
// record behind.
type FSExporter struct {
	root             string
	meta             *types.RunMeta
	keepDefaultPages bool
	blobFiles        []string
}

// NewFSExporter creates a filesystem exporter rooted at meta.Destination.
func NewFSExporter(meta *types.RunMeta, keepDefaultPages bool) (*FSExporter, error) {
	root := meta.Destination
	if err := os.MkdirAll(filepath.Join(root, ContentDir), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create destination %s: %w", root, err)
	}
	return &FSExporter{root: root, meta: meta, keepDefaultPages: keepDefaultPages}, nil
}

// Export writes one record and its attachments.
func (e *FSExporter) Export(ctx context.Context, item types.Item) (types.ItemFiles, error) {
	var files types.ItemFiles
	if err := ctx.Err(); err != nil {
		return files, err
	}

	data, blobs, files, err := prepareItem(item)
	if err != nil {
		return files, err
	}

	uid := item.UID()
	contentRoot := filepath.Join(e.root, ContentDir)
	tmpDir := filepath.Join(contentRoot, ".tmp-"+uid)
	finalDir := filepath.Join(contentRoot, uid)

	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return files, fmt.Errorf("cannot create %s: %w", tmpDir, err)
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	if err := os.WriteFile(filepath.Join(tmpDir, DataFile), data, 0o644); err != nil {
		cleanup()
		return files, fmt.Errorf("cannot write record %s: %w", uid, err)
	}
	for _, blob := range blobs {
		// Blob keys are relative to the content root and start with the
		// record uid; rebase them into the temp directory.
		rel := strings.TrimPrefix(blob.Key, uid+"/")
		path := filepath.Join(tmpDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			cleanup()
			return files, fmt.Errorf("cannot create blob dir for %s: %w", uid, err)
		}
		if err := os.WriteFile(path, blob.Data, 0o644); err != nil {
			cleanup()
			return files, fmt.Errorf("cannot write blob %s: %w", blob.Key, err)
		}
	}

	if err := os.Rename(tmpDir, finalDir); err != nil {
		cleanup()
		return files, fmt.Errorf("cannot commit record %s: %w", uid, err)
	}
	e.blobFiles = append(e.blobFiles, files.Blobs...)
	return files, nil
}

// WriteIndex writes the consolidated index artifact and the relations file,
// returning the index location.
func (e *FSExporter) WriteIndex(ctx context.Context, entries []types.IndexEntry, uids map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	index, relations := buildIndex(e.meta, entries, e.blobFiles, uids, e.keepDefaultPages)

	relData, err := encodeJSON(relations)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(e.root, RelationsFile), relData, 0o644); err != nil {
		return "", fmt.Errorf("cannot write relations artifact: %w", err)
	}

	indexData, err := encodeJSON(index)
	if err != nil {
		return "", err
	}
	indexPath := filepath.Join(e.root, ContentDir, IndexFile)
	if err := os.WriteFile(indexPath, indexData, 0o644); err != nil {
		return "", fmt.Errorf("cannot write index artifact: %w", err)
	}
	return indexPath, nil
}

// RemoveContents deletes everything inside dir, used by the run command's
// clean-up option before a fresh migration.
func RemoveContents(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot list %s: %w", dir, err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("cannot remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}
