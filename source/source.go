// Package source enumerates and decodes a collective.exportimport export
// tree. The engine consumes two ordered collections: sidecar metadata files
// and per-record content files.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/plonegovbr/transmute/types"
)

// Sidecar file names that are not content records.
var sidecarNames = map[string]bool{
	"errors.json": true,
	"paths.json":  true,
}

// Enumerate scans a source export root and splits its JSON files into
// sidecar metadata files and content files. Content files are sorted by
// their numeric name so containers precede their children.
func Enumerate(root string) (types.SourceFiles, error) {
	var files types.SourceFiles
	info, err := os.Stat(root)
	if err != nil {
		return files, fmt.Errorf("source root %s: %w", root, err)
	}
	if !info.IsDir() {
		return files, fmt.Errorf("source root %s is not a directory", root)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "export_") || sidecarNames[name] {
			files.Metadata = append(files.Metadata, path)
		} else {
			files.Content = append(files.Content, path)
		}
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("cannot enumerate %s: %w", root, err)
	}

	sort.Strings(files.Metadata)
	sortContent(files.Content)
	return files, nil
}

// sortContent orders content files by the numeric value of their base name
// ("2.json" before "10.json"); non-numeric names sort after, by name.
func sortContent(content []string) {
	key := func(path string) (int, string) {
		name := strings.TrimSuffix(filepath.Base(path), ".json")
		if n, err := strconv.Atoi(name); err == nil {
			return n, ""
		}
		return int(^uint(0) >> 1), name
	}
	sort.SliceStable(content, func(i, j int) bool {
		ni, si := key(content[i])
		nj, sj := key(content[j])
		if ni != nj {
			return ni < nj
		}
		return si < sj
	})
}

// Files decodes records one at a time from an enumerated file list.
// It implements the pipeline Source contract.
type Files struct{}

// EachItem reads each content file and hands the decoded record to fn.
// Decoding stops on context cancellation or the first error from fn.
func (Files) EachItem(ctx context.Context, files []string, fn func(filename string, item types.Item) error) error {
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
		var item types.Item
		if err := json.Unmarshal(data, &item); err != nil {
			return fmt.Errorf("cannot decode %s: %w", path, err)
		}
		if err := fn(filepath.Base(path), item); err != nil {
			return err
		}
	}
	return nil
}
