package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/plonegovbr/transmute/types"
)

// BuildRunMeta reads the sidecar metadata files of a source export and
// assembles the immutable run context: default pages, local roles, child
// ordering and the cross-item relation graph. Built once, before the first
// record is processed.
func BuildRunMeta(ctx context.Context, runID, src, dst string, files types.SourceFiles) (*types.RunMeta, error) {
	meta := &types.RunMeta{
		RunID:       runID,
		Source:      src,
		Destination: dst,
		DefaultPage: map[string]string{},
		LocalRoles:  map[string]any{},
		Ordering:    map[string]any{},
	}

	for _, path := range files.Metadata {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := sidecarKey(path)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read sidecar %s: %w", path, err)
		}
		if err := mergeSidecar(meta, key, data); err != nil {
			return nil, fmt.Errorf("sidecar %s: %w", path, err)
		}
	}
	return meta, nil
}

// sidecarKey derives the logical section from a sidecar file name:
// "export_defaultpages.json" becomes "defaultpages".
func sidecarKey(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".json")
	return strings.TrimPrefix(name, "export_")
}

func mergeSidecar(meta *types.RunMeta, key string, data []byte) error {
	switch key {
	case "defaultpages":
		var rows []struct {
			UUID            string `json:"uuid"`
			DefaultPageUUID string `json:"default_page_uuid"`
		}
		if err := json.Unmarshal(data, &rows); err != nil {
			return err
		}
		for _, row := range rows {
			meta.DefaultPage[row.UUID] = row.DefaultPageUUID
		}
	case "localroles":
		var rows []struct {
			UUID       string `json:"uuid"`
			LocalRoles any    `json:"localroles"`
		}
		if err := json.Unmarshal(data, &rows); err != nil {
			return err
		}
		for _, row := range rows {
			meta.LocalRoles[row.UUID] = map[string]any{"local_roles": row.LocalRoles}
		}
	case "ordering":
		var rows []struct {
			UUID  string `json:"uuid"`
			Order any    `json:"order"`
		}
		if err := json.Unmarshal(data, &rows); err != nil {
			return err
		}
		for _, row := range rows {
			meta.Ordering[row.UUID] = row.Order
		}
	case "relations":
		var rows []types.Relation
		if err := json.Unmarshal(data, &rows); err != nil {
			return err
		}
		meta.Relations = append(meta.Relations, rows...)
	default:
		// Other sidecars (errors, paths, discussions, ...) are not needed
		// by the pipeline.
	}
	return nil
}
