// Package export persists transformed records in plone.exportimport layout:
// one content/<uid>/data.json per record, blob attachments alongside, and a
// consolidated content/__metadata__.json index written once at run end.
//
// Two backends are provided: a filesystem exporter with per-record
// atomicity via temp-dir rename, and an S3 exporter with best-effort
// cleanup of partially written objects.
package export

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/plonegovbr/transmute/types"
)

// Artifact names within the destination tree.
const (
	ContentDir    = "content"
	DataFile      = "data.json"
	IndexFile     = "__metadata__.json"
	RelationsFile = "relations.json"
)

// blobFile is one decoded binary attachment ready to be written.
type blobFile struct {
	// Key is the artifact location relative to the content root.
	Key  string
	Data []byte
}

// prepareItem serializes one record: internal keys are stripped, blob
// payloads are decoded and replaced by their artifact locations. Returns
// the encoded data.json document, the blob files to write, and the item
// file listing for the index.
func prepareItem(item types.Item) ([]byte, []blobFile, types.ItemFiles, error) {
	uid := item.UID()
	var blobs []blobFile
	var files types.ItemFiles

	out := item.Exportable()
	if raw, ok := item[types.KeyBlobs].(map[string]any); ok {
		fields := make([]string, 0, len(raw))
		for field := range raw {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			blob, ok := raw[field].(map[string]any)
			if !ok {
				continue
			}
			decoded, err := decodeBlob(uid, field, item, blob)
			if err != nil {
				return nil, nil, files, err
			}
			blobs = append(blobs, decoded)
			files.Blobs = append(files.Blobs, decoded.Key)

			ref := make(map[string]any, len(blob))
			for k, v := range blob {
				if k == "data" {
					continue
				}
				ref[k] = v
			}
			ref["blob_path"] = decoded.Key
			out[field] = ref
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, nil, files, fmt.Errorf("cannot encode record %s: %w", uid, err)
	}
	files.Data = uid + "/" + DataFile
	return data, blobs, files, nil
}

// decodeBlob base64-decodes one attachment payload.
func decodeBlob(uid, field string, item types.Item, blob map[string]any) (blobFile, error) {
	encoded, _ := blob["data"].(string)
	if encoded == "" {
		return blobFile{}, fmt.Errorf("record %s blob field %q has no data", uid, field)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return blobFile{}, fmt.Errorf("record %s blob field %q: %w", uid, field, err)
	}
	filename, _ := blob["filename"].(string)
	if filename == "" {
		filename, _ = item[types.KeyShortID].(string)
	}
	if filename == "" {
		filename = uid
	}
	return blobFile{Key: uid + "/" + field + "/" + filename, Data: data}, nil
}

// buildIndex assembles the consolidated index and relations documents.
// Sidecar sections are pruned to exported records and rekeyed through the
// identity mapping; data files are sorted by destination path.
func buildIndex(meta *types.RunMeta, entries []types.IndexEntry, blobFiles []string, uids map[string]string, keepDefaultPages bool) (map[string]any, []map[string]string) {
	exported := make(map[string]bool, len(entries))
	for _, e := range entries {
		exported[e.UID] = true
	}
	// resolve maps an old identifier to its exported replacement, or ""
	// when the referenced record did not survive the run.
	resolve := func(oldUID string) string {
		newUID, ok := uids[oldUID]
		if !ok || !exported[newUID] {
			return ""
		}
		return newUID
	}

	sorted := make([]types.IndexEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	dataFiles := make([]string, 0, len(sorted))
	for _, e := range sorted {
		dataFiles = append(dataFiles, e.Data)
	}
	if blobFiles == nil {
		blobFiles = []string{}
	}

	defaultPage := map[string]string{}
	if keepDefaultPages {
		for oldUID, oldPage := range meta.DefaultPage {
			container := resolve(oldUID)
			page := resolve(oldPage)
			if container != "" && page != "" {
				defaultPage[container] = page
			}
		}
	}
	ordering := map[string]any{}
	for oldUID, order := range meta.Ordering {
		if newUID := resolve(oldUID); newUID != "" {
			ordering[newUID] = order
		}
	}
	localRoles := map[string]any{}
	for oldUID, roles := range meta.LocalRoles {
		if newUID := resolve(oldUID); newUID != "" {
			localRoles[newUID] = roles
		}
	}

	index := map[string]any{
		"_version":     types.IndexVersion,
		"data_files":   dataFiles,
		"blob_files":   blobFiles,
		"default_page": defaultPage,
		"ordering":     ordering,
		"local_roles":  localRoles,
	}

	relations := []map[string]string{}
	for _, rel := range meta.Relations {
		from := resolve(rel.FromUID)
		to := resolve(rel.ToUID)
		if from == "" || to == "" || from == to {
			continue
		}
		relations = append(relations, map[string]string{
			"from_attribute": rel.Relationship,
			"from_uuid":      from,
			"to_uuid":        to,
		})
	}
	return index, relations
}

func encodeJSON(doc any) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("cannot encode artifact: %w", err)
	}
	return append(data, '\n'), nil
}
