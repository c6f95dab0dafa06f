package steps

import (
	"github.com/plonegovbr/transmute/config"
	"github.com/plonegovbr/transmute/registry"
	"github.com/plonegovbr/transmute/types"
)

// blobFields are the record fields that carry inline binary payloads in
// the source format.
var blobFields = []string{"file", "image"}

// Blobs moves inline binary payloads out of the record body and into the
// attachment staging key, where the exporter decodes and writes them as
// separate artifacts. A record whose payload fields carry no data is left
// untouched.
func Blobs(_ *config.Settings, _ *registry.Registry) (types.Step, error) {
	return func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		var staged map[string]any
		for _, field := range blobFields {
			blob, ok := item[field].(map[string]any)
			if !ok {
				continue
			}
			if data, _ := blob["data"].(string); data == "" {
				continue
			}
			if staged == nil {
				if existing, ok := item[types.KeyBlobs].(map[string]any); ok {
					staged = existing
				} else {
					staged = map[string]any{}
				}
			}
			staged[field] = blob
			delete(item, field)
		}
		if staged != nil {
			item[types.KeyBlobs] = staged
		}
		return []types.Item{item}, nil
	}, nil
}
