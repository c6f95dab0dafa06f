package steps

import (
	"github.com/plonegovbr/transmute/config"
	"github.com/plonegovbr/transmute/registry"
	"github.com/plonegovbr/transmute/types"
)

// DefaultPage folds a container and its designated default page into a
// single record. When a container with a default page arrives it is held
// back and dropped; when the page itself arrives it inherits the configured
// container fields, identity included, and continues down the chain.
//
// Relies on the source set being sorted so containers precede their pages.
// The fold is bookkeeping, not data loss, so "default_page" belongs on the
// do-not-count-drop list (it is there by default).
func DefaultPage(cfg *config.Settings, _ *registry.Registry) (types.Step, error) {
	inherit := cfg.DefaultPages.KeysFromParent
	// Held containers, keyed by the original UID of their default page.
	pending := map[string]types.Item{}
	return func(item types.Item, meta *types.RunMeta) ([]types.Item, error) {
		oldUID, _ := item[types.KeyOldUID].(string)
		if parent, ok := pending[oldUID]; ok {
			delete(pending, oldUID)
			mergeParent(item, parent, inherit)
			return []types.Item{item}, nil
		}
		if pageUID, ok := meta.DefaultPage[oldUID]; ok && pageUID != oldUID {
			pending[pageUID] = item
			return nil, nil
		}
		return []types.Item{item}, nil
	}, nil
}

// mergeParent copies the configured container fields onto the page. The
// path goes through SetPath so the short id is re-derived alongside it.
func mergeParent(item, parent types.Item, keys []string) {
	for _, key := range keys {
		value, ok := parent[key]
		if !ok {
			continue
		}
		switch key {
		case types.KeyPath:
			if path, ok := value.(string); ok {
				item.SetPath(path)
			}
		case types.KeyShortID:
			// Derived from the path.
		case types.KeyUID:
			// Taking the container's identity includes its source
			// identifier, so sidecar lookups keep working.
			item[types.KeyUID] = value
			if old, ok := parent[types.KeyOldUID]; ok {
				item[types.KeyOldUID] = old
			}
		default:
			item[key] = value
		}
	}
	item[types.KeyFolderish] = false
}
