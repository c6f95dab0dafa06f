package steps

import (
	"github.com/plonegovbr/transmute/config"
	"github.com/plonegovbr/transmute/registry"
	"github.com/plonegovbr/transmute/types"
)

// PortalType rewrites the content type of every record. The record first
// runs through its type's processor, then the destination type is looked
// up: a per-path override wins over the per-type mapping. Records whose
// type has no mapping are dropped.
//
// All processors referenced by the configuration are resolved at build
// time, so a bad processor name fails before any record is processed.
func PortalType(cfg *config.Settings, reg *registry.Registry) (types.Step, error) {
	// Default processor plus every configured override, resolved eagerly.
	if _, err := reg.ResolveProcessor(""); err != nil {
		return nil, err
	}
	for _, typeName := range cfg.TypeNames() {
		if _, err := reg.ResolveProcessor(typeName); err != nil {
			return nil, err
		}
	}

	overrides := cfg.Types.Overrides
	pathOverrides := cfg.Paths.PortalType

	return func(item types.Item, meta *types.RunMeta) ([]types.Item, error) {
		origType := item.Type()
		processor, err := reg.ResolveProcessor(origType)
		if err != nil {
			return nil, err
		}
		item, err = processor(item, meta)
		if err != nil {
			return nil, err
		}

		newType := overrides[origType].PortalType
		if mapped, ok := pathOverrides[item.Path()]; ok {
			newType = mapped
		}
		if newType == "" {
			return nil, nil
		}
		item[types.KeyType] = newType
		item[types.KeyOrigType] = origType
		return []types.Item{item}, nil
	}, nil
}

// DefaultProcessor passes items through unchanged.
func DefaultProcessor(_ *config.Settings) (types.Processor, error) {
	return func(item types.Item, _ *types.RunMeta) (types.Item, error) {
		return item, nil
	}, nil
}

// CollectionProcessor normalizes legacy collection queries: rows without an
// operation are removed so the destination search machinery accepts the
// query.
func CollectionProcessor(_ *config.Settings) (types.Processor, error) {
	return func(item types.Item, _ *types.RunMeta) (types.Item, error) {
		rows, ok := item["query"].([]any)
		if !ok {
			return item, nil
		}
		cleaned := make([]any, 0, len(rows))
		for _, r := range rows {
			row, ok := r.(map[string]any)
			if !ok {
				continue
			}
			if op, _ := row["o"].(string); op == "" {
				continue
			}
			cleaned = append(cleaned, row)
		}
		item["query"] = cleaned
		return item, nil
	}, nil
}
