package steps

import (
	"github.com/plonegovbr/transmute/config"
	"github.com/plonegovbr/transmute/registry"
	"github.com/plonegovbr/transmute/types"
)

// Sanitize removes configured keys from every record. Usually runs last so
// legacy fields never reach the destination.
func Sanitize(cfg *config.Settings, _ *registry.Registry) (types.Step, error) {
	drop := make(map[string]bool, len(cfg.Sanitize.DropKeys))
	for _, key := range cfg.Sanitize.DropKeys {
		drop[key] = true
	}
	return func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		for key := range item {
			if drop[key] {
				delete(item, key)
			}
		}
		return []types.Item{item}, nil
	}, nil
}

// DataOverride applies per-path field overrides from the configuration.
//
//	[data_override."/campus/news"]
//	title = "News"
//	exclude_from_nav = true
func DataOverride(cfg *config.Settings, _ *registry.Registry) (types.Step, error) {
	overrides := cfg.DataOverride
	return func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		if override, ok := overrides[item.Path()]; ok {
			for key, value := range override {
				item[key] = value
			}
		}
		return []types.Item{item}, nil
	}, nil
}
