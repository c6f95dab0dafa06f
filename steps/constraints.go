package steps

import (
	"sort"

	"github.com/plonegovbr/transmute/config"
	"github.com/plonegovbr/transmute/registry"
	"github.com/plonegovbr/transmute/types"
)

// constraintsKey is the source field carrying per-container creation
// constraints, keyed by constraint kind with lists of addable type names.
const constraintsKey = "exportimport.constrains"

// Constraints rewrites stored creation constraints through the content
// type mapping, so containers restrict creation to destination types.
// Types without a mapping are removed from the lists; records without the
// field pass through untouched.
func Constraints(cfg *config.Settings, _ *registry.Registry) (types.Step, error) {
	overrides := cfg.Types.Overrides
	return func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		raw, ok := item[constraintsKey].(map[string]any)
		if !ok {
			return []types.Item{item}, nil
		}
		fixed := make(map[string]any, len(raw))
		for kind, values := range raw {
			list, ok := values.([]any)
			if !ok {
				continue
			}
			seen := make(map[string]bool, len(list))
			mapped := make([]string, 0, len(list))
			for _, v := range list {
				name, _ := v.(string)
				target := overrides[name].PortalType
				if target == "" || seen[target] {
					continue
				}
				seen[target] = true
				mapped = append(mapped, target)
			}
			sort.Strings(mapped)
			fixed[kind] = mapped
		}
		item[constraintsKey] = fixed
		return []types.Item{item}, nil
	}, nil
}
