package steps

import (
	"strings"

	"github.com/plonegovbr/transmute/config"
	"github.com/plonegovbr/transmute/registry"
	"github.com/plonegovbr/transmute/types"
)

// PathFilter drops records whose paths match the configured deny prefixes
// or fall outside the allow prefixes. With no rules configured every record
// passes.
func PathFilter(cfg *config.Settings, _ *registry.Registry) (types.Step, error) {
	filter := cfg.Paths.Filter
	return func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		if !pathAllowed(filter, item.Path()) {
			return nil, nil
		}
		return []types.Item{item}, nil
	}, nil
}

// pathAllowed applies deny rules first, then allow rules. An empty allow
// list admits everything not denied.
func pathAllowed(filter config.PathFilter, path string) bool {
	for _, prefix := range filter.Drop {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	if len(filter.Allowed) == 0 {
		return true
	}
	for _, prefix := range filter.Allowed {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
