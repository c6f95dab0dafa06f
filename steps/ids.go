package steps

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/plonegovbr/transmute/config"
	"github.com/plonegovbr/transmute/registry"
	"github.com/plonegovbr/transmute/types"
)

// shortIDPattern trims leading and trailing separator noise from a path
// segment ("_-foo-_" becomes "foo").
var shortIDPattern = regexp.MustCompile(`^[ _-]*([^ _-].*?)[ _-]*$`)

// fixShortID cleans one path segment: separator noise is trimmed and
// spaces become underscores.
func fixShortID(id string) string {
	if m := shortIDPattern.FindStringSubmatch(id); m != nil {
		id = m[1]
	}
	return strings.ReplaceAll(id, " ", "_")
}

// ExportPrefix strips configured export prefixes from the record path and
// remembers the stripped path for audit rows.
func ExportPrefix(cfg *config.Settings, _ *registry.Registry) (types.Step, error) {
	prefixes := cfg.Paths.ExportPrefixes
	return func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		path := item.Path()
		for _, prefix := range prefixes {
			if strings.HasPrefix(path, prefix) {
				path = strings.Replace(path, prefix, "", 1)
			}
		}
		item[types.KeyPath] = path
		item[types.KeyOrigPath] = path
		return []types.Item{item}, nil
	}, nil
}

// IDs cleans record paths: percent-escapes are decoded, configured path
// fragments are replaced, and the final segment is normalized.
func IDs(cfg *config.Settings, _ *registry.Registry) (types.Step, error) {
	// Sorted so replacements apply in a stable order.
	srcs := make([]string, 0, len(cfg.Paths.Cleanup))
	for src := range cfg.Paths.Cleanup {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)
	cleanup := cfg.Paths.Cleanup

	return func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		path := strings.ReplaceAll(item.Path(), " ", "_")
		if unquoted, err := url.PathUnescape(path); err == nil {
			path = unquoted
		}
		for _, src := range srcs {
			path = strings.ReplaceAll(path, src, cleanup[src])
		}

		if idx := strings.LastIndex(path, "/"); idx >= 0 {
			short := fixShortID(path[idx+1:])
			path = path[:idx+1] + short
			item[types.KeyShortID] = short
		}
		item[types.KeyPath] = path
		return []types.Item{item}, nil
	}, nil
}
