package steps

import (
	"strings"

	"github.com/plonegovbr/transmute/config"
	"github.com/plonegovbr/transmute/registry"
	"github.com/plonegovbr/transmute/types"
)

// ReviewState drops records whose workflow state is not on the configured
// allow list. An empty list allows every state.
func ReviewState(cfg *config.Settings, _ *registry.Registry) (types.Step, error) {
	allowed := cfg.ReviewState.Filter.Allowed
	return func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		state, _ := item[types.KeyReviewState].(string)
		if state != "" && len(allowed) > 0 && !contains(allowed, state) {
			return nil, nil
		}
		return []types.Item{item}, nil
	}, nil
}

// Creators strips configured principals from the creators list, assigning
// the default principal when nothing remains.
func Creators(cfg *config.Settings, _ *registry.Registry) (types.Step, error) {
	remove := cfg.Principals.Remove
	fallback := cfg.Principals.Default
	return func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		var creators []string
		if current, ok := item["creators"].([]any); ok {
			for _, c := range current {
				name, _ := c.(string)
				if name != "" && !contains(remove, name) {
					creators = append(creators, name)
				}
			}
		}
		if len(creators) == 0 {
			creators = []string{fallback}
		}
		item["creators"] = creators
		return []types.Item{item}, nil
	}, nil
}

// BasicMetadata strips surrounding whitespace from title and description.
func BasicMetadata(_ *config.Settings, _ *registry.Registry) (types.Step, error) {
	return func(item types.Item, _ *types.RunMeta) ([]types.Item, error) {
		for _, field := range []string{"title", "description"} {
			if value, ok := item[field].(string); ok {
				item[field] = strings.TrimSpace(value)
			}
		}
		return []types.Item{item}, nil
	}, nil
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
