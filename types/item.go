// Package types defines core domain types for the transmute pipeline.
// Items are semi-schemaless: a small set of required fields plus an open
// attribute bag, since steps outside the core may introduce new fields freely.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"fmt"
	"strings"
)

// Well-known item keys carried over from the collective.exportimport payload.
const (
	KeyPath        = "@id"
	KeyType        = "@type"
	KeyUID         = "UID"
	KeyShortID     = "id"
	KeyReviewState = "review_state"
	KeyFolderish   = "is_folderish"
)

// Internal keys used for bookkeeping while an item is inside the step chain.
// They are stripped before export.
const (
	KeyOldUID       = "_UID"
	KeyOrigPath     = "_@id"
	KeyOrigType     = "_orig_type"
	KeyNewItem      = "_is_new_item"
	KeyBlobs        = "_blob_files_"
)

// Item is one content record being migrated. It is mutable only while inside
// the step chain for its processing pass; once exported it is immutable.
type Item map[string]any

// Path returns the hierarchical location of the item.
func (i Item) Path() string {
	s, _ := i[KeyPath].(string)
	return s
}

// SetPath updates the hierarchical location of the item and its short id.
func (i Item) SetPath(path string) {
	i[KeyPath] = path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		i[KeyShortID] = path[idx+1:]
	}
}

// Type returns the content type tag.
func (i Item) Type() string {
	s, _ := i[KeyType].(string)
	return s
}

// UID returns the item identifier.
func (i Item) UID() string {
	s, _ := i[KeyUID].(string)
	return s
}

// ReviewState returns the workflow state, or "--" when absent.
func (i Item) ReviewState() string {
	if s, ok := i[KeyReviewState].(string); ok && s != "" {
		return s
	}
	return "--"
}

// IsFolderish reports whether the item can contain children.
func (i Item) IsFolderish() bool {
	b, _ := i[KeyFolderish].(bool)
	return b
}

// IsNew reports and clears the new-item marker set by fan-out steps.
func (i Item) IsNew() bool {
	b, _ := i[KeyNewItem].(bool)
	delete(i, KeyNewItem)
	return b
}

// Validate checks the step contract: every item flowing between steps must
// carry an identifier, a type tag and a path.
func (i Item) Validate() error {
	if i.UID() == "" {
		return fmt.Errorf("item %q lacks a UID", i.Path())
	}
	if i.Type() == "" {
		return fmt.Errorf("item %s lacks a type tag", i.UID())
	}
	if i.Path() == "" {
		return fmt.Errorf("item %s lacks a path", i.UID())
	}
	return nil
}

// Exportable returns a copy of the item without internal bookkeeping keys.
func (i Item) Exportable() Item {
	out := make(Item, len(i))
	for k, v := range i {
		if strings.HasPrefix(k, "_") {
			continue
		}
		out[k] = v
	}
	return out
}

// AllParents returns every parent path of the given path.
// For "/site/a/b/c" it returns {"/site", "/site/a", "/site/a/b"}.
func AllParents(path string) map[string]struct{} {
	parents := map[string]struct{}{}
	parts := strings.Split(path, "/")
	for idx := range parts {
		parent := strings.Join(parts[:idx], "/")
		if strings.TrimSpace(parent) == "" {
			continue
		}
		parents[parent] = struct{}{}
	}
	return parents
}
