package types

import "errors"

// RefResolver resolves an old identifier to its assigned replacement.
// Steps use it to rewrite cross-item references; the mapping is append-only,
// so a resolved value never changes within a run.
type RefResolver interface {
	Resolve(oldUID string) (string, bool)
}

// Relation is one cross-item reference recovered from the source export.
type Relation struct {
	FromUID      string `json:"from_uuid"`
	Relationship string `json:"relationship"`
	ToUID        string `json:"to_uuid"`
}

// RunMeta is the read-only shared context passed to every step invocation.
// It is built once before the first record is processed and never mutated
// by steps. Steps needing mutable scratch keep their own state.
type RunMeta struct {
	// RunID identifies this migration run. Must be non-empty.
	RunID string
	// Source is the source export root.
	Source string
	// Destination is the destination root.
	Destination string
	// DefaultPage maps a container UID to its designated default page UID.
	DefaultPage map[string]string
	// LocalRoles maps a UID to its local role assignments.
	LocalRoles map[string]any
	// Ordering maps a container UID to the ordered list of child ids.
	Ordering map[string]any
	// Relations holds the cross-item reference graph from the source set.
	Relations []Relation
	// Refs resolves old identifiers to their replacements. Never nil after
	// the orchestrator is constructed.
	Refs RefResolver
}

// Validate checks run identity before any record is processed.
func (m *RunMeta) Validate() error {
	if m.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	if m.Source == "" {
		return errors.New("source root must be non-empty")
	}
	if m.Destination == "" {
		return errors.New("destination root must be non-empty")
	}
	return nil
}

// Step is a configured transformation unit in the pipeline chain.
// Given an item and the shared run context it produces zero or more
// replacement items:
//
//   - zero outputs: the item is dropped at this step
//   - one output: transform-in-place, the item continues down the chain
//   - several outputs: fan-out, each output continues independently
//
// A step must surface ordinary data-quality problems as a drop, never as an
// error. A returned error is a contract violation and aborts the run.
type Step func(item Item, meta *RunMeta) ([]Item, error)

// Processor rewrites the fields of a single item of a given content type.
// Unlike a Step it can neither drop nor fan out.
type Processor func(item Item, meta *RunMeta) (Item, error)
