// Package registry resolves configured step and processor names to their
// implementations.
//
// The original system late-bound steps by dotted import path; here every
// step registers under a stable string key at startup and the full
// configured chain is validated before any record is processed, with all
// unresolvable names reported together.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/plonegovbr/transmute/config"
	"github.com/plonegovbr/transmute/types"
)

// StepFactory builds a step from run settings. Factories run at most once
// per name; the built step is memoized. The registry passes itself so steps
// that dispatch to per-type processors can resolve them at build time.
type StepFactory func(cfg *config.Settings, r *Registry) (types.Step, error)

// ProcessorFactory builds a per-type processor from run settings.
type ProcessorFactory func(cfg *config.Settings) (types.Processor, error)

// ConfigurationError reports step or processor names that could not be
// resolved. It is fatal: a bad name discovered mid-run would leave a
// partially migrated destination.
type ConfigurationError struct {
	// Names lists every unresolvable name, sorted.
	Names []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("unknown step or processor %q", e.Names[0])
	}
	return fmt.Sprintf("unknown steps or processors: %s", strings.Join(e.Names, ", "))
}

// Registry resolves names to steps and processors, memoizing construction.
// Safe for concurrent use.
type Registry struct {
	cfg *config.Settings

	// mu guards step resolution; procMu guards processor resolution.
	// Separate locks let a step factory resolve processors while the
	// step lock is held.
	mu        sync.Mutex
	factories map[string]StepFactory
	steps     map[string]types.Step

	procMu     sync.Mutex
	procFact   map[string]ProcessorFactory
	processors map[string]types.Processor
}

// New creates a Registry over the given settings with the provided step
// and processor factories.
func New(cfg *config.Settings, steps map[string]StepFactory, processors map[string]ProcessorFactory) *Registry {
	r := &Registry{
		cfg:        cfg,
		factories:  make(map[string]StepFactory, len(steps)),
		procFact:   make(map[string]ProcessorFactory, len(processors)),
		steps:      make(map[string]types.Step),
		processors: make(map[string]types.Processor),
	}
	for name, f := range steps {
		r.factories[name] = f
	}
	for name, f := range processors {
		r.procFact[name] = f
	}
	return r
}

// Resolve returns the step registered under name, building it on first use.
// Resolution is deterministic and idempotent: the same name always yields
// the same step value.
func (r *Registry) Resolve(name string) (types.Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(name)
}

func (r *Registry) resolveLocked(name string) (types.Step, error) {
	if step, ok := r.steps[name]; ok {
		return step, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, &ConfigurationError{Names: []string{name}}
	}
	step, err := factory(r.cfg, r)
	if err != nil {
		return nil, fmt.Errorf("step %q: %w", name, err)
	}
	r.steps[name] = step
	return step, nil
}

// ResolveChain resolves an ordered list of step names into an ordered list
// of steps. It fails atomically: if any name cannot be resolved, no list is
// returned and every failing name is reported in one ConfigurationError.
func (r *Registry) ResolveChain(names []string) ([]types.Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chain := make([]types.Step, 0, len(names))
	var missing []string
	for _, name := range names {
		step, err := r.resolveLocked(name)
		if err != nil {
			var cfgErr *ConfigurationError
			if errors.As(err, &cfgErr) {
				missing = append(missing, name)
				continue
			}
			return nil, err
		}
		chain = append(chain, step)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &ConfigurationError{Names: missing}
	}
	return chain, nil
}

// CheckChain reports the availability of every name without keeping the
// resolved steps. Used by the sanity-check command.
func (r *Registry) CheckChain(names []string) []StepStatus {
	statuses := make([]StepStatus, 0, len(names))
	for _, name := range names {
		_, err := r.Resolve(name)
		statuses = append(statuses, StepStatus{Name: name, Available: err == nil})
	}
	return statuses
}

// StepStatus is one row of a chain availability check.
type StepStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// ResolveProcessor resolves the processor for a content type. A per-type
// override from the configuration wins; otherwise the configured default
// processor is used. An unresolvable processor is a ConfigurationError.
func (r *Registry) ResolveProcessor(typeName string) (types.Processor, error) {
	name := r.cfg.Types.Processor
	if override, ok := r.cfg.Types.Overrides[typeName]; ok && override.Processor != "" {
		name = override.Processor
	}

	r.procMu.Lock()
	defer r.procMu.Unlock()
	if proc, ok := r.processors[name]; ok {
		return proc, nil
	}
	factory, ok := r.procFact[name]
	if !ok {
		return nil, &ConfigurationError{Names: []string{name}}
	}
	proc, err := factory(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("processor %q: %w", name, err)
	}
	r.processors[name] = proc
	return proc, nil
}

// StepNames returns every registered step name, sorted.
func (r *Registry) StepNames() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
