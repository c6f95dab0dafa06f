// Package steps provides the built-in transformation steps of the
// migration pipeline. Each step registers under a stable name; the
// configured chain in transmute.toml refers to these names.
//
// Steps follow the pipeline contract: zero outputs drop the record, one
// output continues it, several outputs fan out. Data-quality problems are
// surfaced as drops, never as errors.
package steps

import "github.com/plonegovbr/transmute/registry"

// Builtin returns the step factories shipped with transmute.
func Builtin() map[string]registry.StepFactory {
	return map[string]registry.StepFactory{
		"export_prefix":  ExportPrefix,
		"ids":            IDs,
		"paths":          PathFilter,
		"review_state":   ReviewState,
		"default_page":   DefaultPage,
		"creators":       Creators,
		"basic_metadata": BasicMetadata,
		"constraints":    Constraints,
		"portal_type":    PortalType,
		"data_override":  DataOverride,
		"blobs":          Blobs,
		"sanitize":       Sanitize,
	}
}

// Processors returns the per-type processor factories shipped with
// transmute. The "default" processor passes items through unchanged.
func Processors() map[string]registry.ProcessorFactory {
	return map[string]registry.ProcessorFactory{
		"default":    DefaultProcessor,
		"collection": CollectionProcessor,
	}
}
