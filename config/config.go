// Package config handles TOML configuration loading for transmute runs.
//
// Configuration lives in a transmute.toml file. All sections have working
// defaults; a run with no config file processes every record through the
// default step chain.
package config

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultSteps is the step chain used when the config file does not set one.
var DefaultSteps = []string{
	"export_prefix",
	"ids",
	"paths",
	"review_state",
	"default_page",
	"creators",
	"basic_metadata",
	"portal_type",
	"data_override",
	"blobs",
	"sanitize",
}

// Settings represents a transmute.toml configuration file.
// CLI flags always override config values.
type Settings struct {
	Config       ConfigSection       `toml:"config"`
	Pipeline     PipelineSection     `toml:"pipeline"`
	Paths        PathsSection        `toml:"paths"`
	Types        TypesSection        `toml:"types"`
	Sanitize     SanitizeSection     `toml:"sanitize"`
	ReviewState  ReviewStateSection  `toml:"review_state"`
	Principals   PrincipalsSection   `toml:"principals"`
	DefaultPages DefaultPagesSection `toml:"default_pages"`
	DataOverride map[string]map[string]any `toml:"data_override"`
	Storage      StorageSection      `toml:"storage"`
}

// ConfigSection holds global switches.
type ConfigSection struct {
	Debug bool `toml:"debug"`
}

// PipelineSection configures the step chain.
type PipelineSection struct {
	// Steps is the ordered list of step names to run.
	Steps []string `toml:"steps"`
	// DoNotCountDrop lists steps allowed to intentionally omit output
	// without being tallied as a drop.
	DoNotCountDrop []string `toml:"do_not_count_drop"`
}

// PathsSection configures path handling for the ids and paths steps.
type PathsSection struct {
	// ExportPrefixes are stripped from the front of every path.
	ExportPrefixes []string `toml:"export_prefixes"`
	// Cleanup maps path fragments to their replacements.
	Cleanup map[string]string `toml:"cleanup"`
	// Filter holds allow/deny prefix rules.
	Filter PathFilter `toml:"filter"`
	// PortalType overrides the content type for specific paths.
	PortalType map[string]string `toml:"portal_type"`
}

// PathFilter holds allow/deny prefix rules for the paths step.
type PathFilter struct {
	Allowed []string `toml:"allowed"`
	Drop    []string `toml:"drop"`
}

// TypesSection configures per-type processing.
type TypesSection struct {
	// Processor is the default processor name for types without an override.
	Processor string `toml:"processor"`
	// Overrides maps a content type to its specific configuration.
	Overrides map[string]TypeConfig `toml:"overrides"`
}

// TypeConfig is the per-type configuration.
type TypeConfig struct {
	// Processor overrides the default processor for this type.
	Processor string `toml:"processor"`
	// PortalType is the destination content type. Empty drops the item.
	PortalType string `toml:"portal_type"`
}

// SanitizeSection configures the sanitize step.
type SanitizeSection struct {
	DropKeys []string `toml:"drop_keys"`
}

// ReviewStateSection configures the review-state filter step.
type ReviewStateSection struct {
	Filter ReviewStateFilter `toml:"filter"`
}

// ReviewStateFilter lists the workflow states allowed through.
// An empty list allows every state.
type ReviewStateFilter struct {
	Allowed []string `toml:"allowed"`
}

// PrincipalsSection configures the creators step.
type PrincipalsSection struct {
	// Default is assigned when filtering removes every creator.
	Default string `toml:"default"`
	// Remove lists principals stripped from creators.
	Remove []string `toml:"remove"`
}

// DefaultPagesSection configures default-page folding.
type DefaultPagesSection struct {
	// Keep preserves the default_page section in the index artifact.
	Keep bool `toml:"keep"`
	// KeysFromParent lists container fields copied onto the default page
	// when the two are folded into one record.
	KeysFromParent []string `toml:"keys_from_parent"`
}

// StorageSection holds destination storage defaults.
type StorageSection struct {
	// Backend is "fs" or "s3".
	Backend string `toml:"backend"`
	// Bucket is the S3 bucket for the s3 backend.
	Bucket string `toml:"bucket"`
	// Prefix is the S3 key prefix for the s3 backend.
	Prefix string `toml:"prefix"`
	// Region is the AWS region for the s3 backend.
	Region string `toml:"region"`
}

// Default returns settings with every default applied.
func Default() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if len(s.Pipeline.Steps) == 0 {
		s.Pipeline.Steps = append([]string(nil), DefaultSteps...)
	}
	if s.Types.Processor == "" {
		s.Types.Processor = "default"
	}
	// Folding a container into its default page is not data loss, and a
	// counted folderish drop would take the whole subtree with it.
	if s.Pipeline.DoNotCountDrop == nil {
		s.Pipeline.DoNotCountDrop = []string{"default_page"}
	}
	if s.Principals.Default == "" {
		s.Principals.Default = "admin"
	}
	if s.Storage.Backend == "" {
		s.Storage.Backend = "fs"
	}
	if len(s.DefaultPages.KeysFromParent) == 0 {
		s.DefaultPages.KeysFromParent = []string{
			"@id", "UID", "id", "title", "description", "subjects",
		}
	}
}

// Validate checks settings consistency. Called once at startup so a bad
// configuration fails before any record is processed.
func (s *Settings) Validate() error {
	if len(s.Pipeline.Steps) == 0 {
		return fmt.Errorf("pipeline.steps must not be empty")
	}
	seen := map[string]bool{}
	for _, name := range s.Pipeline.Steps {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("pipeline.steps contains an empty step name")
		}
		if seen[name] {
			return fmt.Errorf("pipeline.steps lists step %q twice", name)
		}
		seen[name] = true
	}
	switch s.Storage.Backend {
	case "fs":
	case "s3":
		if s.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be fs or s3, got %q", s.Storage.Backend)
	}
	return nil
}

// DropExceptions returns the do-not-count-as-drop step names as a set.
func (s *Settings) DropExceptions() map[string]bool {
	out := make(map[string]bool, len(s.Pipeline.DoNotCountDrop))
	for _, name := range s.Pipeline.DoNotCountDrop {
		out[name] = true
	}
	return out
}

// TypeNames returns the configured type override names, sorted.
func (s *Settings) TypeNames() []string {
	names := make([]string, 0, len(s.Types.Overrides))
	for name := range s.Types.Overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
