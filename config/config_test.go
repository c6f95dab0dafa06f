package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefault_CarriesFullStepChain(t *testing.T) {
	cfg := Default()

	if !reflect.DeepEqual(cfg.Pipeline.Steps, DefaultSteps) {
		t.Errorf("steps = %v, want default chain", cfg.Pipeline.Steps)
	}
	if cfg.Types.Processor != "default" {
		t.Errorf("default processor = %q", cfg.Types.Processor)
	}
	if cfg.Storage.Backend != "fs" {
		t.Errorf("default backend = %q", cfg.Storage.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default settings invalid: %v", err)
	}
}

func TestParse_OverridesAndDefaults(t *testing.T) {
	cfg, err := Parse(`
[config]
debug = true

[pipeline]
steps = ["ids", "paths"]
do_not_count_drop = ["paths"]

[paths]
export_prefixes = ["/Plone"]

[types]
processor = "default"

[types.overrides.Collection]
processor = "collection"
portal_type = "Collection"

[review_state.filter]
allowed = ["published"]
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !cfg.Config.Debug {
		t.Error("debug not parsed")
	}
	if !reflect.DeepEqual(cfg.Pipeline.Steps, []string{"ids", "paths"}) {
		t.Errorf("steps = %v", cfg.Pipeline.Steps)
	}
	if !cfg.DropExceptions()["paths"] {
		t.Errorf("drop exceptions = %v", cfg.DropExceptions())
	}
	if got := cfg.Types.Overrides["Collection"].Processor; got != "collection" {
		t.Errorf("override processor = %q", got)
	}
	if !reflect.DeepEqual(cfg.TypeNames(), []string{"Collection"}) {
		t.Errorf("type names = %v", cfg.TypeNames())
	}
	if !reflect.DeepEqual(cfg.ReviewState.Filter.Allowed, []string{"published"}) {
		t.Errorf("allowed states = %v", cfg.ReviewState.Filter.Allowed)
	}
}

func TestParse_EmptyGetsDefaults(t *testing.T) {
	cfg, err := Parse("")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Pipeline.Steps) == 0 {
		t.Error("empty settings missing default chain")
	}
	if !cfg.DropExceptions()["default_page"] {
		t.Errorf("default drop exceptions = %v", cfg.Pipeline.DoNotCountDrop)
	}
}

func TestParse_ExplicitEmptyDropListStaysEmpty(t *testing.T) {
	cfg, err := Parse(`
[pipeline]
do_not_count_drop = []
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Pipeline.DoNotCountDrop) != 0 {
		t.Errorf("explicit empty list was overridden: %v", cfg.Pipeline.DoNotCountDrop)
	}
}

func TestParse_InvalidTOML(t *testing.T) {
	if _, err := Parse("pipeline = ["); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{
			name:   "duplicate step",
			mutate: func(s *Settings) { s.Pipeline.Steps = []string{"ids", "ids"} },
			want:   "twice",
		},
		{
			name:   "blank step name",
			mutate: func(s *Settings) { s.Pipeline.Steps = []string{"ids", "  "} },
			want:   "empty step name",
		},
		{
			name:   "unknown backend",
			mutate: func(s *Settings) { s.Storage.Backend = "ftp" },
			want:   "fs or s3",
		},
		{
			name:   "s3 without bucket",
			mutate: func(s *Settings) { s.Storage.Backend = "s3" },
			want:   "bucket",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Validate() = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	if _, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml")); err != nil {
		t.Errorf("missing file should fall back to defaults: %v", err)
	}

	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte("[config]\ndebug = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if !cfg.Config.Debug {
		t.Error("file settings not loaded")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Load = %v", err)
	}
}
