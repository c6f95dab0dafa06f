package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("TRANSMUTE_TEST_BUCKET", "exports")
	t.Setenv("TRANSMUTE_TEST_EMPTY", "")

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", `bucket = "${TRANSMUTE_TEST_BUCKET}"`, `bucket = "exports"`},
		{"unset variable", `bucket = "${TRANSMUTE_TEST_UNSET}"`, `bucket = ""`},
		{"unset with default", `region = "${TRANSMUTE_TEST_UNSET:-sa-east-1}"`, `region = "sa-east-1"`},
		{"empty uses default", `region = "${TRANSMUTE_TEST_EMPTY:-sa-east-1}"`, `region = "sa-east-1"`},
		{"set ignores default", `bucket = "${TRANSMUTE_TEST_BUCKET:-other}"`, `bucket = "exports"`},
		{"no pattern", `prefix = "plone"`, `prefix = "plone"`},
		{"literal dollar", `title = "$100"`, `title = "$100"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExpandEnv(tc.input); got != tc.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TRANSMUTE_TEST_BUCKET", "exports")

	cfg, err := Parse(`
[storage]
backend = "s3"
bucket = "${TRANSMUTE_TEST_BUCKET}"
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Storage.Bucket != "exports" {
		t.Errorf("bucket = %q", cfg.Storage.Bucket)
	}
}
