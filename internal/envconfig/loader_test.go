package envconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadRoundTrip(t *testing.T) {
	p := writeTemp(t, `
# a comment
JOTA_DB_URL=https://example.com/api  # trailing comment
JOTA_DB_USR="alice"
JOTA_DB_SK='s3cret'
EMPTY_OK=

JOTA_DB_URL=https://override.example.com/api
`)
	s, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.Get("JOTA_DB_URL", ""); got != "https://override.example.com/api" {
		t.Fatalf("expected last value to win, got %q", got)
	}
	if got := s.Get("JOTA_DB_USR", ""); got != "alice" {
		t.Fatalf("expected unquoted alice, got %q", got)
	}
	if got := s.Get("JOTA_DB_SK", ""); got != "s3cret" {
		t.Fatalf("expected unquoted s3cret, got %q", got)
	}
	if got := s.Get("EMPTY_OK", "fallback"); got != "" {
		t.Fatalf("expected empty string to be a set value, got %q", got)
	}
	if got := s.Get("MISSING", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for missing key, got %q", got)
	}
}

func TestLoadMissingFileIsNotError(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if got := s.Get("ANYTHING", "def"); got != "def" {
		t.Fatalf("expected default, got %q", got)
	}
}

func TestLoadIgnoresLinesWithoutEquals(t *testing.T) {
	p := writeTemp(t, "not a kv line\nJOTA_DB_URL=http://x\n")
	s, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Get("JOTA_DB_URL", ""); got != "http://x" {
		t.Fatalf("got %q", got)
	}
}

func TestGetFallsBackToOSEnv(t *testing.T) {
	t.Setenv("GATEWAY_TEST_VAR", "from-os")
	s, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Get("GATEWAY_TEST_VAR", "def"); got != "from-os" {
		t.Fatalf("got %q", got)
	}
}
