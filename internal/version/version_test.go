package version

import (
	"strings"
	"testing"
)

func TestStringUsesLdflags(t *testing.T) {
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })

	Version, Commit = "v0.3.0", "0123456789abcdef0123"
	if got := String(); got != "v0.3.0 (0123456789ab)" {
		t.Fatalf("String() = %q", got)
	}
}

func TestResolveFallsBack(t *testing.T) {
	oldV := Version
	t.Cleanup(func() { Version = oldV })

	Version = ""
	if got := Resolve().Version; strings.TrimSpace(got) == "" {
		t.Fatal("expected a non-empty fallback version")
	}
}
