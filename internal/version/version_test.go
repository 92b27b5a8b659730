package version

import (
	"strings"
	"testing"
)

func TestVersionStringNonEmpty(t *testing.T) {
	if s := String(); s == "" {
		t.Fatalf("version string is empty")
	}
}

func TestVersionStringHasPrefix(t *testing.T) {
	if s := String(); !strings.HasPrefix(s, "v") {
		t.Fatalf("version string %q lacks v prefix", s)
	}
}
