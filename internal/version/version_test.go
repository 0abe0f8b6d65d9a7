// ABOUTME: Tests for version constants
// ABOUTME: Checks the release number format and the printed version line
package version

import (
	"regexp"
	"testing"
)

var semver = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

func TestVersionIsSemver(t *testing.T) {
	if !semver.MatchString(Version) {
		t.Errorf("Version %q is not MAJOR.MINOR.PATCH", Version)
	}
}

func TestProductMatchesBinary(t *testing.T) {
	// The CLI lives in cmd/syncplay, so the product name doubles as the
	// command name in usage text.
	if Product != "syncplay" {
		t.Errorf("Product = %q, want syncplay", Product)
	}
}

func TestString(t *testing.T) {
	want := "syncplay 0.3.0 (drawjav)"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
