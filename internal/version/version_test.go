package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != "dev" {
		t.Errorf("Version = %q, want dev", info.Version)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestBuildInfo_String(t *testing.T) {
	s := BuildInfo{Version: "v0.3.0", GitCommit: "abc123", BuildDate: "2026-10-01", GoVersion: "go1.25.2"}.String()
	for _, want := range []string{"autopaused v0.3.0", "abc123", "2026-10-01", "go1.25.2"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
