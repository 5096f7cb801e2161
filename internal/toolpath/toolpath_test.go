package toolpath

import (
	"testing"

	"chgo/internal/config"
)

func TestResolve_PrefersConfiguredToolPath(t *testing.T) {
	cfg := config.Config{ToolPath: "/opt/hg/bin/hg"}
	got, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "/opt/hg/bin/hg" {
		t.Errorf("Resolve() = %q, want /opt/hg/bin/hg", got)
	}
}

func TestResolve_FallsBackWhenUnconfigured(t *testing.T) {
	cfg := config.Config{}
	got, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got == "" {
		t.Error("Resolve() should never return an empty path")
	}
}
