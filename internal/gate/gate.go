// Package gate implements the environment and daemon-management checks of
// §4.8 and §6: loop detection, the --kill-chg-daemon escape hatch, and
// pinning the resolved tool path into the environment a spawned server
// inherits.
package gate

import (
	"os"
	"path/filepath"
	"strings"

	"chgo/internal/config"
	"chgo/internal/rendezvous"
	"chgo/internal/toolpath"
)

// LoopDetected reports whether env carries the internal loop marker,
// meaning the backing tool this invocation would spawn a server for is
// itself chgo (directly or via a wrapper/symlink) — running it would spawn
// another chgo, which would spawn another, forever.
func LoopDetected(env []string) bool {
	for _, kv := range env {
		if k, _, ok := strings.Cut(kv, "="); ok && k == config.EnvPrefix+"INTERNALMARK" {
			return true
		}
	}
	return false
}

// KillDaemon resolves the rendezvous socket through any symlinks and
// unlinks it, matching the original's realpath-then-unlink kill sequence.
// Failures are swallowed: killing a socket that is already gone, or that
// was never created, is not an error (§7: best-effort operations).
func KillDaemon(cfg config.Config) error {
	paths, err := rendezvous.Resolve(cfg, os.Getpid())
	if err != nil {
		return nil
	}
	resolved, err := filepath.EvalSymlinks(paths.Socket)
	if err != nil {
		resolved = paths.Socket
	}
	_ = os.Remove(resolved)
	return nil
}

// PinToolPath returns a copy of os.Environ() with <APP>HG set to the
// concretely resolved tool path (so a server spawned later is pinned to
// the same tool chgo resolved, even if CHGHG/HG was unset), the internal
// loop marker set, and the LC_CTYPE locale-preservation pair applied: if
// LC_CTYPE is present in cfg, CHGORIG_LC_CTYPE carries its value so the
// server can restore it after Python resets the locale; if LC_CTYPE is
// absent, CHG_CLEAR_LC_CTYPE signals the server to unset whatever LC_CTYPE
// it ends up with instead. Exactly one of the pair is ever set, matching
// chg.c's CHGORIG_LC_CTYPE/CHG_CLEAR_LC_CTYPE handling.
func PinToolPath(cfg config.Config) []string {
	env := os.Environ()
	env = setVar(env, config.EnvPrefix+"HG", resolveToolPath(cfg))
	env = setVar(env, config.EnvPrefix+"INTERNALMARK", "")

	if cfg.OrigLCCType != nil {
		env = setVar(env, "CHGORIG_LC_CTYPE", *cfg.OrigLCCType)
	} else {
		env = setVar(env, "CHG_CLEAR_LC_CTYPE", "")
	}
	return env
}

func resolveToolPath(cfg config.Config) string {
	tool, err := toolpath.Resolve(cfg)
	if err != nil {
		return cfg.ToolPath
	}
	return tool
}

// setVar sets key=value in env, replacing any existing entry for key.
func setVar(env []string, key, value string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if k, _, ok := strings.Cut(kv, "="); ok && k == key {
			continue
		}
		out = append(out, kv)
	}
	return append(out, key+"="+value)
}
