// Package config assembles the immutable configuration chgo threads through
// every other package. Per the teacher's convention of keeping global
// mutable state out of business logic, nothing outside this package reads
// the process environment directly for these values.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Slug is the socket-directory / environment-variable prefix slug, the
// analogue of "chg" in the original client.
const Slug = "chg"

// EnvPrefix is prepended to the variable names in §6.
const EnvPrefix = "CHG"

// DefaultTimeoutSeconds is the retry-loop default when CHGTIMEOUT is unset.
const DefaultTimeoutSeconds = 60

// Config is the immutable, once-per-invocation configuration for a chgo
// session. It is built once in main from the live environment and threaded
// by value (or pointer-to-immutable-value) into every package that needs
// it; no package other than this one calls os.Getenv for these fields.
type Config struct {
	// SockName is CHGSOCKNAME: an explicit socket path override. Empty if unset.
	SockName string
	// RuntimeDir is XDG_RUNTIME_DIR, used as the socket-directory parent
	// when it passes the ownership/mode check.
	RuntimeDir string
	// TmpDir is TMPDIR, falling back to /tmp.
	TmpDir string
	// TimeoutSeconds is CHGTIMEOUT; 0 means "wait forever".
	TimeoutSeconds int
	// Debug is set when CHGDEBUG is present (any value, including empty).
	Debug bool
	// Plain is set when HGPLAIN is present (any value); disables color.
	Plain bool
	// ToolPath is CHGHG, then HG; empty if neither is set (resolved further
	// by the toolpath package).
	ToolPath string
	// InternalMark is CHGINTERNALMARK; non-nil (possibly empty string) if present.
	InternalMark *string
	// OrigLCCType, if non-nil, is the original LC_CTYPE value to preserve.
	OrigLCCType *string
}

// Load builds a Config from a snapshot of the process environment
// (typically os.Environ()). Pass a fresh snapshot each time the live
// environment may have changed, per §4.6's environment-sync requirement.
func Load(env []string) Config {
	lookup := envMap(env)

	cfg := Config{
		SockName:       lookup["CHGSOCKNAME"],
		RuntimeDir:     lookup["XDG_RUNTIME_DIR"],
		TmpDir:         firstNonEmpty(lookup["TMPDIR"], "/tmp"),
		TimeoutSeconds: parseTimeout(lookup, "CHGTIMEOUT"),
		Plain:          has(lookup, "HGPLAIN"),
	}

	if _, ok := lookup["CHGDEBUG"]; ok {
		cfg.Debug = true
	}

	cfg.ToolPath = lookup["CHGHG"]
	if cfg.ToolPath == "" {
		cfg.ToolPath = lookup["HG"]
	}

	if v, ok := lookup["CHGINTERNALMARK"]; ok {
		cfg.InternalMark = &v
	}
	if v, ok := lookup["LC_CTYPE"]; ok {
		cfg.OrigLCCType = &v
	}

	return cfg
}

// LoadEnviron is a convenience wrapper over Load(os.Environ()).
func LoadEnviron() Config {
	return Load(os.Environ())
}

func envMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return m
}

func has(m map[string]string, key string) bool {
	_, ok := m[key]
	return ok
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseTimeout(m map[string]string, key string) int {
	raw, ok := m[key]
	if !ok || raw == "" {
		return DefaultTimeoutSeconds
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return DefaultTimeoutSeconds
	}
	return n
}
