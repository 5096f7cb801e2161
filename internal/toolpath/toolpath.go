// Package toolpath resolves the path to the backing tool chgo front-ends
// (§4.3): the real, slower executable it spawns a server for and falls back
// to when it cannot help.
package toolpath

import (
	"os/exec"

	"chgo/internal/config"
)

// defaultTool is the compile-time fallback path, analogous to the
// original's HGPATH build-time default.
const defaultTool = "hg"

// Resolve returns the concrete path to the backing tool, trying in order:
//  1. cfg.ToolPath (already resolved by config.Load from <APP>HG/HG).
//  2. a same-directory sibling lookup, when built with the pathrel tag.
//  3. the compile-time default, looked up against PATH with exec.LookPath.
//  4. the compile-time default as a bare name, when that lookup fails.
func Resolve(cfg config.Config) (string, error) {
	if cfg.ToolPath != "" {
		return cfg.ToolPath, nil
	}
	if p, ok := siblingPath(); ok {
		return p, nil
	}
	if p, err := exec.LookPath(defaultTool); err == nil {
		return p, nil
	}
	return defaultTool, nil
}
