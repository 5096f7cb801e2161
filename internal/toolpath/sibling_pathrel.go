//go:build pathrel

package toolpath

import (
	"os"
	"path/filepath"
)

// siblingPath looks for the backing tool next to the running binary,
// mirroring the original's HGPATHREL build option for relocatable
// installs. Only compiled in with the pathrel build tag.
func siblingPath() (string, bool) {
	exe, err := os.Executable()
	if err != nil {
		return "", false
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", false
	}
	candidate := filepath.Join(filepath.Dir(exe), defaultTool)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate, true
	}
	return "", false
}
