//go:build !pathrel

package toolpath

// siblingPath is a no-op without the pathrel build tag: relocatable
// installs are opt-in, matching the original's HGPATHREL default-off.
func siblingPath() (string, bool) {
	return "", false
}
