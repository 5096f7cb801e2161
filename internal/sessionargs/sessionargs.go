// Package sessionargs extracts the sensitive arguments from a command
// invocation: the subset of argv that could change what server identity
// (configuration, working directory, repository, traceback mode) the
// invocation requires, and which must therefore survive to the server's
// validate call even though the rest of argv is opaque to chgo (§4.2).
package sessionargs

import "strings"

// Flag describes one recognized sensitive flag.
type Flag struct {
	// Name is the flag's long or short spelling, e.g. "--config" or "-R".
	Name string
	// NArg is the number of arguments following the flag (not counting
	// the flag itself) that are consumed when it matches exactly.
	NArg int
}

// SensitiveFlags is the fixed set of flags that can alter server identity.
var SensitiveFlags = []Flag{
	{Name: "--config", NArg: 1},
	{Name: "--cwd", NArg: 1},
	{Name: "--repo", NArg: 1},
	{Name: "--repository", NArg: 1},
	{Name: "--traceback", NArg: 0},
	{Name: "-R", NArg: 1},
}

// Extract scans argv and returns the contiguous, order-preserving
// subsequence of sensitive flags (and their consumed arguments), stopping
// at the first literal "--". A flag whose declared argument count would
// run past the end of argv is silently skipped (never produces a partial
// match), matching the original client's truncated-tail handling.
func Extract(argv []string) []string {
	var out []string
	for i := 0; i < len(argv); i++ {
		if argv[i] == "--" {
			break
		}
		n := testSensitiveFlag(argv[i])
		if n == 0 || i+n > len(argv) {
			continue
		}
		out = append(out, argv[i:i+n]...)
		i += n - 1
	}
	return out
}

// testSensitiveFlag returns the number of argv tokens, starting at the
// current one, that should be passed to the server — 0 if arg does not
// match any sensitive flag.
func testSensitiveFlag(arg string) int {
	for _, f := range SensitiveFlags {
		if !strings.HasPrefix(arg, f.Name) {
			continue
		}
		rest := arg[len(f.Name):]
		switch {
		case rest == "":
			// --flag (value follows as separate tokens)
			return f.NArg + 1
		case strings.HasPrefix(rest, "=") && f.NArg > 0:
			// --flag=value
			return 1
		case !strings.HasPrefix(f.Name, "--"):
			// short flag: always consumes only itself
			return 1
		}
	}
	return 0
}
