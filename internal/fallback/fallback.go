// Package fallback decides when chgo should step out of the way entirely
// and run the backing tool directly instead of going through a command
// server (§4.7).
package fallback

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"chgo/internal/config"
	"chgo/internal/toolpath"
	"chgo/internal/xerrors"
)

// Unsupported reports whether argv or the current process environment
// rules out using a command server at all. A missing standard fd means the
// server's attach-stdio step cannot work; "serve" combined with "-d" or
// "--daemon" means the caller wants to run a daemonized server itself,
// which should never be front-ended by another one. The scan stops at a
// literal "--" since anything after that belongs to the backing tool, not
// to chgo.
func Unsupported(argv []string) bool {
	if !fdOpen(0) || !fdOpen(1) || !fdOpen(2) {
		return true
	}

	var sawServe, sawDaemon bool
	for _, arg := range argv {
		if arg == "--" {
			break
		}
		switch arg {
		case "serve":
			sawServe = true
		case "-d", "--daemon":
			sawDaemon = true
		}
	}
	return sawServe && sawDaemon
}

func fdOpen(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == nil
}

// ExecOriginal replaces the current process image with the backing tool,
// argv unchanged — the tool sees exactly what the caller typed, with no
// chgo involvement left once this call succeeds.
func ExecOriginal(cfg config.Config, argv []string) error {
	tool, err := toolpath.Resolve(cfg)
	if err != nil {
		return xerrors.Wrap(err, xerrors.KindEnvironment, "resolve tool path for fallback")
	}

	full, lookErr := exec.LookPath(tool)
	if lookErr != nil {
		full = tool
	}

	execArgv := append([]string{tool}, argv...)
	if err := syscall.Exec(full, execArgv, os.Environ()); err != nil {
		return xerrors.Wrap(err, xerrors.KindSpawn, "exec original tool")
	}
	return nil
}
