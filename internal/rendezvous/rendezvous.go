// Package rendezvous resolves the socket paths a chgo session uses to find
// or publish a command server, and enforces the directory-security
// invariants that make filesystem rendezvous safe to share across a user's
// concurrent invocations without locking (§5).
package rendezvous

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"chgo/internal/config"
	"chgo/internal/xerrors"
)

// Paths holds the rendezvous socket paths for one session.
type Paths struct {
	// Socket is the stable path at which clients find an existing server.
	Socket string
	// Init is this spawner's transient per-process path, promoted to
	// Socket by an atomic rename after a successful handshake.
	Init string
}

// Resolve computes Paths per §4.1. When cfg.SockName is set, it is used
// verbatim as Socket and no directory is created or validated — an
// explicit override is trusted as-is.
func Resolve(cfg config.Config, pid int) (Paths, error) {
	var sockDir string
	if cfg.SockName == "" {
		dir, err := socketDir(cfg)
		if err != nil {
			return Paths{}, err
		}
		if err := prepareSockDir(dir); err != nil {
			return Paths{}, err
		}
		sockDir = dir
	}

	var socket string
	if cfg.SockName != "" {
		socket = cfg.SockName
	} else {
		socket = filepath.Join(sockDir, "server")
	}
	if len(socket) > unix.PathMax {
		return Paths{}, xerrors.WrapWithDetail(nil, xerrors.KindEnvironment,
			"resolve socket path", fmt.Sprintf("path too long (%d bytes): %s", len(socket), socket))
	}

	initSocket := fmt.Sprintf("%s.%d", socket, pid)
	if len(initSocket) > unix.PathMax {
		return Paths{}, xerrors.WrapWithDetail(nil, xerrors.KindEnvironment,
			"resolve init socket path", fmt.Sprintf("path too long (%d bytes): %s", len(initSocket), initSocket))
	}

	return Paths{Socket: socket, Init: initSocket}, nil
}

// socketDir picks the socket directory per §4.1 step 1: a secure
// XDG_RUNTIME_DIR subdirectory if eligible, otherwise TMPDIR/<slug><euid>.
func socketDir(cfg config.Config) (string, error) {
	if cfg.RuntimeDir != "" && DirSecure(cfg.RuntimeDir) {
		return filepath.Join(cfg.RuntimeDir, config.Slug), nil
	}
	tmp := cfg.TmpDir
	if tmp == "" {
		tmp = "/tmp"
	}
	return fmt.Sprintf("%s/%s%d", tmp, config.Slug, os.Geteuid()), nil
}

// DirSecure reports whether dir exists, is a real directory (not a
// symlink), is owned by the effective user, and has mode exactly 0700.
// Per the XDG base-directory spec, XDG_RUNTIME_DIR must be ignored unless
// it passes this check (Testable property 3).
func DirSecure(dir string) bool {
	var st unix.Stat_t
	if err := unix.Lstat(dir, &st); err != nil {
		return false
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return false
	}
	return st.Uid == uint32(os.Geteuid()) && st.Mode&0777 == 0700
}

// prepareSockDir ensures dir exists with mode 0700 and is safe to use,
// per §4.1 step 2. Any insecure collision aborts with a diagnostic naming
// the offending path.
func prepareSockDir(dir string) error {
	if err := os.Mkdir(dir, 0700); err != nil && !os.IsExist(err) {
		return xerrors.WrapWithDetail(err, xerrors.KindEnvironment,
			"create socket directory", dir)
	}

	var st unix.Stat_t
	if err := unix.Lstat(dir, &st); err != nil {
		return xerrors.WrapWithDetail(err, xerrors.KindEnvironment,
			"stat socket directory", dir)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return xerrors.WrapWithDetail(xerrors.ErrSockDirNotDir, xerrors.KindEnvironment,
			"prepare socket directory", fmt.Sprintf("%s exists and is not a directory", dir))
	}
	if st.Uid != uint32(os.Geteuid()) || st.Mode&0077 != 0 {
		return xerrors.WrapWithDetail(xerrors.ErrSockDirInsecure, xerrors.KindEnvironment,
			"prepare socket directory", dir)
	}
	return nil
}
