// Package supervisor spawns and waits for a command server process, and
// drives the poll-and-retry loop that connects to it once its socket is
// live (§4.4).
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"chgo/internal/client"
	"chgo/internal/config"
	"chgo/internal/rendezvous"
	"chgo/internal/toolpath"
	"chgo/internal/xerrors"
)

// pollInterval is how often RetryConnect re-tries the socket.
const pollInterval = 10 * time.Millisecond

// Spawn starts a new command server under cfg, listening on paths.Init,
// and returns its pid. The child's argv is the resolved tool path plus
// "serve --no-profile --cmdserver chgunix --address <init> --daemon-postexec
// chdir:/" and the sensitive args extracted from the original invocation
// (§4.3). env is the environment to start it with — callers pass the
// result of internal/gate.PinToolPath, already carrying the loop marker,
// the pinned tool path and the locale-preservation pair; Spawn never reads
// chgo's own os.Environ() for this, since that copy is missing exactly
// those entries.
func Spawn(cfg config.Config, paths rendezvous.Paths, sensitiveArgs []string, env []string) (pid int, err error) {
	tool, err := toolpath.Resolve(cfg)
	if err != nil {
		return 0, xerrors.Wrap(err, xerrors.KindSpawn, "resolve tool path")
	}

	args := append([]string{
		"serve", "--no-profile", "--cmdserver", "chgunix", "--address", paths.Init,
		"--daemon-postexec", "chdir:/",
	}, sensitiveArgs...)

	cmd := exec.Command(tool, args...)
	cmd.Env = env
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	closeExtraFDs()

	if err := cmd.Start(); err != nil {
		return 0, xerrors.Wrap(err, xerrors.KindSpawn, "start command server")
	}
	return cmd.Process.Pid, nil
}

// OpenFunc dials a live server socket, returning a client.Handle. It is
// injected so RetryConnect can be tested without a real server.
type OpenFunc func(path string) (client.Handle, error)

// RetryConnect polls for paths.Init to become connectable, reaping the
// child non-blockingly on every tick so a server that exits immediately is
// noticed rather than polled forever, then atomically promotes Init to
// Socket on success (§4.4). cfg.TimeoutSeconds == 0 means wait forever.
func RetryConnect(ctx context.Context, cfg config.Config, paths rendezvous.Paths, childPID int, open OpenFunc) (client.Handle, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if cfg.TimeoutSeconds > 0 {
		timer := time.NewTimer(time.Duration(cfg.TimeoutSeconds) * time.Second)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil, xerrors.Wrap(ctx.Err(), xerrors.KindSession, "connect to server")
		case <-deadline:
			return nil, xerrors.Wrap(xerrors.ErrConnectTimeout, xerrors.KindSession, "connect to server")
		case <-ticker.C:
			if exited, ws := reapNonBlocking(childPID); exited {
				return nil, exitError(ws)
			}

			handle, err := open(paths.Init)
			if err != nil {
				continue
			}
			if err := unix.Rename(paths.Init, paths.Socket); err != nil {
				handle.Close()
				return nil, xerrors.Wrap(err, xerrors.KindSession, "publish server socket")
			}
			return handle, nil
		}
	}
}

// reapNonBlocking reaps pid without blocking, reporting whether it has
// already exited and, if so, its wait status.
func reapNonBlocking(pid int) (exited bool, ws unix.WaitStatus) {
	got, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
	if err != nil || got != pid {
		return false, 0
	}
	return true, ws
}

// exitError turns a reaped child's wait status into the three outcomes
// §4.4/§7 distinguish: a clean exit before ever serving a connection is
// anomalous and gets diagnosed; a signal kill is diagnosed by name; any
// other exit status is not a chgo failure at all — it is the command's
// own result and must reach the caller as an exit code, not a diagnostic.
func exitError(ws unix.WaitStatus) error {
	switch {
	case ws.Signaled():
		return xerrors.WrapWithDetail(xerrors.ErrServerKilled, xerrors.KindSpawn,
			"connect to server", fmt.Sprintf("killed by signal %s", ws.Signal()))
	case ws.ExitStatus() == 0:
		return xerrors.WrapWithDetail(xerrors.ErrServerQuitClean, xerrors.KindSpawn,
			"connect to server", "exited with status 0")
	default:
		return &xerrors.SessionError{
			Op:       "connect to server",
			Kind:     xerrors.KindServerExit,
			ExitCode: ws.ExitStatus(),
		}
	}
}

// closeExtraFDs marks every open file descriptor above stderr
// close-on-exec, so a server spawned moments later never inherits a stray
// socket or pipe left open by something further up chgo's own call chain.
// It flags descriptors rather than closing them outright: closing here
// would tear down chgo's own live fds (including the runtime's netpoll
// fd, which the retry loop's own net.Dial depends on) in this, the
// parent, process. Marking FD_CLOEXEC has no effect on the parent at
// all — the kernel only acts on it at the next execve, which happens in
// the forked child, not here. Go's standard library already marks its
// own fds this way; this is a best-effort hardening pass over whatever
// it didn't (Design Note 5), not load-bearing correctness: it enumerates
// /proc/self/fd when available and falls back to a single ranged syscall
// otherwise.
func closeExtraFDs() {
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		unix.CloseRange(3, ^uint(0), unix.CLOSE_RANGE_CLOEXEC)
		return
	}
	for _, entry := range entries {
		fd, convErr := strconv.Atoi(entry.Name())
		if convErr != nil || fd <= 2 {
			continue
		}
		unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC)
	}
}
