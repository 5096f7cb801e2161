// Package session drives one chgo invocation end to end: connect-or-spawn,
// validate, apply any server-issued instructions, and run (§4.6).
package session

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"chgo/internal/client"
	"chgo/internal/config"
	"chgo/internal/instructions"
	"chgo/internal/rendezvous"
	"chgo/internal/sessionargs"
	"chgo/internal/supervisor"
	"chgo/internal/xerrors"
)

// maxRedirects bounds the redirect-and-reconnect loop (§3 invariant,
// Testable property 6): a server that keeps redirecting forever is a bug,
// not a reason to spin.
const maxRedirects = 10

// State names the session's position in the transition table of §4.6.
type State int

const (
	Starting State = iota
	Connecting
	Spawning
	Validating
	Redirecting
	Running
	TearingDown
	Terminal
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Connecting:
		return "connecting"
	case Spawning:
		return "spawning"
	case Validating:
		return "validating"
	case Redirecting:
		return "redirecting"
	case Running:
		return "running"
	case TearingDown:
		return "tearing down"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Options is the per-session server rendezvous state, threaded through the
// connect/spawn/validate cycle and mutated in place by redirects.
type Options struct {
	Socket        string
	InitSocket    string
	RedirectSocket string
	SensitiveArgs []string
}

// Opener abstracts client.Open so Run can be driven by a fake handle in tests.
type Opener func(path string) (client.Handle, error)

// Spawner abstracts supervisor.Spawn for the same reason.
type Spawner func(cfg config.Config, paths rendezvous.Paths, sensitiveArgs []string, env []string) (int, error)

// Retryer abstracts supervisor.RetryConnect for the same reason.
type Retryer func(ctx context.Context, cfg config.Config, paths rendezvous.Paths, childPID int, open supervisor.OpenFunc) (client.Handle, error)

// Deps lets callers substitute the real network/process collaborators with
// fakes. RealDeps wires the production implementations.
type Deps struct {
	Open    Opener
	Spawn   Spawner
	Retry   Retryer
	Signal  func(ctx context.Context, h client.Handle) (stop func())
}

// RealDeps returns the production wiring.
func RealDeps() Deps {
	return Deps{
		Open:   client.Open,
		Spawn:  supervisor.Spawn,
		Retry:  supervisor.RetryConnect,
		Signal: forwardSignals,
	}
}

// Run drives one full session for argv (the command-line tail after the
// chgo binary name) and returns the backing tool's exit code. spawnEnv is
// the environment a newly spawned server is started with — already pinned
// by internal/gate.PinToolPath against loop re-entry and locale loss; it
// is distinct from the environment the running command itself sees,
// which Run forwards unmodified via SetEnvironment.
func Run(ctx context.Context, cfg config.Config, argv []string, spawnEnv []string, deps Deps) (exitCode int, err error) {
	state := Starting
	opts := Options{SensitiveArgs: sessionargs.Extract(argv)}

	paths, err := rendezvous.Resolve(cfg, os.Getpid())
	if err != nil {
		return 0, err
	}
	opts.Socket, opts.InitSocket = paths.Socket, paths.Init
	primarySocket := paths.Socket

	var handle client.Handle
	redirects := 0

	for {
		switch state {
		case Starting:
			state = Connecting

		case Connecting:
			h, openErr := deps.Open(opts.Socket)
			if openErr == nil {
				handle = h
				state = Validating
				continue
			}
			if opts.Socket != primarySocket {
				// This attempt targeted a server-issued redirect, and that
				// server is unreachable. The primary socket that told us to
				// redirect here is stale — unlink it so it doesn't send the
				// same redirect to the next invocation (chg.c's
				// connectcmdserver does the same before spawning a fresh
				// server at the primary rendezvous path).
				_ = os.Remove(primarySocket)
			}
			state = Spawning

		case Spawning:
			pid, spawnErr := deps.Spawn(cfg, paths, opts.SensitiveArgs, spawnEnv)
			if spawnErr != nil {
				return 0, spawnErr
			}
			h, connErr := deps.Retry(ctx, cfg, paths, pid, wrapOpen(deps.Open))
			if connErr != nil {
				var se *xerrors.SessionError
				if xerrors.As(connErr, &se) && se.Kind == xerrors.KindServerExit {
					return se.ExitCode, nil
				}
				return 0, connErr
			}
			handle = h
			state = Validating

		case Validating:
			if handle == nil {
				return 0, xerrors.ErrNoHandle
			}
			if err := handle.SetEnvironment(os.Environ()); err != nil {
				handle.Close()
				return 0, err
			}
			batch, valErr := handle.Validate(opts.SensitiveArgs)
			if valErr != nil {
				handle.Close()
				return 0, valErr
			}
			applier := instructions.NewApplier()
			reconnect, applyErr := applier.Apply(&opts.RedirectSocket, batch)
			if applyErr != nil {
				handle.Close()
				return 0, applyErr
			}
			if !reconnect {
				state = Running
				continue
			}
			state = Redirecting

		case Redirecting:
			redirects++
			if redirects > maxRedirects {
				handle.Close()
				return 0, xerrors.ErrTooManyRedirects
			}
			handle.Close()
			handle = nil
			if opts.RedirectSocket != "" {
				opts.Socket = opts.RedirectSocket
				opts.RedirectSocket = ""
			}
			state = Connecting

		case Running:
			stop := deps.Signal(ctx, handle)
			code, runErr := handle.RunCommand(ctx, argv)
			stop()
			state = TearingDown
			if runErr != nil {
				handle.Close()
				return 0, runErr
			}
			exitCode = code

		case TearingDown:
			if handle != nil {
				handle.Close()
			}
			state = Terminal

		case Terminal:
			return exitCode, nil
		}
	}
}

func wrapOpen(open Opener) supervisor.OpenFunc {
	return supervisor.OpenFunc(open)
}

// forwardSignals forwards every signal chgo receives to the server's
// process group (falling back to its pid if the group is unknown) for the
// lifetime of the Running state, restoring default handling on return —
// scoped acquisition, so aborting earlier in the transition table never
// leaves a stray forwarding goroutine behind.
func forwardSignals(ctx context.Context, h client.Handle) (stop func()) {
	sigCh := make(chan os.Signal, 16)
	signal.Notify(sigCh)

	target := h.PeerPGID()
	negate := target > 0
	if target <= 0 {
		target = h.PeerPID()
		negate = false
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig, ok := <-sigCh:
				if !ok {
					return
				}
				s, ok := sig.(syscall.Signal)
				if !ok {
					continue
				}
				pid := target
				if negate {
					pid = -pid
				}
				unix.Kill(pid, unix.Signal(s))
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
