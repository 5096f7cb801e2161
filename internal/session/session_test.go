package session

import (
	"context"
	"errors"
	"os"
	"testing"

	"chgo/internal/client"
	"chgo/internal/client/clienttest"
	"chgo/internal/config"
	"chgo/internal/instructions"
	"chgo/internal/rendezvous"
	"chgo/internal/supervisor"
	"chgo/internal/xerrors"
)

func noopSignal(ctx context.Context, h client.Handle) func() { return func() {} }

func TestRun_ConnectsToExistingServer(t *testing.T) {
	fake := clienttest.New()
	fake.RunCommandExit = 0

	deps := Deps{
		Open: func(path string) (client.Handle, error) { return fake, nil },
		Spawn: func(cfg config.Config, paths rendezvous.Paths, sensitiveArgs []string, env []string) (int, error) {
			t.Fatal("Spawn should not be called when a server already answers")
			return 0, nil
		},
		Retry: func(ctx context.Context, cfg config.Config, paths rendezvous.Paths, childPID int, open supervisor.OpenFunc) (client.Handle, error) {
			t.Fatal("Retry should not be called when a server already answers")
			return nil, nil
		},
		Signal: noopSignal,
	}

	code, err := Run(context.Background(), config.Config{SockName: "/tmp/does-not-matter.sock"}, []string{"status"}, nil, deps)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 0 {
		t.Errorf("Run() = %d, want 0", code)
	}
	if len(fake.Calls) == 0 || fake.Calls[0] != "SetEnvironment" {
		t.Errorf("Calls = %v, want SetEnvironment first", fake.Calls)
	}
}

func TestRun_SpawnsWhenNoServerAnswers(t *testing.T) {
	fake := clienttest.New()
	fake.RunCommandExit = 5
	spawned := false

	deps := Deps{
		Open: func(path string) (client.Handle, error) { return nil, errors.New("connection refused") },
		Spawn: func(cfg config.Config, paths rendezvous.Paths, sensitiveArgs []string, env []string) (int, error) {
			spawned = true
			return 4242, nil
		},
		Retry: func(ctx context.Context, cfg config.Config, paths rendezvous.Paths, childPID int, open supervisor.OpenFunc) (client.Handle, error) {
			if childPID != 4242 {
				t.Errorf("Retry called with pid %d, want 4242", childPID)
			}
			return fake, nil
		},
		Signal: noopSignal,
	}

	code, err := Run(context.Background(), config.Config{SockName: "/tmp/does-not-matter.sock"}, []string{"status"}, nil, deps)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !spawned {
		t.Error("Spawn should have been called")
	}
	if code != 5 {
		t.Errorf("Run() = %d, want 5", code)
	}
}

func TestRun_AppliesRedirectAndReconnects(t *testing.T) {
	first := clienttest.New()
	first.ValidateBatches = [][]instructions.Instruction{
		{{Kind: instructions.Redirect, Path: "/tmp/second.sock"}},
	}
	second := clienttest.New()
	second.RunCommandExit = 0

	opens := 0
	deps := Deps{
		Open: func(path string) (client.Handle, error) {
			opens++
			if opens == 1 {
				return first, nil
			}
			return second, nil
		},
		Spawn: func(cfg config.Config, paths rendezvous.Paths, sensitiveArgs []string, env []string) (int, error) {
			t.Fatal("Spawn should not be called")
			return 0, nil
		},
		Retry: func(ctx context.Context, cfg config.Config, paths rendezvous.Paths, childPID int, open supervisor.OpenFunc) (client.Handle, error) {
			t.Fatal("Retry should not be called")
			return nil, nil
		},
		Signal: noopSignal,
	}

	code, err := Run(context.Background(), config.Config{SockName: "/tmp/first.sock"}, []string{"status"}, nil, deps)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 0 {
		t.Errorf("Run() = %d, want 0", code)
	}
	if opens != 2 {
		t.Errorf("opens = %d, want 2 (initial connect + redirect reconnect)", opens)
	}
}

func TestRun_SpawnedServerNonZeroExitBecomesOwnExitCode(t *testing.T) {
	deps := Deps{
		Open: func(path string) (client.Handle, error) { return nil, errors.New("connection refused") },
		Spawn: func(cfg config.Config, paths rendezvous.Paths, sensitiveArgs []string, env []string) (int, error) {
			return 4242, nil
		},
		Retry: func(ctx context.Context, cfg config.Config, paths rendezvous.Paths, childPID int, open supervisor.OpenFunc) (client.Handle, error) {
			return nil, &xerrors.SessionError{Kind: xerrors.KindServerExit, ExitCode: 5}
		},
		Signal: noopSignal,
	}

	code, err := Run(context.Background(), config.Config{SockName: "/tmp/does-not-matter.sock"}, []string{"status"}, nil, deps)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil (a non-zero server exit is not a chgo failure)", err)
	}
	if code != 5 {
		t.Errorf("Run() = %d, want 5", code)
	}
}

func TestRun_UnlinksStalePrimaryWhenRedirectTargetUnreachable(t *testing.T) {
	first := clienttest.New()
	first.ValidateBatches = [][]instructions.Instruction{
		{{Kind: instructions.Redirect, Path: "/tmp/second.sock"}},
	}

	primary := t.TempDir() + "/primary.sock"
	if err := os.WriteFile(primary, []byte("stale"), 0o600); err != nil {
		t.Fatalf("seed primary socket file: %v", err)
	}

	opens := 0
	deps := Deps{
		Open: func(path string) (client.Handle, error) {
			opens++
			if opens == 1 {
				return first, nil
			}
			return nil, errors.New("redirect target unreachable")
		},
		Spawn: func(cfg config.Config, paths rendezvous.Paths, sensitiveArgs []string, env []string) (int, error) {
			return 0, errors.New("stop before actually spawning")
		},
		Retry: func(ctx context.Context, cfg config.Config, paths rendezvous.Paths, childPID int, open supervisor.OpenFunc) (client.Handle, error) {
			return nil, nil
		},
		Signal: noopSignal,
	}

	_, _ = Run(context.Background(), config.Config{SockName: primary}, []string{"status"}, nil, deps)

	if _, err := os.Stat(primary); !os.IsNotExist(err) {
		t.Errorf("primary socket %s should have been unlinked after the redirect target failed, stat err = %v", primary, err)
	}
}

func TestRun_TooManyRedirectsIsFatal(t *testing.T) {
	loopy := clienttest.New()
	for i := 0; i < maxRedirects+1; i++ {
		loopy.ValidateBatches = append(loopy.ValidateBatches, []instructions.Instruction{
			{Kind: instructions.Redirect, Path: "/tmp/loop.sock"},
		})
	}

	deps := Deps{
		Open:  func(path string) (client.Handle, error) { return loopy, nil },
		Spawn: func(cfg config.Config, paths rendezvous.Paths, sensitiveArgs []string, env []string) (int, error) { return 0, nil },
		Retry: func(ctx context.Context, cfg config.Config, paths rendezvous.Paths, childPID int, open supervisor.OpenFunc) (client.Handle, error) {
			return nil, nil
		},
		Signal: noopSignal,
	}

	_, err := Run(context.Background(), config.Config{SockName: "/tmp/loop.sock"}, []string{"status"}, nil, deps)
	if err == nil {
		t.Fatal("Run() should fail after exceeding the redirect bound")
	}
}
