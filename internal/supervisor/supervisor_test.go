package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"chgo/internal/client"
	"chgo/internal/client/clienttest"
	"chgo/internal/config"
	"chgo/internal/rendezvous"
	"chgo/internal/xerrors"
)

func TestRetryConnect_SucceedsOnFirstOpen(t *testing.T) {
	dir := t.TempDir()
	paths := rendezvous.Paths{
		Socket: filepath.Join(dir, "server"),
		Init:   filepath.Join(dir, "server.123"),
	}
	// Create the init path so the rename in RetryConnect succeeds.
	touch(t, paths.Init)

	sleeper := exec.Command("sleep", "5")
	if err := sleeper.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	defer sleeper.Process.Kill()

	opened := false
	open := func(path string) (client.Handle, error) {
		opened = true
		if path != paths.Init {
			t.Errorf("open called with %q, want %q", path, paths.Init)
		}
		return clienttest.New(), nil
	}

	h, err := RetryConnect(context.Background(), config.Config{TimeoutSeconds: 5}, paths, sleeper.Process.Pid, open)
	if err != nil {
		t.Fatalf("RetryConnect() error = %v", err)
	}
	if !opened {
		t.Error("open was never called")
	}
	if h == nil {
		t.Fatal("RetryConnect() returned a nil handle")
	}
	if _, err := os.Stat(paths.Socket); err != nil {
		t.Errorf("expected %s to exist after rename, stat error = %v", paths.Socket, err)
	}
}

func TestRetryConnect_DetectsEarlyExitStatusZero(t *testing.T) {
	dir := t.TempDir()
	paths := rendezvous.Paths{
		Socket: filepath.Join(dir, "server"),
		Init:   filepath.Join(dir, "server.123"),
	}

	shortLived := exec.Command("sh", "-c", "exit 0")
	if err := shortLived.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	pid := shortLived.Process.Pid
	// Give the child a moment to exit before RetryConnect's own Wait4 reaps
	// it; unlike exec.Cmd.Wait, RetryConnect must observe the exit itself.
	time.Sleep(50 * time.Millisecond)

	open := func(path string) (client.Handle, error) {
		return nil, errors.New("never reached")
	}

	_, err := RetryConnect(context.Background(), config.Config{TimeoutSeconds: 1}, paths, pid, open)
	if err == nil {
		t.Fatal("RetryConnect() should report the early exit instead of polling forever")
	}
	var se *xerrors.SessionError
	if !xerrors.As(err, &se) || se.Kind != xerrors.KindSpawn {
		t.Errorf("err kind = %#v, want KindSpawn (a clean exit before serving is diagnosed)", err)
	}
}

func TestRetryConnect_PropagatesNonZeroExitAsExitCode(t *testing.T) {
	dir := t.TempDir()
	paths := rendezvous.Paths{
		Socket: filepath.Join(dir, "server"),
		Init:   filepath.Join(dir, "server.123"),
	}

	shortLived := exec.Command("sh", "-c", "exit 5")
	if err := shortLived.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	pid := shortLived.Process.Pid
	time.Sleep(50 * time.Millisecond)

	open := func(path string) (client.Handle, error) {
		return nil, errors.New("never reached")
	}

	_, err := RetryConnect(context.Background(), config.Config{TimeoutSeconds: 1}, paths, pid, open)
	if err == nil {
		t.Fatal("RetryConnect() should report the non-zero exit")
	}
	var se *xerrors.SessionError
	if !xerrors.As(err, &se) || se.Kind != xerrors.KindServerExit {
		t.Fatalf("err = %#v, want a KindServerExit SessionError", err)
	}
	if se.ExitCode != 5 {
		t.Errorf("ExitCode = %d, want 5", se.ExitCode)
	}
}

func TestRetryConnect_DetectsSignalKill(t *testing.T) {
	dir := t.TempDir()
	paths := rendezvous.Paths{
		Socket: filepath.Join(dir, "server"),
		Init:   filepath.Join(dir, "server.123"),
	}

	killed := exec.Command("sleep", "5")
	if err := killed.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	pid := killed.Process.Pid
	if err := killed.Process.Kill(); err != nil {
		t.Skipf("cannot signal helper process: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	open := func(path string) (client.Handle, error) {
		return nil, errors.New("never reached")
	}

	_, err := RetryConnect(context.Background(), config.Config{TimeoutSeconds: 1}, paths, pid, open)
	if err == nil {
		t.Fatal("RetryConnect() should report the signal kill")
	}
	var se *xerrors.SessionError
	if !xerrors.As(err, &se) || se.Kind != xerrors.KindSpawn {
		t.Errorf("err kind = %#v, want KindSpawn (a signal kill is diagnosed)", err)
	}
}

func TestRetryConnect_RespectsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	paths := rendezvous.Paths{
		Socket: filepath.Join(dir, "server"),
		Init:   filepath.Join(dir, "server.123"),
	}

	sleeper := exec.Command("sleep", "5")
	if err := sleeper.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	defer sleeper.Process.Kill()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	open := func(path string) (client.Handle, error) {
		return nil, errors.New("socket not ready")
	}

	_, err := RetryConnect(ctx, config.Config{TimeoutSeconds: 0}, paths, sleeper.Process.Pid, open)
	if err == nil {
		t.Fatal("RetryConnect() should return once the context is done")
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	f.Close()
}
