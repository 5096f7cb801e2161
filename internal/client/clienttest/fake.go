// Package clienttest provides a scriptable fake client.Handle so
// internal/session can be exercised without a real command server.
package clienttest

import (
	"context"

	"chgo/internal/instructions"
)

// Handle is a fake implementation of client.Handle. Each method's behavior
// is driven by the fields below, and every call is recorded for assertions.
type Handle struct {
	// ValidateBatches is consumed one slice per Validate call; once
	// exhausted, Validate returns (nil, nil).
	ValidateBatches [][]instructions.Instruction
	// ValidateErr, if set, is returned by the next Validate call instead of
	// consuming a batch.
	ValidateErr error
	// RunCommandExit is returned by RunCommand.
	RunCommandExit int
	// RunCommandErr, if set, is returned by RunCommand instead of
	// RunCommandExit.
	RunCommandErr error
	// SetEnvironmentErr, if set, is returned by SetEnvironment.
	SetEnvironmentErr error
	// CloseErr, if set, is returned by Close.
	CloseErr error
	// PID and PGID back PeerPID/PeerPGID.
	PID  int
	PGID int

	// Calls records every method invocation in order, e.g. "SetEnvironment",
	// "Validate", "RunCommand", "Close".
	Calls []string
	// Environments records each SetEnvironment argument.
	Environments [][]string
	// ValidateArgs records each Validate argvTail argument.
	ValidateArgs [][]string
	// RunCommandArgs records each RunCommand argvTail argument.
	RunCommandArgs [][]string

	validateCalls int
}

// New returns a fake Handle that accepts any call and reports success.
func New() *Handle {
	return &Handle{}
}

func (h *Handle) Close() error {
	h.Calls = append(h.Calls, "Close")
	return h.CloseErr
}

func (h *Handle) SetEnvironment(env []string) error {
	h.Calls = append(h.Calls, "SetEnvironment")
	h.Environments = append(h.Environments, env)
	return h.SetEnvironmentErr
}

func (h *Handle) Validate(argvTail []string) ([]instructions.Instruction, error) {
	h.Calls = append(h.Calls, "Validate")
	h.ValidateArgs = append(h.ValidateArgs, argvTail)
	if h.ValidateErr != nil {
		return nil, h.ValidateErr
	}
	if h.validateCalls >= len(h.ValidateBatches) {
		h.validateCalls++
		return nil, nil
	}
	batch := h.ValidateBatches[h.validateCalls]
	h.validateCalls++
	return batch, nil
}

func (h *Handle) RunCommand(ctx context.Context, argvTail []string) (int, error) {
	h.Calls = append(h.Calls, "RunCommand")
	h.RunCommandArgs = append(h.RunCommandArgs, argvTail)
	if h.RunCommandErr != nil {
		return 0, h.RunCommandErr
	}
	return h.RunCommandExit, nil
}

func (h *Handle) PeerPID() int  { return h.PID }
func (h *Handle) PeerPGID() int { return h.PGID }
