// Package instructions parses and applies the server-issued post-handshake
// directives of §4.5: a finite, ordered batch of unlink/redirect/reconnect/
// exit instructions returned by the server's validate call.
package instructions

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"chgo/internal/xerrors"
)

// Kind tags an instruction's directive type. Unknown lines are rejected at
// Parse time, so every Kind that exists is, by construction, one chgo
// knows how to apply (Design Note: tagged variant, exhaustive match).
type Kind int

const (
	// Unlink removes a stale path (best-effort).
	Unlink Kind = iota
	// Redirect records a new socket path to reconnect to.
	Redirect
	// Reconnect requests a reconnect without changing the socket path.
	Reconnect
	// Exit terminates the client immediately with the given code.
	Exit
)

// Instruction is one parsed directive from an instruction batch.
type Instruction struct {
	Kind Kind
	Path string // for Unlink, Redirect
	Code int    // for Exit
}

// Parse turns the raw instruction lines returned by validate into typed
// Instructions. An unrecognized line, or an Exit line whose code does not
// parse as a signed integer, is a fatal error (§4.5).
func Parse(lines []string) ([]Instruction, error) {
	out := make([]Instruction, 0, len(lines))
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "unlink "):
			out = append(out, Instruction{Kind: Unlink, Path: line[len("unlink "):]})
		case strings.HasPrefix(line, "redirect "):
			out = append(out, Instruction{Kind: Redirect, Path: line[len("redirect "):]})
		case line == "reconnect":
			out = append(out, Instruction{Kind: Reconnect})
		case strings.HasPrefix(line, "exit "):
			n, err := strconv.Atoi(strings.TrimSpace(line[len("exit "):]))
			if err != nil {
				return nil, xerrors.WrapWithDetail(err, xerrors.KindSession,
					"parse instruction", fmt.Sprintf("cannot read exit code from %q", line))
			}
			out = append(out, Instruction{Kind: Exit, Code: n})
		default:
			return nil, xerrors.WrapWithDetail(xerrors.ErrUnknownInstruction, xerrors.KindSession,
				"parse instruction", line)
		}
	}
	return out, nil
}

// Applier applies parsed instruction batches, with the filesystem and
// process-termination effects factored out for testability.
//
// Open question (§9, preserved as observed): redirect may legally appear
// alongside unlink and reconnect in the same batch. RedirectSocket is
// cleared once at batch entry and the last redirect before the batch ends
// wins — servers that emit more than one redirect per batch will see only
// that last one take effect.
type Applier struct {
	// Unlink removes a path; errors are swallowed by the caller (best-effort).
	Unlink func(path string) error
	// Exit terminates the process. NewApplier sets it to os.Exit; it must be
	// non-nil whenever a batch may contain an Exit instruction.
	Exit func(code int)
}

// NewApplier returns an Applier wired to the real filesystem and process.
func NewApplier() Applier {
	return Applier{Unlink: os.Remove, Exit: os.Exit}
}

// Apply processes batch in order against redirectSocket, per §4.5. It
// clears *redirectSocket at entry. If the batch contains an Exit
// instruction, Apply calls a.Exit and does not return (matching the
// process-terminates-immediately semantics of §3's Testable property 5).
func (a Applier) Apply(redirectSocket *string, batch []Instruction) (reconnect bool, err error) {
	*redirectSocket = ""

	for _, inst := range batch {
		switch inst.Kind {
		case Unlink:
			if a.Unlink != nil {
				_ = a.Unlink(inst.Path)
			}
		case Redirect:
			if len(inst.Path) > maxRedirectPathLen {
				return false, xerrors.WrapWithDetail(xerrors.ErrRedirectTooLong, xerrors.KindSession,
					"apply instruction", fmt.Sprintf("%d bytes", len(inst.Path)))
			}
			*redirectSocket = inst.Path
			reconnect = true
		case Reconnect:
			reconnect = true
		case Exit:
			a.Exit(inst.Code)
			return false, nil
		default:
			return false, xerrors.WrapWithDetail(xerrors.ErrUnknownInstruction, xerrors.KindSession,
				"apply instruction", fmt.Sprintf("kind %d", inst.Kind))
		}
	}
	return reconnect, nil
}

// maxRedirectPathLen mirrors the platform PATH_MAX ceiling that
// rendezvous.Resolve enforces on the socket paths it computes, applied here
// to server-supplied redirect paths.
const maxRedirectPathLen = 4096
