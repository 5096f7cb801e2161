// Package client implements the external collaborator of §6: a handle to
// a live command server reached over a Unix-domain socket. The wire
// protocol's channel framing is explicitly out of scope for chgo (§1) — this
// package implements just enough of it to open a connection, exchange the
// four RPCs the session driver needs, and tear down cleanly; the codec
// itself is treated as a narrow, private detail rather than a reusable
// general-purpose protocol implementation.
package client

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"chgo/internal/instructions"
	"chgo/internal/xerrors"
)

// Handle is a session to a live command server (§6).
type Handle interface {
	// Close ends the session.
	Close() error
	// SetEnvironment pushes the client's current environment to the server.
	SetEnvironment(env []string) error
	// Validate asks the server whether it can serve argvTail, returning any
	// instructions the server wants applied before (or instead of) running.
	Validate(argvTail []string) ([]instructions.Instruction, error)
	// RunCommand runs argvTail on the server and returns its exit code.
	// The handle returned by Open sends the request and reads back a single
	// result frame; it does not forward the calling process's
	// stdin/stdout/stderr to the server.
	RunCommand(ctx context.Context, argvTail []string) (int, error)
	// PeerPID returns the server's process ID, learned at handshake time.
	PeerPID() int
	// PeerPGID returns the server's process group ID, learned at handshake time.
	PeerPGID() int
}

// frame channel identifiers. A single byte tag precedes a 4-byte
// big-endian length and the payload, mirroring the shape of a
// channel-multiplexed command protocol without attempting to be a
// complete reimplementation of one.
const (
	chanHello  = 'o'
	chanInput  = 'I'
	chanResult = 'r'
	chanError  = 'e'
)

type unixHandle struct {
	conn     net.Conn
	r        *bufio.Reader
	peerPID  int
	peerPGID int
}

// Open dials path and performs the initial hello handshake, learning the
// server's pid/pgid (§6: peer_pid, peer_pgid).
func Open(path string) (Handle, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}

	h := &unixHandle{conn: conn, r: bufio.NewReader(conn)}
	tag, payload, err := h.readFrame()
	if err != nil {
		conn.Close()
		return nil, xerrors.Wrap(err, xerrors.KindSession, "read hello frame")
	}
	if tag != chanHello {
		conn.Close()
		return nil, xerrors.WrapWithDetail(nil, xerrors.KindSession,
			"read hello frame", fmt.Sprintf("unexpected channel %q", tag))
	}
	h.peerPID, h.peerPGID = parseHello(string(payload))
	return h, nil
}

func parseHello(hello string) (pid, pgid int) {
	for _, line := range strings.Split(hello, "\n") {
		k, v, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch k {
		case "pid":
			pid, _ = strconv.Atoi(v)
		case "pgid":
			pgid, _ = strconv.Atoi(v)
		}
	}
	return pid, pgid
}

func (h *unixHandle) Close() error {
	return h.conn.Close()
}

func (h *unixHandle) PeerPID() int  { return h.peerPID }
func (h *unixHandle) PeerPGID() int { return h.peerPGID }

func (h *unixHandle) SetEnvironment(env []string) error {
	if err := h.writeFrame(chanInput, []byte("setenv\n"+strings.Join(env, "\x00"))); err != nil {
		return xerrors.Wrap(err, xerrors.KindSession, "set environment")
	}
	_, _, err := h.readFrame()
	if err != nil {
		return xerrors.Wrap(err, xerrors.KindSession, "set environment")
	}
	return nil
}

func (h *unixHandle) Validate(argvTail []string) ([]instructions.Instruction, error) {
	if err := h.writeFrame(chanInput, []byte("validate\n"+strings.Join(argvTail, "\x00"))); err != nil {
		return nil, xerrors.Wrap(err, xerrors.KindSession, "validate")
	}
	tag, payload, err := h.readFrame()
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.KindSession, "validate")
	}
	if tag == chanError {
		return nil, xerrors.WrapWithDetail(nil, xerrors.KindSession, "validate", string(payload))
	}
	if len(payload) == 0 {
		return nil, nil
	}
	lines := strings.Split(string(payload), "\n")
	return instructions.Parse(lines)
}

func (h *unixHandle) RunCommand(ctx context.Context, argvTail []string) (int, error) {
	if err := h.writeFrame(chanInput, []byte("runcommand\n"+strings.Join(argvTail, "\x00"))); err != nil {
		return 0, xerrors.Wrap(err, xerrors.KindSession, "run command")
	}
	tag, payload, err := h.readFrame()
	if err != nil {
		return 0, xerrors.Wrap(err, xerrors.KindSession, "run command")
	}
	if tag == chanError {
		return 0, xerrors.WrapWithDetail(nil, xerrors.KindSession, "run command", string(payload))
	}
	if len(payload) != 4 {
		return 0, xerrors.WrapWithDetail(nil, xerrors.KindSession, "run command",
			"malformed result frame")
	}
	code := int(int32(binary.BigEndian.Uint32(payload)))
	_ = ctx
	return code, nil
}

func (h *unixHandle) readFrame() (byte, []byte, error) {
	tag, err := h.r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(h.r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(h.r, payload); err != nil {
		return 0, nil, err
	}
	return tag, payload, nil
}

func (h *unixHandle) writeFrame(tag byte, payload []byte) error {
	buf := make([]byte, 0, 5+len(payload))
	buf = append(buf, tag)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, payload...)
	_, err := h.conn.Write(buf)
	return err
}
