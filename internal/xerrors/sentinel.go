// Package xerrors: predefined sentinel errors for common failure cases.
package xerrors

// Environment-fatal errors (§7: path too long, insecure socket dir, loop
// marker present, putenv/setenv failure).
var (
	// ErrSockDirInsecure indicates the socket directory is not owned by the
	// effective user, or has group/other permission bits set.
	ErrSockDirInsecure = &SessionError{
		Kind:   KindEnvironment,
		Detail: "insecure socket directory",
	}

	// ErrSockDirNotDir indicates the resolved socket directory path exists
	// but is not a directory.
	ErrSockDirNotDir = &SessionError{
		Kind:   KindEnvironment,
		Detail: "socket directory path exists but is not a directory",
	}

	// ErrPathTooLong indicates a computed path exceeds the platform's path
	// length ceiling.
	ErrPathTooLong = &SessionError{
		Kind:   KindEnvironment,
		Detail: "path too long",
	}

	// ErrLoopDetected indicates the client was invoked by a server it
	// itself spawned, i.e. the backing tool is wrapped by this very client.
	ErrLoopDetected = &SessionError{
		Kind:   KindEnvironment,
		Detail: "chgo started by chgo detected",
	}
)

// Spawn-fatal errors (§7: fork failure, exec failure, server exited during
// retry with status 0).
var (
	// ErrForkFailed indicates the supervisor could not fork a child.
	ErrForkFailed = &SessionError{
		Kind:   KindSpawn,
		Detail: "failed to fork command server process",
	}

	// ErrExecFailed indicates execve of the backing tool failed.
	ErrExecFailed = &SessionError{
		Kind:   KindSpawn,
		Detail: "failed to exec command server",
	}

	// ErrServerQuitClean indicates the server process exited with status 0
	// without ever accepting a connection — anomalous, since a clean exit
	// before serving means it never intended to serve this client.
	ErrServerQuitClean = &SessionError{
		Kind:   KindSpawn,
		Detail: "could not connect to command server (exited with status 0)",
	}

	// ErrServerKilled indicates the server process was killed by a signal
	// before it ever accepted a connection.
	ErrServerKilled = &SessionError{
		Kind:   KindSpawn,
		Detail: "command server killed by signal",
	}
)

// Session-fatal errors (§7: cannot open any socket within timeout, unknown
// instruction, excessive redirection).
var (
	// ErrConnectTimeout indicates the retry loop exceeded its deadline
	// without ever connecting.
	ErrConnectTimeout = &SessionError{
		Kind:   KindSession,
		Detail: "timed out waiting for command server",
	}

	// ErrTooManyRedirects indicates the redirection counter exceeded the
	// fixed bound of 10 without settling.
	ErrTooManyRedirects = &SessionError{
		Kind: KindSession,
		Detail: "too many redirections; make sure the backing tool is not a " +
			"wrapper that changes sensitive environment variables before " +
			"running it — wrap chgo instead",
	}

	// ErrUnknownInstruction indicates the server sent an instruction line
	// chgo does not recognize.
	ErrUnknownInstruction = &SessionError{
		Kind:   KindSession,
		Detail: "unknown instruction",
	}

	// ErrRedirectTooLong indicates a redirect instruction's path exceeds
	// the platform path length ceiling.
	ErrRedirectTooLong = &SessionError{
		Kind:   KindSession,
		Detail: "redirect path is too long",
	}

	// ErrNoHandle indicates the connect/spawn sequence produced no usable
	// client handle.
	ErrNoHandle = &SessionError{
		Kind:   KindSession,
		Detail: "cannot open command server client",
	}
)
