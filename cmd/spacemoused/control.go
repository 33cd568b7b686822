package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// Control server - local command socket
// ============================================================================
//
// The control plane is a unix domain socket with a one-shot line protocol:
// the client connects, sends a single LF-terminated ASCII command, reads the
// ASCII reply and the server closes the connection. No sessions, no framing
// beyond the line.
//
// Commands (keyword case-sensitive, profile name case-insensitive):
//
//   PROFILE <name>   switch the active profile    -> "OK <canonical-name>"
//                                                 -> "ERR unknown profile '<name>'"
//   RELOAD           request a deferred reload    -> "OK reloading"
//   STATUS           active + ordered name list   -> "ACTIVE <name>" / "PROFILES <names...>"
//   anything else                                 -> "ERR unknown command"
//
// Accept is driven by the daemon loop (one transaction per readiness), which
// keeps all ProfileStore mutation on the loop goroutine. Deadlines bound
// every read and write so a silent or stuck client cannot stall the daemon.
// ============================================================================

const (
	controlIOTimeout = 500 * time.Millisecond

	// controlCmdLimit bounds a command line; longer input is truncated and
	// will fail to parse.
	controlCmdLimit = 256
)

// ControlServer owns the listening socket and a dup'd fd the daemon loop
// registers with poll.
type ControlServer struct {
	listener *net.UnixListener
	file     *os.File
	path     string
	logger   *slog.Logger
}

func NewControlServer(path string, logger *slog.Logger) (*ControlServer, error) {
	// A stale socket from a previous run would make bind fail.
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	ul := l.(*net.UnixListener)

	// Owner-only: the control plane can change daemon behavior.
	if err := os.Chmod(path, 0o600); err != nil {
		ul.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	f, err := ul.File()
	if err != nil {
		ul.Close()
		return nil, fmt.Errorf("dup listener fd: %w", err)
	}

	logger.Info("control socket listening", "path", path)
	return &ControlServer{listener: ul, file: f, path: path, logger: logger}, nil
}

// Fd returns the descriptor the daemon loop polls for accept readiness.
func (s *ControlServer) Fd() int {
	return int(s.file.Fd())
}

func (s *ControlServer) Close() error {
	s.file.Close()
	return s.listener.Close()
}

// HandleOne accepts exactly one connection and runs it to completion.
// It reports whether the transaction changed the active profile, so the
// caller knows to reset the accumulator.
func (s *ControlServer) HandleOne(store *ProfileStore, requestReload func()) bool {
	// The loop only calls this after poll reported readiness, but a
	// deadline keeps a lost race from blocking forever.
	s.listener.SetDeadline(time.Now().Add(controlIOTimeout))
	conn, err := s.listener.Accept()
	if err != nil {
		s.logger.Debug("control accept failed", "error", err)
		return false
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(controlIOTimeout))

	r := bufio.NewReader(io.LimitReader(conn, controlCmdLimit))
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		s.logger.Debug("control read failed", "error", err)
		return false
	}
	line = strings.TrimRight(line, "\r\n")
	s.logger.Debug("control command", "line", line)

	reply, changed := controlReply(line, store, requestReload)
	if _, err := io.WriteString(conn, reply); err != nil {
		s.logger.Debug("control write failed", "error", err)
	}
	return changed
}

// controlReply dispatches one command line against the store and returns the
// wire reply plus whether the active profile changed. Pure with respect to
// I/O so the protocol is testable without sockets.
func controlReply(line string, store *ProfileStore, requestReload func()) (reply string, profileChanged bool) {
	switch {
	case strings.HasPrefix(line, "PROFILE "):
		name := line[len("PROFILE "):]
		canonical, ok := store.Activate(name)
		if !ok {
			return fmt.Sprintf("ERR unknown profile '%s'\n", name), false
		}
		return fmt.Sprintf("OK %s\n", canonical), true

	case line == "RELOAD":
		requestReload()
		return "OK reloading\n", false

	case line == "STATUS":
		return fmt.Sprintf("ACTIVE %s\nPROFILES %s\n",
			store.Active().Name, strings.Join(store.Names(), " ")), false

	default:
		return "ERR unknown command\n", false
	}
}

// defaultSocketPath returns the conventional control socket location under
// the per-user runtime directory.
func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/spacemoused.sock"
	}
	return fmt.Sprintf("/run/user/%d/spacemoused.sock", os.Getuid())
}
