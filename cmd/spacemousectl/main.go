package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// ============================================================================
// spacemousectl - Command-line control client
// ============================================================================
// This tool sends commands to the spacemoused daemon over its control socket.
//
// Usage:
//   spacemousectl profile <name>
//   spacemousectl reload
//   spacemousectl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: per-user runtime dir)
//
// The wire protocol is a single LF-terminated command line; the daemon's
// reply is printed verbatim, so scripts can parse OK/ERR/ACTIVE/PROFILES
// lines directly.
// ============================================================================

const replyTimeout = 2 * time.Second

// defaultSocketPath mirrors the daemon's default (duplicated for a
// standalone binary).
func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/spacemoused.sock"
	}
	return fmt.Sprintf("/run/user/%d/spacemoused.sock", os.Getuid())
}

func main() {
	socketPath := defaultSocketPath()

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Check for -socket flag
	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Parse command
	var command string

	switch args[0] {
	case "profile", "p":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: profile requires a name\n")
			os.Exit(1)
		}
		command = "PROFILE " + args[1]

	case "reload", "r":
		command = "RELOAD"

	case "status", "s":
		command = "STATUS"

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	reply, err := sendCommand(socketPath, command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(reply)
	if len(reply) >= len("ERR") && reply[:len("ERR")] == "ERR" {
		os.Exit(1)
	}
}

// sendCommand performs one control transaction: connect, send the command
// line, read the reply until the daemon closes the connection.
func sendCommand(socketPath, command string) (string, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w (is spacemoused running?)", socketPath, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(replyTimeout))

	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return string(reply), nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `spacemousectl - Control the spacemoused daemon

Usage:
  spacemousectl [options] <command> [args]

Options:
  -socket PATH       Unix domain socket path (default: %s)

Commands:
  profile, p <name>  Switch the active profile (name is case-insensitive)
  reload, r          Re-read the profile document
  status, s          Print the active profile and the full profile list
  help, -h, --help   Show this help message

Examples:
  spacemousectl profile blender
  spacemousectl status
  spacemousectl -socket /tmp/sm.sock reload
`, defaultSocketPath())
}
