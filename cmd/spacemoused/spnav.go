package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// ============================================================================
// Device-event source: spacenavd client
// ============================================================================
//
// spacenavd (the privileged service that owns the physical device) exposes a
// unix socket delivering fixed-size events of eight little-endian int32
// words:
//
//   word 0      event type: 0 motion, 1 button press, 2 button release
//   words 1..6  motion: tx, ty, tz, rx, ry, rz
//   word 7      motion: period (ms since the previous event)
//   word 1      button: button index
//
// The connection is kept non-blocking: the daemon loop polls the fd for
// readiness and then drains complete events with PollEvent until it reports
// none left. Partial reads are carried across calls.
// ============================================================================

const (
	spnavEventSize = 32

	spnavMotion        = 0
	spnavButtonPress   = 1
	spnavButtonRelease = 2
)

// DeviceEvent is a motion or button event from the device-event source.
type DeviceEvent interface {
	deviceEvent()
}

// MotionEvent carries the six signed axis readings plus the inter-event
// period reported by the device service.
type MotionEvent struct {
	Axes   [axisCount]int32 // tx, ty, tz, rx, ry, rz
	Period int32
}

func (MotionEvent) deviceEvent() {}

// ButtonEvent carries a button index and its press/release transition.
type ButtonEvent struct {
	Button  int
	Pressed bool
}

func (ButtonEvent) deviceEvent() {}

// DeviceConn is a non-blocking connection to the device-event socket.
type DeviceConn struct {
	fd     int
	buf    [spnavEventSize]byte
	have   int
	logger *slog.Logger
}

// spnavSocketPath resolves the device socket, honoring the conventional
// SPNAV_SOCKET override.
func spnavSocketPath() string {
	if p := os.Getenv("SPNAV_SOCKET"); p != "" {
		return p
	}
	return "/var/run/spnav.sock"
}

// DialSpnav connects to the device-event socket. Failure here is fatal for
// the daemon: without an event source it has nothing to do.
func DialSpnav(path string, logger *slog.Logger) (*DeviceConn, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("connect %s: %w (is spacenavd running?)", path, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblocking: %w", err)
	}

	logger.Info("connected to device event source", "socket", path)
	return &DeviceConn{fd: fd, logger: logger}, nil
}

// Fd returns the descriptor the daemon loop polls for read readiness.
func (c *DeviceConn) Fd() int {
	return c.fd
}

func (c *DeviceConn) Close() error {
	return unix.Close(c.fd)
}

// PollEvent returns the next complete event without blocking. ok is false
// when no complete event is currently buffered; an error means the source is
// gone (including io.EOF when spacenavd closed the connection).
func (c *DeviceConn) PollEvent() (ev DeviceEvent, ok bool, err error) {
	for c.have < spnavEventSize {
		n, rerr := unix.Read(c.fd, c.buf[c.have:])
		if n > 0 {
			c.have += n
			continue
		}
		switch {
		case rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK:
			return nil, false, nil
		case rerr == unix.EINTR:
			continue
		case rerr != nil:
			return nil, false, fmt.Errorf("read device socket: %w", rerr)
		default: // n == 0, no error: peer closed
			return nil, false, io.EOF
		}
	}

	c.have = 0
	return decodeSpnavEvent(c.buf[:]), true, nil
}

// decodeSpnavEvent parses one wire event. Unknown event types decode to nil
// and are skipped by the caller; newer spacenavd versions may add types.
func decodeSpnavEvent(b []byte) DeviceEvent {
	var w [8]int32
	for i := range w {
		w[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}

	switch w[0] {
	case spnavMotion:
		ev := MotionEvent{Period: w[7]}
		copy(ev.Axes[:], w[1:7])
		return ev
	case spnavButtonPress, spnavButtonRelease:
		return ButtonEvent{Button: int(w[1]), Pressed: w[0] == spnavButtonPress}
	default:
		return nil
	}
}
