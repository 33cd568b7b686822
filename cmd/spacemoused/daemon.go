package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ============================================================================
// Supervisor / event loop
// ============================================================================
//
// Single-threaded, readiness-multiplexed. One poll(2) across the device
// socket, the control listener and a wake pipe, with a 100 ms timeout; all
// pipeline work (curve, accumulate, dispatch) and every control transaction
// run to completion inside the loop, so ProfileStore, Accumulator and
// dispatcher state need no locking.
//
// Signal handlers and the config watcher only set atomic flags and write one
// byte to the wake pipe; the flagged work (reload, terminate) runs
// synchronously at the top of the next iteration. The poll timeout bounds
// flag latency even if the wake write is lost.
// ============================================================================

// daemon owns the mutable state and every external-resource handle.
type daemon struct {
	logger     *slog.Logger
	configPath string

	store      *ProfileStore
	acc        *Accumulator
	dispatcher *Dispatcher

	device  *DeviceConn
	control *ControlServer // nil: control plane disabled
	feed    *StateFeed     // nil: state feed disabled

	// Self-notifying pipe integrating flag setters into the readiness wait.
	wakeR, wakeW *os.File

	reload    atomic.Bool
	terminate atomic.Bool
}

func newDaemon(
	configPath string,
	store *ProfileStore,
	acc *Accumulator,
	dispatcher *Dispatcher,
	device *DeviceConn,
	control *ControlServer,
	feed *StateFeed,
	logger *slog.Logger,
) (*daemon, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("wake pipe: %w", err)
	}
	// The wake write must never block a signal-context goroutine.
	unix.SetNonblock(int(r.Fd()), true)
	unix.SetNonblock(int(w.Fd()), true)

	return &daemon{
		logger:     logger,
		configPath: configPath,
		store:      store,
		acc:        acc,
		dispatcher: dispatcher,
		device:     device,
		control:    control,
		feed:       feed,
		wakeR:      r,
		wakeW:      w,
	}, nil
}

func (d *daemon) Close() error {
	d.wakeR.Close()
	return d.wakeW.Close()
}

// requestReload defers a profile reload to the next loop iteration. Safe to
// call from any goroutine.
func (d *daemon) requestReload() {
	d.reload.Store(true)
	d.wake()
}

// requestTerminate defers an orderly shutdown to the next loop iteration.
// Safe to call from any goroutine.
func (d *daemon) requestTerminate() {
	d.terminate.Store(true)
	d.wake()
}

func (d *daemon) wake() {
	// Best-effort: a full pipe already guarantees a pending wakeup, and the
	// poll timeout covers the rest.
	d.wakeW.Write([]byte{0})
}

// run drives the loop until a terminate request or a fatal device error.
func (d *daemon) run() error {
	d.logger.Info("running", "active_profile", d.store.Active().Name)

	for {
		if d.terminate.Load() {
			d.logger.Info("terminate requested, draining")
			return nil
		}
		if d.reload.CompareAndSwap(true, false) {
			d.doReload()
		}

		fds := make([]unix.PollFd, 0, 3)
		fds = append(fds, unix.PollFd{Fd: int32(d.device.Fd()), Events: unix.POLLIN})
		ctlIdx := -1
		if d.control != nil {
			ctlIdx = len(fds)
			fds = append(fds, unix.PollFd{Fd: int32(d.control.Fd()), Events: unix.POLLIN})
		}
		wakeIdx := len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(d.wakeR.Fd()), Events: unix.POLLIN})

		n, err := unix.Poll(fds, pollTimeoutMS)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			// Timeout: loop back to check the deferred flags.
			continue
		}

		if fds[wakeIdx].Revents != 0 {
			d.drainWakePipe()
		}

		// One control transaction per readiness.
		if ctlIdx >= 0 && fds[ctlIdx].Revents&unix.POLLIN != 0 {
			if d.control.HandleOne(d.store, d.requestReload) {
				// Fractional carry from the previous profile's curve is
				// meaningless under the new one.
				d.acc.Clear()
				d.logger.Info("active profile changed", "profile", d.store.Active().Name)
				d.publishState("profile_changed")
			}
		}

		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
			return fmt.Errorf("device event source hung up")
		}
		if fds[0].Revents&unix.POLLIN != 0 {
			if err := d.drainDevice(); err != nil {
				return fmt.Errorf("device event source: %w", err)
			}
		}
	}
}

// drainDevice processes every event currently available from the source in
// one pass, so the queue cannot build up behind slow downstream calls.
func (d *daemon) drainDevice() error {
	for {
		ev, ok, err := d.device.PollEvent()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		cfg := &d.store.Active().Config
		switch e := ev.(type) {
		case MotionEvent:
			d.dispatcher.HandleMotion(cfg, e.Axes)
		case ButtonEvent:
			d.dispatcher.HandleButton(cfg, e.Button, e.Pressed)
		case nil:
			// unknown wire event type
		}
	}
}

// doReload rebuilds the ProfileStore from the document and swaps it in
// whole. The previously active profile stays active if the new store still
// has it; otherwise "default" (slot 0) takes over.
func (d *daemon) doReload() {
	prev := d.store.Active().Name

	store := LoadProfiles(d.configPath, d.logger)
	if _, ok := store.Activate(prev); !ok {
		d.logger.Info("previously active profile gone after reload, falling back", "previous", prev)
	}

	d.store = store
	d.acc.Clear()
	d.logger.Info("profiles reloaded", "active", d.store.Active().Name, "profiles", d.store.Names())
	d.publishState("profiles_reloaded")
}

func (d *daemon) drainWakePipe() {
	var buf [64]byte
	for {
		n, err := d.wakeR.Read(buf[:])
		if err != nil || n < len(buf) {
			return
		}
	}
}

// publishState hands an immutable snapshot to the websocket feed. The send
// never blocks the loop.
func (d *daemon) publishState(kind string) {
	if d.feed == nil {
		return
	}
	d.feed.Publish(kind, StateSnapshot{
		ActiveProfile: d.store.Active().Name,
		Profiles:      d.store.Names(),
	})
}
