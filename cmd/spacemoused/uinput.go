package main

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ============================================================================
// Virtual-input emitter (uinput)
// ============================================================================
//
// Scroll and zoom are emulated through a synthetic wheel device created via
// /dev/uinput. Zoom is Ctrl-held wheel, which every target application
// treats as zoom. Both legacy wheel clicks and hi-res detents are emitted so
// smooth-scrolling desktops behave.
//
// If /dev/uinput cannot be opened (missing module, no permission), the
// daemon keeps running with scroll/zoom disabled.
// ============================================================================

// uinput ioctls and structs from <linux/uinput.h>.
const (
	uiSetEvBit  = 0x40045564
	uiSetKeyBit = 0x40045565
	uiSetRelBit = 0x40045566

	uiDevSetup   = 0x405c5503
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502

	busVirtual = 0x06
)

type uinputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputSetup struct {
	ID           uinputID
	Name         [80]byte
	FFEffectsMax uint32
}

// inputEventSize is sizeof(struct input_event) on 64-bit: 16-byte timeval
// plus type, code, value.
const inputEventSize = 24

// UinputEmitter is the uinput-backed ScrollEmitter.
type UinputEmitter struct {
	f      *os.File
	logger *slog.Logger
}

// OpenUinput creates the virtual wheel device.
func OpenUinput(logger *slog.Logger) (*UinputEmitter, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/uinput: %w", err)
	}
	e := &UinputEmitter{f: f, logger: logger}

	fd := int(f.Fd())
	for _, bit := range []int{evRel} {
		if err := unix.IoctlSetInt(fd, uiSetEvBit, bit); err != nil {
			f.Close()
			return nil, fmt.Errorf("UI_SET_EVBIT: %w", err)
		}
	}
	for _, code := range []int{relWheel, relHWheel, relWheelHiRes, relHWheelHiRes} {
		if err := unix.IoctlSetInt(fd, uiSetRelBit, code); err != nil {
			f.Close()
			return nil, fmt.Errorf("UI_SET_RELBIT: %w", err)
		}
	}
	if err := unix.IoctlSetInt(fd, uiSetEvBit, evKey); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_SET_EVBIT: %w", err)
	}
	for _, code := range []int{btnLeft, keyLeftCtrl} {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, code); err != nil {
			f.Close()
			return nil, fmt.Errorf("UI_SET_KEYBIT: %w", err)
		}
	}

	var setup uinputSetup
	setup.ID = uinputID{Bustype: busVirtual, Vendor: 0x256f, Product: 0x0001}
	copy(setup.Name[:], "SpaceMouse Desktop Scroll")

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uiDevSetup, uintptr(unsafe.Pointer(&setup))); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("UI_DEV_SETUP: %w", errno)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_DEV_CREATE: %w", err)
	}

	// Give the input stack a moment to register the new device before the
	// first events arrive.
	time.Sleep(100 * time.Millisecond)

	logger.Info("virtual scroll device created")
	return e, nil
}

// emit writes one input_event. Timestamps are left zero; the kernel stamps
// events written to uinput.
func (e *UinputEmitter) emit(typ, code uint16, value int32) error {
	var buf [inputEventSize]byte
	binary.LittleEndian.PutUint16(buf[16:], typ)
	binary.LittleEndian.PutUint16(buf[18:], code)
	binary.LittleEndian.PutUint32(buf[20:], uint32(value))
	_, err := e.f.Write(buf[:])
	return err
}

// Scroll emits dx horizontal and dy vertical wheel clicks followed by one
// report. Zero components are skipped entirely.
func (e *UinputEmitter) Scroll(dx, dy int) error {
	if dx == 0 && dy == 0 {
		return nil
	}
	if dy != 0 {
		if err := e.emit(evRel, relWheel, int32(dy)); err != nil {
			return err
		}
		if err := e.emit(evRel, relWheelHiRes, int32(dy*wheelHiResStep)); err != nil {
			return err
		}
	}
	if dx != 0 {
		if err := e.emit(evRel, relHWheel, int32(dx)); err != nil {
			return err
		}
		if err := e.emit(evRel, relHWheelHiRes, int32(dx*wheelHiResStep)); err != nil {
			return err
		}
	}
	return e.emit(evSyn, synReport, 0)
}

// Zoom emits dz wheel clicks with Ctrl held around them.
func (e *UinputEmitter) Zoom(dz int) error {
	if dz == 0 {
		return nil
	}
	steps := []struct {
		typ   uint16
		code  uint16
		value int32
	}{
		{evKey, keyLeftCtrl, 1},
		{evSyn, synReport, 0},
		{evRel, relWheel, int32(dz)},
		{evRel, relWheelHiRes, int32(dz * wheelHiResStep)},
		{evSyn, synReport, 0},
		{evKey, keyLeftCtrl, 0},
		{evSyn, synReport, 0},
	}
	for _, s := range steps {
		if err := e.emit(s.typ, s.code, s.value); err != nil {
			return err
		}
	}
	return nil
}

func (e *UinputEmitter) Close() error {
	if err := unix.IoctlSetInt(int(e.f.Fd()), uiDevDestroy, 0); err != nil {
		e.logger.Debug("UI_DEV_DESTROY failed", "error", err)
	}
	return e.f.Close()
}
