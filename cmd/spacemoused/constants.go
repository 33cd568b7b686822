package main

// Device characteristics and daemon defaults.
const (
	// defaultMaxRaw is the maximum axis magnitude reported by the devices
	// tested so far (SpaceMouse Compact / Wireless). Overridable with
	// -max-raw for devices with a different range.
	defaultMaxRaw = 350

	// axisCount is the number of 6DOF axis slots: tx, ty, tz, rx, ry, rz.
	axisCount = 6

	// maxButtons bounds accepted button indices in button_mapping.
	maxButtons = 16

	// pollTimeoutMS is the readiness-wait timeout of the main loop. It
	// bounds how long a deferred reload/terminate flag can sit unseen.
	pollTimeoutMS = 100
)

// Built-in baseline profile parameters. Every profile inherits these
// through the "default" profile unless its document entry overrides them.
const (
	defaultDeadzone        = 15
	defaultScrollSpeed     = 3.0
	defaultScrollExponent  = 2.0
	defaultZoomSpeed       = 2.0
	defaultSwitchThreshold = 200
	defaultSwitchCooldown  = 500 // milliseconds
	defaultSensitivity     = 1.0
)

// Linux input event types and codes used by the uinput emitter
// (from <linux/input-event-codes.h>).
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	synReport = 0

	relHWheel      = 0x06
	relWheel       = 0x08
	relWheelHiRes  = 0x0b
	relHWheelHiRes = 0x0c

	keyLeftCtrl = 29
	btnLeft     = 0x110

	// One hi-res wheel detent per legacy wheel click.
	wheelHiResStep = 120
)
