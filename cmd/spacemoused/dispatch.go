package main

import (
	"log/slog"
	"time"
)

// ============================================================================
// Action dispatch
// ============================================================================
//
// The Dispatcher is the only place that turns device events into side
// effects. Side effects go through two collaborator interfaces; either may be
// nil, in which case that effect category is skipped for the process
// lifetime (the missing collaborator is warned about once, at startup).
// ============================================================================

// ScrollEmitter is the virtual-input backend for scroll/zoom emulation.
type ScrollEmitter interface {
	// Scroll emits a discrete scroll of dx horizontal and dy vertical
	// wheel clicks. Zero components produce no events.
	Scroll(dx, dy int) error
	// Zoom emits dz wheel clicks with the zoom modifier held.
	Zoom(dz int) error
	Close() error
}

// DesktopActions is the compositor RPC backend for discrete desktop actions.
type DesktopActions interface {
	// SwitchDesktop moves to the next (dir > 0) or previous (dir < 0)
	// virtual desktop.
	SwitchDesktop(dir int) error
	// ToggleOverview toggles the window overview effect.
	ToggleOverview() error
	// ShowDesktop sets the show-desktop state.
	ShowDesktop(show bool) error
	Close() error
}

// Dispatcher applies an active profile's config to motion and button events.
type Dispatcher struct {
	emitter ScrollEmitter  // nil: scroll/zoom disabled
	desktop DesktopActions // nil: desktop actions disabled
	acc     *Accumulator
	maxRaw  int
	logger  *slog.Logger

	// now is injected so debounce behavior is testable.
	now func() time.Time

	lastSwitch   time.Time
	desktopShown bool
}

func NewDispatcher(emitter ScrollEmitter, desktop DesktopActions, acc *Accumulator, maxRaw int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		emitter: emitter,
		desktop: desktop,
		acc:     acc,
		maxRaw:  maxRaw,
		logger:  logger,
		now:     time.Now,
	}
}

// HandleMotion processes one 6DOF motion event under cfg: every axis slot is
// curved, scaled and fed to its channel, then each channel is drained once
// and nonzero integer parts are emitted.
func (d *Dispatcher) HandleMotion(cfg *Config, axes [axisCount]int32) {
	for i, action := range cfg.AxisMap {
		raw := int(axes[i])

		switch action {
		case AxisScrollH:
			val := applyCurve(raw, cfg.Deadzone, cfg.ScrollExponent, cfg.ScrollSpeed, d.maxRaw) * cfg.Sensitivity
			if cfg.InvertScrollX {
				val = -val
			}
			d.acc.Add(chanScrollX, val)

		case AxisScrollV:
			val := applyCurve(raw, cfg.Deadzone, cfg.ScrollExponent, cfg.ScrollSpeed, d.maxRaw) * cfg.Sensitivity
			if cfg.InvertScrollY {
				val = -val
			}
			// Pushing the cap away scrolls up; the wheel axis grows the
			// other way.
			d.acc.Add(chanScrollY, -val)

		case AxisZoom:
			val := applyCurve(raw, cfg.Deadzone, cfg.ScrollExponent, cfg.ZoomSpeed, d.maxRaw) * cfg.Sensitivity
			d.acc.Add(chanZoom, val)

		case AxisDesktopSwitch:
			d.maybeSwitchDesktop(cfg, raw)

		case AxisNone:
			// unmapped axis
		}
	}

	// Drain once per event; channels with a zero integer part make no call.
	sx := d.acc.Drain(chanScrollX)
	sy := d.acc.Drain(chanScrollY)
	sz := d.acc.Drain(chanZoom)

	if d.emitter == nil {
		return
	}
	if sx != 0 || sy != 0 {
		if err := d.emitter.Scroll(sx, sy); err != nil {
			d.logger.Debug("scroll emit failed", "dx", sx, "dy", sy, "error", err)
		}
	}
	if sz != 0 {
		if err := d.emitter.Zoom(sz); err != nil {
			d.logger.Debug("zoom emit failed", "dz", sz, "error", err)
		}
	}
}

// maybeSwitchDesktop is the debounced desktop-switch trigger. The raw axis
// magnitude is compared against the threshold (the response curve does not
// apply to discrete actions), and triggers within the cooldown window are
// suppressed without resetting the timer.
func (d *Dispatcher) maybeSwitchDesktop(cfg *Config, raw int) {
	mag := raw
	if mag < 0 {
		mag = -mag
	}
	if mag <= cfg.SwitchThreshold {
		return
	}

	now := d.now()
	if now.Sub(d.lastSwitch) <= time.Duration(cfg.SwitchCooldownMS)*time.Millisecond {
		return
	}
	d.lastSwitch = now

	if d.desktop == nil {
		return
	}
	dir := 1
	if raw < 0 {
		dir = -1
	}
	if err := d.desktop.SwitchDesktop(dir); err != nil {
		d.logger.Debug("desktop switch failed", "dir", dir, "error", err)
	}
}

// HandleButton processes a button transition. Only the press edge triggers;
// releases and unmapped buttons are no-ops.
func (d *Dispatcher) HandleButton(cfg *Config, button int, pressed bool) {
	if !pressed || button < 0 || button >= maxButtons {
		return
	}

	switch cfg.ButtonMap[button] {
	case ButtonOverview:
		if d.desktop == nil {
			return
		}
		if err := d.desktop.ToggleOverview(); err != nil {
			d.logger.Debug("overview toggle failed", "error", err)
		}

	case ButtonShowDesktop:
		// The toggle state lives here, not in the profile: it tracks what
		// the daemon last asked the compositor to do.
		d.desktopShown = !d.desktopShown
		if d.desktop == nil {
			return
		}
		if err := d.desktop.ShowDesktop(d.desktopShown); err != nil {
			d.logger.Debug("show desktop failed", "shown", d.desktopShown, "error", err)
		}

	case ButtonNone:
		// unmapped button
	}
}
