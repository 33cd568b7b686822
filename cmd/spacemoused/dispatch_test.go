package main

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockEmitter records scroll/zoom calls
type mockEmitter struct {
	scrolls [][2]int
	zooms   []int
}

func (m *mockEmitter) Scroll(dx, dy int) error {
	m.scrolls = append(m.scrolls, [2]int{dx, dy})
	return nil
}

func (m *mockEmitter) Zoom(dz int) error {
	m.zooms = append(m.zooms, dz)
	return nil
}

func (m *mockEmitter) Close() error { return nil }

// mockDesktop records desktop-action calls
type mockDesktop struct {
	switches  []int
	overviews int
	shows     []bool
}

func (m *mockDesktop) SwitchDesktop(dir int) error {
	m.switches = append(m.switches, dir)
	return nil
}

func (m *mockDesktop) ToggleOverview() error {
	m.overviews++
	return nil
}

func (m *mockDesktop) ShowDesktop(show bool) error {
	m.shows = append(m.shows, show)
	return nil
}

func (m *mockDesktop) Close() error { return nil }

// fakeClock drives the dispatcher's debounce timer deterministically
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// linearConfig returns a config where outputs are easy to compute by hand:
// no deadzone, linear response, unit speed, device range 0..100.
func linearConfig() Config {
	cfg := baselineConfig()
	cfg.Deadzone = 0
	cfg.ScrollExponent = 1.0
	cfg.ScrollSpeed = 1.0
	cfg.ZoomSpeed = 1.0
	return cfg
}

func newTestDispatcher(em ScrollEmitter, dk DesktopActions) (*Dispatcher, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	d := NewDispatcher(em, dk, &Accumulator{}, 100, testLogger())
	d.now = clock.Now
	return d, clock
}

// TestHandleMotion_FullDeflectionScroll tests a single full-scale vertical
// push producing one scroll call
func TestHandleMotion_FullDeflectionScroll(t *testing.T) {
	em := &mockEmitter{}
	d, _ := newTestDispatcher(em, nil)
	cfg := linearConfig()

	// ty is axis slot 1, mapped to scroll_v by default; the wheel axis is
	// negated relative to the cap direction.
	d.HandleMotion(&cfg, [axisCount]int32{0, 100, 0, 0, 0, 0})

	if len(em.scrolls) != 1 {
		t.Fatalf("expected 1 scroll call, got %d", len(em.scrolls))
	}
	if em.scrolls[0] != [2]int{0, -1} {
		t.Errorf("expected scroll (0,-1), got %v", em.scrolls[0])
	}
}

// TestHandleMotion_FractionalAccumulation tests that half-unit deltas emit
// nothing until they sum past a whole unit
func TestHandleMotion_FractionalAccumulation(t *testing.T) {
	em := &mockEmitter{}
	d, _ := newTestDispatcher(em, nil)
	cfg := linearConfig()

	// Half deflection: 0.5 wheel clicks per event.
	half := [axisCount]int32{0, 50, 0, 0, 0, 0}

	d.HandleMotion(&cfg, half)
	if len(em.scrolls) != 0 {
		t.Fatalf("expected no scroll after 0.5 accumulated, got %v", em.scrolls)
	}

	d.HandleMotion(&cfg, half)
	if len(em.scrolls) != 1 {
		t.Fatalf("expected 1 scroll after 1.0 accumulated, got %d", len(em.scrolls))
	}
	if em.scrolls[0] != [2]int{0, -1} {
		t.Errorf("expected scroll (0,-1), got %v", em.scrolls[0])
	}
}

// TestHandleMotion_InvertScrollY tests the vertical inversion flag
func TestHandleMotion_InvertScrollY(t *testing.T) {
	em := &mockEmitter{}
	d, _ := newTestDispatcher(em, nil)
	cfg := linearConfig()
	cfg.InvertScrollY = true

	d.HandleMotion(&cfg, [axisCount]int32{0, 100, 0, 0, 0, 0})

	if len(em.scrolls) != 1 || em.scrolls[0] != [2]int{0, 1} {
		t.Errorf("expected inverted scroll (0,1), got %v", em.scrolls)
	}
}

// TestHandleMotion_HorizontalAndZoom tests tx and tz driving their own
// channels in one event
func TestHandleMotion_HorizontalAndZoom(t *testing.T) {
	em := &mockEmitter{}
	d, _ := newTestDispatcher(em, nil)
	cfg := linearConfig()
	cfg.ZoomSpeed = 2.0

	d.HandleMotion(&cfg, [axisCount]int32{100, 0, 100, 0, 0, 0})

	if len(em.scrolls) != 1 || em.scrolls[0] != [2]int{1, 0} {
		t.Errorf("expected scroll (1,0), got %v", em.scrolls)
	}
	if len(em.zooms) != 1 || em.zooms[0] != 2 {
		t.Errorf("expected zoom 2, got %v", em.zooms)
	}
}

// TestHandleMotion_SensitivityScales tests the global sensitivity multiplier
func TestHandleMotion_SensitivityScales(t *testing.T) {
	em := &mockEmitter{}
	d, _ := newTestDispatcher(em, nil)
	cfg := linearConfig()
	cfg.Sensitivity = 3.0

	d.HandleMotion(&cfg, [axisCount]int32{100, 0, 0, 0, 0, 0})

	if len(em.scrolls) != 1 || em.scrolls[0] != [2]int{3, 0} {
		t.Errorf("expected scroll (3,0) under sensitivity 3, got %v", em.scrolls)
	}
}

// TestHandleMotion_NilEmitter tests that motion without a scroll backend
// still drains the accumulator and does not panic
func TestHandleMotion_NilEmitter(t *testing.T) {
	d, _ := newTestDispatcher(nil, nil)
	cfg := linearConfig()

	d.HandleMotion(&cfg, [axisCount]int32{100, 100, 100, 0, 0, 0})
	d.HandleMotion(&cfg, [axisCount]int32{0, 0, 0, 0, 0, 0})

	for _, ch := range []accChannel{chanScrollX, chanScrollY, chanZoom} {
		d.acc.Add(ch, 0.2)
		if got := d.acc.Drain(ch); got != 0 {
			t.Errorf("channel %d: expected drained accumulator with nil emitter, got residue %d", ch, got)
		}
	}
}

// TestDesktopSwitch_ThresholdAndDirection tests the trigger boundary and
// direction mapping on the desktop-switch axis
func TestDesktopSwitch_ThresholdAndDirection(t *testing.T) {
	dk := &mockDesktop{}
	d, clock := newTestDispatcher(nil, dk)
	cfg := baselineConfig() // threshold 200, ry is desktop_switch

	// At the threshold: no trigger.
	d.HandleMotion(&cfg, [axisCount]int32{0, 0, 0, 0, 200, 0})
	if len(dk.switches) != 0 {
		t.Fatalf("expected no switch at threshold, got %v", dk.switches)
	}

	// Just past it: forward.
	d.HandleMotion(&cfg, [axisCount]int32{0, 0, 0, 0, 201, 0})
	if len(dk.switches) != 1 || dk.switches[0] != 1 {
		t.Fatalf("expected one forward switch, got %v", dk.switches)
	}

	// Negative deflection past cooldown: backward.
	clock.advance(time.Second)
	d.HandleMotion(&cfg, [axisCount]int32{0, 0, 0, 0, -300, 0})
	if len(dk.switches) != 2 || dk.switches[1] != -1 {
		t.Errorf("expected backward switch, got %v", dk.switches)
	}
}

// TestDesktopSwitch_Cooldown tests that triggers inside the cooldown window
// are suppressed without resetting the timer
func TestDesktopSwitch_Cooldown(t *testing.T) {
	dk := &mockDesktop{}
	d, clock := newTestDispatcher(nil, dk)
	cfg := baselineConfig() // cooldown 500ms

	deflect := [axisCount]int32{0, 0, 0, 0, 300, 0}

	d.HandleMotion(&cfg, deflect)
	if len(dk.switches) != 1 {
		t.Fatalf("expected first trigger, got %d", len(dk.switches))
	}

	// 400ms later: inside the window, suppressed.
	clock.advance(400 * time.Millisecond)
	d.HandleMotion(&cfg, deflect)
	if len(dk.switches) != 1 {
		t.Fatalf("expected suppression inside cooldown, got %d switches", len(dk.switches))
	}

	// 200ms more: 600ms since the first trigger. If suppression had reset
	// the timer this would still be blocked.
	clock.advance(200 * time.Millisecond)
	d.HandleMotion(&cfg, deflect)
	if len(dk.switches) != 2 {
		t.Errorf("expected second trigger 600ms after the first, got %d switches", len(dk.switches))
	}
}

// TestDesktopSwitch_NilDesktop tests that sustained deflection without a
// desktop backend is a safe no-op
func TestDesktopSwitch_NilDesktop(t *testing.T) {
	d, _ := newTestDispatcher(nil, nil)
	cfg := baselineConfig()

	d.HandleMotion(&cfg, [axisCount]int32{0, 0, 0, 0, 300, 0})
}

// TestHandleButton_PressEdgeOnly tests that only press transitions trigger
// actions
func TestHandleButton_PressEdgeOnly(t *testing.T) {
	dk := &mockDesktop{}
	d, _ := newTestDispatcher(nil, dk)
	cfg := baselineConfig() // button 0 -> overview

	d.HandleButton(&cfg, 0, true)
	d.HandleButton(&cfg, 0, false)
	d.HandleButton(&cfg, 0, true)

	if dk.overviews != 2 {
		t.Errorf("expected 2 overview toggles from 2 presses, got %d", dk.overviews)
	}
}

// TestHandleButton_ShowDesktopToggles tests the alternating show-desktop
// state across presses
func TestHandleButton_ShowDesktopToggles(t *testing.T) {
	dk := &mockDesktop{}
	d, _ := newTestDispatcher(nil, dk)
	cfg := baselineConfig() // button 1 -> show_desktop

	d.HandleButton(&cfg, 1, true)
	d.HandleButton(&cfg, 1, false)
	d.HandleButton(&cfg, 1, true)

	want := []bool{true, false}
	if len(dk.shows) != len(want) {
		t.Fatalf("expected %d show-desktop calls, got %d", len(want), len(dk.shows))
	}
	for i, w := range want {
		if dk.shows[i] != w {
			t.Errorf("show call %d: expected %v, got %v", i, w, dk.shows[i])
		}
	}
}

// TestHandleButton_UnmappedAndOutOfRange tests that unmapped and invalid
// button indices do nothing
func TestHandleButton_UnmappedAndOutOfRange(t *testing.T) {
	dk := &mockDesktop{}
	d, _ := newTestDispatcher(nil, dk)
	cfg := baselineConfig()

	d.HandleButton(&cfg, 5, true)   // unmapped
	d.HandleButton(&cfg, -1, true)  // invalid
	d.HandleButton(&cfg, 999, true) // past maxButtons

	if dk.overviews != 0 || len(dk.shows) != 0 || len(dk.switches) != 0 {
		t.Errorf("expected no desktop calls, got overviews=%d shows=%v switches=%v",
			dk.overviews, dk.shows, dk.switches)
	}
}
