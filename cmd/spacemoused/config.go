package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// Profile configuration
// ============================================================================
//
// The profile document is the primary configuration surface. It is written by
// the GUI (or by hand) and read here at startup and on every reload; the
// daemon never writes it.
//
// Two accepted shapes:
//
//   - flat: a single profile object -> one profile named "default"
//   - map:  {"profiles": {"default": {...}, "blender": {...}, ...}}
//
// Inheritance rule: "default" is materialized first (baseline + its own
// overrides); every other profile starts from a copy of the completed default
// config and overlays only the fields its entry specifies.
//
// Error posture (deliberate, matches the reference daemon):
//   - missing/unreadable document   -> single built-in default profile, warn
//   - malformed individual field    -> that field keeps its inherited value
//   - unknown mapping string        -> "none"
// A bad field must never invalidate a whole profile, and a bad profile must
// never take the daemon down.
// ============================================================================

// AxisAction is the effect bound to one of the six axis slots.
type AxisAction int

const (
	AxisNone AxisAction = iota
	AxisScrollH
	AxisScrollV
	AxisZoom
	AxisDesktopSwitch
)

func parseAxisAction(s string) AxisAction {
	switch s {
	case "scroll_h":
		return AxisScrollH
	case "scroll_v":
		return AxisScrollV
	case "zoom":
		return AxisZoom
	case "desktop_switch":
		return AxisDesktopSwitch
	default:
		return AxisNone
	}
}

func (a AxisAction) String() string {
	switch a {
	case AxisScrollH:
		return "scroll_h"
	case AxisScrollV:
		return "scroll_v"
	case AxisZoom:
		return "zoom"
	case AxisDesktopSwitch:
		return "desktop_switch"
	default:
		return "none"
	}
}

// ButtonAction is the effect bound to a device button.
type ButtonAction int

const (
	ButtonNone ButtonAction = iota
	ButtonOverview
	ButtonShowDesktop
)

func parseButtonAction(s string) ButtonAction {
	switch s {
	case "overview":
		return ButtonOverview
	case "show_desktop":
		return ButtonShowDesktop
	default:
		return ButtonNone
	}
}

func (b ButtonAction) String() string {
	switch b {
	case ButtonOverview:
		return "overview"
	case ButtonShowDesktop:
		return "show_desktop"
	default:
		return "none"
	}
}

// Config holds the response/mapping parameters of one profile.
type Config struct {
	Deadzone         int
	ScrollSpeed      float64
	ScrollExponent   float64
	ZoomSpeed        float64
	SwitchThreshold  int
	SwitchCooldownMS int

	// AxisMap is ordered: tx, ty, tz, rx, ry, rz. Position is the axis
	// identity.
	AxisMap [axisCount]AxisAction

	// ButtonMap maps device button index (0..maxButtons-1) to an action.
	ButtonMap map[int]ButtonAction

	InvertScrollX bool
	InvertScrollY bool
	Sensitivity   float64
}

// clone returns a deep copy; ButtonMap must not be shared between profiles.
func (c Config) clone() Config {
	out := c
	out.ButtonMap = make(map[int]ButtonAction, len(c.ButtonMap))
	for k, v := range c.ButtonMap {
		out.ButtonMap[k] = v
	}
	return out
}

// baselineConfig returns the built-in defaults every profile ultimately
// inherits from.
func baselineConfig() Config {
	return Config{
		Deadzone:         defaultDeadzone,
		ScrollSpeed:      defaultScrollSpeed,
		ScrollExponent:   defaultScrollExponent,
		ZoomSpeed:        defaultZoomSpeed,
		SwitchThreshold:  defaultSwitchThreshold,
		SwitchCooldownMS: defaultSwitchCooldown,
		AxisMap: [axisCount]AxisAction{
			AxisScrollH,       // tx
			AxisScrollV,       // ty
			AxisZoom,          // tz
			AxisNone,          // rx
			AxisDesktopSwitch, // ry
			AxisNone,          // rz
		},
		ButtonMap: map[int]ButtonAction{
			0: ButtonOverview,
			1: ButtonShowDesktop,
		},
		Sensitivity: defaultSensitivity,
	}
}

// Profile is a named configuration selectable at runtime. MatchWMClasses is
// carried for external consumers (the GUI's window-class matcher); the daemon
// itself does not interpret it.
type Profile struct {
	Name           string
	MatchWMClasses []string
	Config         Config
}

// ProfileStore is the ordered set of loaded profiles plus the active
// selection. Slot 0 is always "default". The store is rebuilt from scratch on
// every reload and swapped in whole, so the event loop never observes a
// partially-built set.
type ProfileStore struct {
	profiles []Profile
	active   int
}

// Active returns the currently active profile.
func (s *ProfileStore) Active() *Profile {
	return &s.profiles[s.active]
}

// Names returns the ordered profile name list ("default" first).
func (s *ProfileStore) Names() []string {
	names := make([]string, len(s.profiles))
	for i, p := range s.profiles {
		names[i] = p.Name
	}
	return names
}

// Activate selects a profile by case-insensitive name. On success it returns
// the canonical name; on failure the active profile is unchanged.
func (s *ProfileStore) Activate(name string) (string, bool) {
	for i, p := range s.profiles {
		if strings.EqualFold(p.Name, name) {
			s.active = i
			return p.Name, true
		}
	}
	return "", false
}

// defaultStore builds the fallback store used when no document is available.
func defaultStore() *ProfileStore {
	return &ProfileStore{
		profiles: []Profile{{Name: "default", Config: baselineConfig()}},
	}
}

// LoadProfiles reads the profile document at path and builds a fresh store.
// It never fails: unavailable or unparseable documents degrade to the
// built-in default profile with a warning.
func LoadProfiles(path string, logger *slog.Logger) *ProfileStore {
	b, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("profile config not readable, using built-in defaults", "path", path, "error", err)
		return defaultStore()
	}

	var doc map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		logger.Warn("profile config not parseable, using built-in defaults", "path", path, "error", err)
		return defaultStore()
	}

	store := buildStore(doc, logger)
	logger.Info("profiles loaded", "path", path, "count", len(store.profiles), "profiles", store.Names())
	return store
}

// buildStore materializes a ProfileStore from a decoded document.
func buildStore(doc map[string]any, logger *slog.Logger) *ProfileStore {
	profilesRaw, ok := asMap(doc["profiles"])
	if !ok {
		// Flat single-profile form.
		p := Profile{Name: "default", Config: baselineConfig()}
		applyProfileFields(&p, doc, logger)
		return &ProfileStore{profiles: []Profile{p}}
	}

	// Map form: "default" first, then the rest inheriting from it.
	def := Profile{Name: "default", Config: baselineConfig()}
	if raw, ok := asMap(profilesRaw["default"]); ok {
		applyProfileFields(&def, raw, logger)
	}

	names := make([]string, 0, len(profilesRaw))
	for name := range profilesRaw {
		if name != "default" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	profiles := []Profile{def}
	for _, name := range names {
		raw, ok := asMap(profilesRaw[name])
		if !ok {
			logger.Warn("profile entry is not an object, skipping", "profile", name)
			continue
		}
		p := Profile{Name: name, Config: def.Config.clone()}
		applyProfileFields(&p, raw, logger)
		profiles = append(profiles, p)
	}

	return &ProfileStore{profiles: profiles}
}

// applyProfileFields overlays only the fields present in raw onto the
// profile. Each field is coerced independently; a field with the wrong type
// logs a warning and keeps the inherited value.
func applyProfileFields(p *Profile, raw map[string]any, logger *slog.Logger) {
	c := &p.Config

	setInt(raw, "deadzone", &c.Deadzone, p.Name, logger)
	setFloat(raw, "scroll_speed", &c.ScrollSpeed, p.Name, logger)
	setFloat(raw, "scroll_exponent", &c.ScrollExponent, p.Name, logger)
	setFloat(raw, "zoom_speed", &c.ZoomSpeed, p.Name, logger)
	setInt(raw, "desktop_switch_threshold", &c.SwitchThreshold, p.Name, logger)
	setInt(raw, "desktop_switch_cooldown_ms", &c.SwitchCooldownMS, p.Name, logger)
	setBool(raw, "invert_scroll_x", &c.InvertScrollX, p.Name, logger)
	setBool(raw, "invert_scroll_y", &c.InvertScrollY, p.Name, logger)
	setFloat(raw, "sensitivity", &c.Sensitivity, p.Name, logger)

	if amap, ok := asMap(raw["axis_mapping"]); ok {
		axisKeys := [axisCount]string{"tx", "ty", "tz", "rx", "ry", "rz"}
		for i, key := range axisKeys {
			if v, present := amap[key]; present {
				if s, ok := asString(v); ok {
					c.AxisMap[i] = parseAxisAction(s)
				} else {
					logger.Warn("axis mapping value is not a string", "profile", p.Name, "axis", key)
				}
			}
		}
	} else if _, present := raw["axis_mapping"]; present {
		logger.Warn("axis_mapping is not an object, ignoring", "profile", p.Name)
	}

	if bmap, ok := asMap(raw["button_mapping"]); ok {
		for key, v := range bmap {
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= maxButtons {
				logger.Warn("button index out of range, ignoring", "profile", p.Name, "button", key)
				continue
			}
			s, ok := asString(v)
			if !ok {
				logger.Warn("button mapping value is not a string", "profile", p.Name, "button", key)
				continue
			}
			c.ButtonMap[idx] = parseButtonAction(s)
		}
	} else if _, present := raw["button_mapping"]; present {
		logger.Warn("button_mapping is not an object, ignoring", "profile", p.Name)
	}

	if arr, ok := raw["match_wm_class"].([]any); ok {
		for _, v := range arr {
			if s, ok := asString(v); ok {
				p.MatchWMClasses = append(p.MatchWMClasses, s)
			}
		}
	}
}

// ============================================================================
// Lenient value coercion
// ============================================================================
// The document is decoded to untyped maps on purpose: a strict struct decode
// would reject the whole document over one bad field. These helpers coerce
// per field and report presence separately from validity.

func setInt(raw map[string]any, key string, dst *int, profile string, logger *slog.Logger) {
	v, present := raw[key]
	if !present {
		return
	}
	if n, ok := asInt(v); ok {
		*dst = n
		return
	}
	logger.Warn("config field is not a number, keeping inherited value", "profile", profile, "field", key)
}

func setFloat(raw map[string]any, key string, dst *float64, profile string, logger *slog.Logger) {
	v, present := raw[key]
	if !present {
		return
	}
	if f, ok := asFloat(v); ok {
		*dst = f
		return
	}
	logger.Warn("config field is not a number, keeping inherited value", "profile", profile, "field", key)
}

func setBool(raw map[string]any, key string, dst *bool, profile string, logger *slog.Logger) {
	v, present := raw[key]
	if !present {
		return
	}
	if b, ok := v.(bool); ok {
		*dst = b
		return
	}
	logger.Warn("config field is not a boolean, keeping inherited value", "profile", profile, "field", key)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asMap normalizes the two mapping representations yaml.v3 can produce for
// untyped documents (string-keyed and interface-keyed).
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// defaultConfigPath returns the conventional per-user document location.
func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "spacemoused", "config.yaml")
	}
	return "/etc/spacemoused/config.yaml"
}
