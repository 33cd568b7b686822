package main

import "math"

// ============================================================================
// Response curve + fractional accumulator
// ============================================================================
//
// applyCurve turns a raw axis reading into a per-event output delta, and
// Accumulator carries the fractional part of those deltas between events so
// the integer emission stream never drifts from the real-valued sum.
//
// Both are pure state-in/state-out; all I/O lives in dispatch.go.
// ============================================================================

// applyCurve maps a raw axis value through a hard deadzone and a power-law
// response curve.
//
//   - |raw| < deadzone           -> exactly 0 (idle device noise)
//   - otherwise                  -> sign(raw) * norm^exponent * scale
//
// where norm is (|raw|-deadzone)/(maxRaw-deadzone) clamped to [0,1].
// exponent 1.0 gives linear response; >1.0 is gentle near the center and
// aggressive toward full deflection.
func applyCurve(raw, deadzone int, exponent, scale float64, maxRaw int) float64 {
	v := float64(raw)
	if math.Abs(v) < float64(deadzone) {
		return 0.0
	}
	sign := 1.0
	if v < 0 {
		sign = -1.0
	}
	norm := (math.Abs(v) - float64(deadzone)) / (float64(maxRaw) - float64(deadzone))
	if norm > 1.0 {
		norm = 1.0
	}
	if norm < 0.0 {
		norm = 0.0
	}
	return sign * math.Pow(norm, exponent) * scale
}

// Accumulator channels. One per output channel that emits integer deltas.
type accChannel int

const (
	chanScrollX accChannel = iota
	chanScrollY
	chanZoom
	accChannelCount
)

// Accumulator converts a stream of real-valued deltas into an integer
// emission stream. Drain truncates toward zero and keeps the fractional
// remainder, so the sum of drained integers always stays within 1 unit of
// the true real-valued sum.
type Accumulator struct {
	acc [accChannelCount]float64
}

func (a *Accumulator) Add(ch accChannel, delta float64) {
	a.acc[ch] += delta
}

// Drain returns the integer part of the channel and retains the fraction.
func (a *Accumulator) Drain(ch accChannel) int {
	v := int(a.acc[ch])
	a.acc[ch] -= float64(v)
	return v
}

// Clear zeroes all channels. Called whenever the active profile (and hence
// its curve parameters) changes; fractional residue computed under one curve
// is not meaningful under another.
func (a *Accumulator) Clear() {
	for i := range a.acc {
		a.acc[i] = 0
	}
}
