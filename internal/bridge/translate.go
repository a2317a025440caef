package bridge

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ControlValue is a MIDI data byte, always within [0, MaxControlValue].
type ControlValue uint8

const (
	MaxControlValue ControlValue = 127

	// ProportionalFullScale is the raw reading that maps to MaxControlValue
	// under ProportionalScale.
	ProportionalFullScale = 1000.0
)

// Policy selects how a raw field becomes a ControlValue. A Coordinator uses
// exactly one policy for every run.
type Policy int

const (
	// ProportionalScale assumes raw readings in 0..1000. Fields parse as
	// uint16, are scaled by v/1000*127 and truncated, then clamped.
	ProportionalScale Policy = iota

	// DirectClamp assumes raw readings already in 0..127. Fields parse as
	// uint8 and are clamped to 127.
	DirectClamp
)

func (p Policy) String() string {
	switch p {
	case ProportionalScale:
		return "proportional"
	case DirectClamp:
		return "clamp"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy maps a configuration string onto a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "proportional", "scale", "":
		return ProportionalScale, nil
	case "clamp", "direct":
		return DirectClamp, nil
	}
	return 0, fmt.Errorf("unknown scaling policy %q (want proportional or clamp)", s)
}

// Translate converts one raw field. Anything that does not parse as an
// unsigned integer of the policy's width yields 0.
func (p Policy) Translate(field string) ControlValue {
	switch p {
	case DirectClamp:
		v, err := strconv.ParseUint(field, 10, 8)
		if err != nil {
			return 0
		}
		return clamp(float64(v))
	default:
		v, err := strconv.ParseUint(field, 10, 16)
		if err != nil {
			return 0
		}
		return clamp(math.Trunc(float64(v) / ProportionalFullScale * float64(MaxControlValue)))
	}
}

// Value translates field i of rec; a missing field yields 0.
func (p Policy) Value(rec Record, i int) ControlValue {
	field, ok := rec.Field(i)
	if !ok {
		return 0
	}
	return p.Translate(field)
}

func clamp(v float64) ControlValue {
	if v <= 0 {
		return 0
	}
	if v >= float64(MaxControlValue) {
		return MaxControlValue
	}
	return ControlValue(v)
}
