package event

import "fmt"

// Type identifies the kind of a beatmap event.
type Type int

const (
	TimeShift Type = iota
	Distance
	NewCombo
	Circle
	Spinner
	SpinnerEnd
	SliderHead
	BezierAnchor
	PerfectAnchor
	CatmullAnchor
	RedAnchor
	LastAnchor
	SliderEnd

	numTypes
)

var typeNames = [numTypes]string{
	"TIME_SHIFT",
	"DISTANCE",
	"NEW_COMBO",
	"CIRCLE",
	"SPINNER",
	"SPINNER_END",
	"SLIDER_HEAD",
	"BEZIER_ANCHOR",
	"PERFECT_ANCHOR",
	"CATMULL_ANCHOR",
	"RED_ANCHOR",
	"LAST_ANCHOR",
	"SLIDER_END",
}

// Types lists every event type in id order.
func Types() []Type {
	out := make([]Type, numTypes)
	for i := range out {
		out[i] = Type(i)
	}
	return out
}

func (t Type) String() string {
	if t < 0 || t >= numTypes {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// IsAnchor reports whether t is a curve control point. LastAnchor is not
// included: it carries its own end-of-slider time shift.
func (t Type) IsAnchor() bool {
	switch t {
	case BezierAnchor, PerfectAnchor, CatmullAnchor, RedAnchor:
		return true
	}
	return false
}

// Event is one symbolic token of a beatmap. For TimeShift the value is an
// absolute time in milliseconds until a window normalizes it.
type Event struct {
	Type  Type
	Value int
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%d)", e.Type, e.Value)
}
