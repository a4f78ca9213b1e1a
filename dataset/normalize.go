package dataset

import (
	"math"

	"orsdata/event"
)

// NormalizedWindow is a window whose time shifts are relative to its start
// and expressed in StepsPerMS units.
type NormalizedWindow struct {
	Frames Frames
	Main   Chart
	Pre    []event.Event
	Guide  *Chart
}

type Normalizer struct {
	StepsPerMS float64
}

// Normalize rewrites every event list of w relative to w.Time. New slices
// are allocated; the shared parsed events are left untouched.
func (n Normalizer) Normalize(w RawWindow) NormalizedWindow {
	out := NormalizedWindow{
		Frames: w.Frames,
		Main:   w.Main,
	}
	out.Main.Events = n.normalize(w.Main.Events, w.Time)
	if w.Pre != nil {
		out.Pre = n.normalize(w.Pre, w.Time)
	}
	if w.Guide != nil {
		g := *w.Guide
		g.Events = n.normalize(g.Events, w.Time)
		out.Guide = &g
	}
	return out
}

func (n Normalizer) normalize(events []event.Event, start float64) []event.Event {
	out := make([]event.Event, len(events))
	for i, e := range events {
		if e.Type == event.TimeShift {
			e.Value = int(math.Round((float64(e.Value) - start) * n.StepsPerMS))
		}
		out[i] = e
	}

	// An anchor shares the time of the shift before it. Scanning backwards,
	// drop the first shift met after each anchor.
	drop := make([]bool, len(out))
	dropNext := false
	dropped := 0
	for i := len(out) - 1; i >= 0; i-- {
		switch {
		case out[i].Type == event.TimeShift && dropNext:
			drop[i] = true
			dropNext = false
			dropped++
		case out[i].Type.IsAnchor():
			dropNext = true
		}
	}
	if dropped == 0 {
		return out
	}
	kept := out[:0]
	for i, e := range out {
		if !drop[i] {
			kept = append(kept, e)
		}
	}
	return kept
}
