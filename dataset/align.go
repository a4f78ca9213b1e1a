package dataset

import (
	"math"

	"orsdata/event"
)

// Alignment holds, for every frame, the half-open event range [Start[i], End[i])
// that the frame covers.
type Alignment struct {
	Start []int
	End   []int
}

// AlignEvents walks frames and events once. Both frame times and the values
// of TimeShift events must be non-decreasing; this is not checked.
func AlignEvents(frameTimes []float64, events []event.Event) Alignment {
	a := Alignment{
		Start: make([]int, len(frameTimes)),
		End:   make([]int, len(frameTimes)),
	}
	cursor := 0
	tracked := math.Inf(-1)
	for i, t := range frameTimes {
		for tracked < t && cursor < len(events) {
			if events[cursor].Type == event.TimeShift {
				tracked = float64(events[cursor].Value)
			}
			cursor++
		}
		a.Start[i] = max(cursor-1, 0)
	}
	for i := range a.Start {
		if i+1 < len(a.Start) {
			a.End[i] = a.Start[i+1]
		} else {
			a.End[i] = len(events)
		}
	}
	return a
}
