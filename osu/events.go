package osu

import (
	"math"

	"orsdata/event"
)

const maxDistance = 640

var playfieldCenter = Point{256, 192}

// Events flattens a beatmap into a time-ordered event stream. Every hit
// object starts with an absolute TimeShift and the distance from the end
// position of the previous object.
func Events(b *Beatmap) []event.Event {
	out := make([]event.Event, 0, len(b.HitObjects)*5)
	last := playfieldCenter

	shift := func(t int) {
		out = append(out, event.Event{Type: event.TimeShift, Value: t})
	}
	dist := func(from, to Point) {
		out = append(out, event.Event{Type: event.Distance, Value: distance(from, to)})
	}
	emit := func(t event.Type) {
		out = append(out, event.Event{Type: t})
	}

	for _, ho := range b.HitObjects {
		shift(ho.Time)
		switch ho.Kind {
		case KindCircle:
			dist(last, ho.Pos)
			if ho.NewCombo {
				emit(event.NewCombo)
			}
			emit(event.Circle)
			last = ho.Pos

		case KindSpinner:
			dist(last, playfieldCenter)
			if ho.NewCombo {
				emit(event.NewCombo)
			}
			emit(event.Spinner)
			shift(ho.EndTime)
			emit(event.SpinnerEnd)
			last = playfieldCenter

		case KindSlider:
			dist(last, ho.Pos)
			if ho.NewCombo {
				emit(event.NewCombo)
			}
			emit(event.SliderHead)

			prev := ho.Pos
			interior := ho.Points[:len(ho.Points)-1]
			for i := 0; i < len(interior); i++ {
				p := interior[i]
				typ := anchorType(ho.CurveType)
				// A doubled bezier point marks a red anchor.
				if ho.CurveType == 'B' && i+1 < len(ho.Points) && ho.Points[i+1] == p {
					typ = event.RedAnchor
					i++
				}
				shift(ho.Time)
				dist(prev, p)
				emit(typ)
				prev = p
			}

			end := b.SliderEnd(ho)
			tail := ho.Points[len(ho.Points)-1]
			shift(end)
			dist(prev, tail)
			emit(event.LastAnchor)
			emit(event.SliderEnd)
			if ho.Slides%2 == 0 {
				last = ho.Pos
			} else {
				last = tail
			}
		}
	}
	return out
}

func anchorType(curve byte) event.Type {
	switch curve {
	case 'P':
		return event.PerfectAnchor
	case 'C':
		return event.CatmullAnchor
	case 'L':
		return event.RedAnchor
	}
	return event.BezierAnchor
}

func distance(a, b Point) int {
	d := int(math.Round(math.Hypot(a.X-b.X, a.Y-b.Y)))
	if d > maxDistance {
		d = maxDistance
	}
	return d
}

// Parser reads .osu files into event streams.
type Parser struct{}

func (Parser) ParseFile(path string) ([]event.Event, error) {
	b, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Events(b), nil
}
