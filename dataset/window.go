package dataset

import (
	"math/rand/v2"

	"orsdata/event"
)

// Chart is one beatmap's events with the labels used for conditioning.
type Chart struct {
	Events     []event.Event
	BeatmapIdx int
	Difficulty float64
}

// RawWindow is one fixed-length slice of a beatmap timeline before its
// times are made relative. Events slices share storage with the parsed
// beatmap and must not be written.
type RawWindow struct {
	Time   float64 // start time of the first frame in ms
	Frames Frames
	Main   Chart
	Pre    []event.Event // nil unless pre-context is attached
	Guide  *Chart
}

// Windower splits an aligned timeline into windows of FrameSeqLen frames.
type Windower struct {
	FrameSeqLen int
	WithPre     bool
}

// RandomOffset draws the first window start from [0, FrameSeqLen].
func (w Windower) RandomOffset(rng *rand.Rand) int {
	return rng.IntN(w.FrameSeqLen + 1)
}

// Split cuts frames into consecutive windows starting at offset. The final
// window may be shorter than FrameSeqLen. The guide chart, when present, is
// aligned against the same frames independently of the main chart.
func (w Windower) Split(frames Frames, main Chart, guide *Chart, offset int) []RawWindow {
	n := frames.Len()
	if n == 0 || offset >= n {
		return nil
	}
	mainAlign := AlignEvents(frames.Times, main.Events)
	var guideAlign Alignment
	if guide != nil {
		guideAlign = AlignEvents(frames.Times, guide.Events)
	}

	windows := make([]RawWindow, 0, (n-offset)/w.FrameSeqLen+1)
	for fs := offset; fs < n; fs += w.FrameSeqLen {
		fe := min(fs+w.FrameSeqLen, n)

		start := mainAlign.Start[fs]
		end := mainAlign.End[fe-1]

		rw := RawWindow{
			Time:   frames.Times[fs],
			Frames: frames.Slice(fs, fe),
			Main: Chart{
				Events:     main.Events[start:end],
				BeatmapIdx: main.BeatmapIdx,
				Difficulty: main.Difficulty,
			},
		}

		if w.WithPre {
			pre := mainAlign.Start[max(fs-w.FrameSeqLen, 0)]
			rw.Pre = main.Events[pre:start:start]
		}

		if guide != nil {
			gs := guideAlign.Start[fs]
			ge := guideAlign.End[fe-1]
			rw.Guide = &Chart{
				Events:     guide.Events[gs:ge],
				BeatmapIdx: guide.BeatmapIdx,
				Difficulty: guide.Difficulty,
			}
		}
		windows = append(windows, rw)
	}
	return windows
}
