package dataset

import (
	"gonum.org/v1/gonum/mat"
)

// Frames is an audio track cut into hop-sized rows. It keeps the decoded
// samples and only widens the rows a caller asks for.
type Frames struct {
	Times []float64 // frame start times in milliseconds
	Hop   int

	samples []float32
	first   int // row of samples that Times[0] refers to
}

func (f Frames) Len() int { return len(f.Times) }

// Slice returns rows [i, j) sharing storage with f.
func (f Frames) Slice(i, j int) Frames {
	return Frames{Times: f.Times[i:j], Hop: f.Hop, samples: f.samples, first: f.first + i}
}

// Matrix returns the rows as a Len() x Hop matrix. Samples past the end of
// the track read as zero. It returns nil when there are no rows.
func (f Frames) Matrix() *mat.Dense {
	n := f.Len()
	if n == 0 {
		return nil
	}
	data := make([]float64, n*f.Hop)
	start := f.first * f.Hop
	for i := range data {
		if start+i >= len(f.samples) {
			break
		}
		data[i] = float64(f.samples[start+i])
	}
	return mat.NewDense(n, f.Hop, data)
}

// Segment views samples as ceil(len/hop) frames, the last one zero-padded.
// Frame i starts at i*hop*1000/sampleRate ms. samples is not copied and must
// not be modified while f is in use.
func Segment(samples []float32, hop, sampleRate int) Frames {
	n := (len(samples) + hop - 1) / hop
	f := Frames{Times: make([]float64, n), Hop: hop, samples: samples}
	msPerFrame := float64(hop) * 1000 / float64(sampleRate)
	for i := range f.Times {
		f.Times[i] = float64(i) * msPerFrame
	}
	return f
}

// AssembleFrames flattens a window's frames into exactly frameSeqLen*hop
// float32 values, zero-padding or truncating rows as needed.
func AssembleFrames(f Frames, frameSeqLen int) []float32 {
	out := make([]float32, frameSeqLen*f.Hop)
	rows := f.Len()
	if rows > frameSeqLen {
		rows = frameSeqLen
	}
	m := f.Slice(0, rows).Matrix()
	for r := 0; r < rows; r++ {
		row := m.RawRowView(r)
		dst := out[r*f.Hop : (r+1)*f.Hop]
		for c, v := range row {
			dst[c] = float32(v)
		}
	}
	return out
}
