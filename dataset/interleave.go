package dataset

import "io"

// Interleaver round-robins over several iterators, as if each were read by
// its own worker. An exhausted iterator leaves the rotation and its slot is
// taken by the next live one.
type Interleaver struct {
	live  []Iterator
	index int
}

func NewInterleaver(its []Iterator) *Interleaver {
	live := make([]Iterator, len(its))
	copy(live, its)
	return &Interleaver{live: live}
}

// Live returns the number of iterators not yet exhausted.
func (in *Interleaver) Live() int { return len(in.live) }

func (in *Interleaver) Next() (*Example, error) {
	for len(in.live) > 0 {
		in.index %= len(in.live)
		ex, err := in.live[in.index].Next()
		if err == io.EOF {
			in.live = append(in.live[:in.index], in.live[in.index+1:]...)
			continue
		}
		if err != nil {
			return nil, err
		}
		in.index++
		return ex, nil
	}
	return nil, io.EOF
}
