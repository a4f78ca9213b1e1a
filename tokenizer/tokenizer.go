package tokenizer

import (
	"math"

	"github.com/pkg/errors"

	"orsdata/event"
)

// Reserved ids at the start of the vocabulary.
const (
	PadID = 0
	SOSID = 1
	EOSID = 2

	numSpecial = 3
)

// EventRange is the inclusive value range an event type may take.
type EventRange struct {
	Type     event.Type
	MinValue int
	MaxValue int
}

// DefaultRanges covers ±5.12s of time shift at 10ms steps and the full osu!
// playfield width for distances. Flag and anchor types take a single value.
var DefaultRanges = []EventRange{
	{event.TimeShift, -512, 512},
	{event.Distance, 0, 640},
	{event.NewCombo, 0, 0},
	{event.Circle, 0, 0},
	{event.Spinner, 0, 0},
	{event.SpinnerEnd, 0, 0},
	{event.SliderHead, 0, 0},
	{event.BezierAnchor, 0, 0},
	{event.PerfectAnchor, 0, 0},
	{event.CatmullAnchor, 0, 0},
	{event.RedAnchor, 0, 0},
	{event.LastAnchor, 0, 0},
	{event.SliderEnd, 0, 0},
}

// Tokenizer maps events, difficulties and style classes to integer ids.
//
// Layout: [PAD SOS EOS][event ranges...][difficulty classes][style classes][DIFF_UNK][STYLE_UNK]
type Tokenizer struct {
	ranges     map[event.Type]EventRange
	start      map[event.Type]int
	end        map[event.Type]int
	order      []event.Type
	diffStart  int
	numDiff    int
	styleStart int
	numClasses int
	diffUnk    int
	styleUnk   int
	vocabSize  int
}

// New builds a tokenizer with numClasses style ids and difficulty classes
// covering [0, maxDifficulty] in steps of 0.1 stars.
func New(numClasses int, maxDifficulty float64) (*Tokenizer, error) {
	return NewWithRanges(DefaultRanges, numClasses, maxDifficulty)
}

func NewWithRanges(ranges []EventRange, numClasses int, maxDifficulty float64) (*Tokenizer, error) {
	if numClasses <= 0 {
		return nil, errors.Errorf("num classes must be positive, got %d", numClasses)
	}
	if maxDifficulty <= 0 {
		return nil, errors.Errorf("max difficulty must be positive, got %v", maxDifficulty)
	}
	t := &Tokenizer{
		ranges: make(map[event.Type]EventRange, len(ranges)),
		start:  make(map[event.Type]int, len(ranges)),
		end:    make(map[event.Type]int, len(ranges)),
	}
	offset := numSpecial
	for _, r := range ranges {
		if r.MaxValue < r.MinValue {
			return nil, errors.Errorf("range for %s is empty", r.Type)
		}
		if _, dup := t.ranges[r.Type]; dup {
			return nil, errors.Errorf("duplicate range for %s", r.Type)
		}
		t.ranges[r.Type] = r
		t.start[r.Type] = offset
		offset += r.MaxValue - r.MinValue + 1
		t.end[r.Type] = offset
		t.order = append(t.order, r.Type)
	}
	t.diffStart = offset
	t.numDiff = int(math.Round(maxDifficulty*10)) + 1
	offset += t.numDiff
	t.styleStart = offset
	t.numClasses = numClasses
	offset += numClasses
	t.diffUnk = offset
	t.styleUnk = offset + 1
	t.vocabSize = offset + 2
	return t, nil
}

// Encode returns the id of e. Values outside the type's range are an error.
func (t *Tokenizer) Encode(e event.Event) (int, error) {
	r, ok := t.ranges[e.Type]
	if !ok {
		return 0, errors.Errorf("unknown event type %s", e.Type)
	}
	if e.Value < r.MinValue || e.Value > r.MaxValue {
		return 0, errors.Errorf("event %s out of range [%d, %d]", e, r.MinValue, r.MaxValue)
	}
	return t.start[e.Type] + e.Value - r.MinValue, nil
}

// Decode inverts Encode for event ids.
func (t *Tokenizer) Decode(id int) (event.Event, error) {
	for _, typ := range t.order {
		if id >= t.start[typ] && id < t.end[typ] {
			return event.Event{Type: typ, Value: id - t.start[typ] + t.ranges[typ].MinValue}, nil
		}
	}
	return event.Event{}, errors.Errorf("id %d is not an event token", id)
}

// EncodeDiff maps a star rating to its difficulty class, clamped to the
// configured range.
func (t *Tokenizer) EncodeDiff(difficulty float64) int {
	idx := int(math.Round(difficulty * 10))
	if idx < 0 {
		idx = 0
	}
	if idx >= t.numDiff {
		idx = t.numDiff - 1
	}
	return t.diffStart + idx
}

func (t *Tokenizer) EncodeStyleIdx(idx int) (int, error) {
	if idx < 0 || idx >= t.numClasses {
		return 0, errors.Errorf("style index %d out of range [0, %d)", idx, t.numClasses)
	}
	return t.styleStart + idx, nil
}

// EventRange returns the half-open id range [start, end) of typ.
func (t *Tokenizer) EventRange(typ event.Type) (int, int) {
	return t.start[typ], t.end[typ]
}

func (t *Tokenizer) SOS() int        { return SOSID }
func (t *Tokenizer) EOS() int        { return EOSID }
func (t *Tokenizer) Pad() int        { return PadID }
func (t *Tokenizer) DiffUnk() int    { return t.diffUnk }
func (t *Tokenizer) StyleUnk() int   { return t.styleUnk }
func (t *Tokenizer) NumClasses() int { return t.numClasses }
func (t *Tokenizer) VocabSize() int  { return t.vocabSize }
