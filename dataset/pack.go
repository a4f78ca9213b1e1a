package dataset

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"orsdata/event"
)

// Encoder maps events and conditioning values to token ids.
type Encoder interface {
	Encode(e event.Event) (int, error)
	EncodeStyleIdx(idx int) (int, error)
	EncodeDiff(difficulty float64) int
	// EventRange returns the half-open id range of an event type.
	EventRange(t event.Type) (start, end int)
	SOS() int
	EOS() int
	Pad() int
	StyleUnk() int
	DiffUnk() int
	NumClasses() int
}

// SideTokens are the per-segment difficulty and style ids.
type SideTokens struct {
	Difficulty int
	Style      int
}

type TokenizedGuide struct {
	Tokens []int
	Side   SideTokens
}

// TokenizedWindow carries token arrays in place of events.
type TokenizedWindow struct {
	Frames     Frames
	Tokens     []int // SOS, events, EOS
	PreTokens  []int
	Side       SideTokens
	BeatmapIdx int // num classes when the class was dropped
	Guide      *TokenizedGuide
}

// PackedTokens is the fixed-size decoder input and label pair.
type PackedTokens struct {
	InputIDs      []int
	AttentionMask []bool
	Labels        []int
}

// Packer tokenizes normalized windows and lays them out in a buffer of
// TgtSeqLen tokens.
type Packer struct {
	cfg *Config
	enc Encoder
	rng *rand.Rand

	classDropoutProb float64
	diffDropoutProb  float64
}

func NewPacker(cfg *Config, enc Encoder, rng *rand.Rand, classDropoutProb, diffDropoutProb float64) *Packer {
	return &Packer{
		cfg:              cfg,
		enc:              enc,
		rng:              rng,
		classDropoutProb: classDropoutProb,
		diffDropoutProb:  diffDropoutProb,
	}
}

func (p *Packer) encodeAll(events []event.Event, dst []int) error {
	for i, e := range events {
		id, err := p.enc.Encode(e)
		if err != nil {
			return err
		}
		dst[i] = id
	}
	return nil
}

// sideTokens draws class and difficulty dropout once for a segment.
func (p *Packer) sideTokens(beatmapIdx int, difficulty float64) (SideTokens, bool, error) {
	var side SideTokens
	classDropped := p.rng.Float64() < p.classDropoutProb
	if classDropped {
		side.Style = p.enc.StyleUnk()
	} else {
		id, err := p.enc.EncodeStyleIdx(beatmapIdx)
		if err != nil {
			return side, false, err
		}
		side.Style = id
	}
	if p.rng.Float64() < p.diffDropoutProb {
		side.Difficulty = p.enc.DiffUnk()
	} else {
		side.Difficulty = p.enc.EncodeDiff(difficulty)
	}
	return side, classDropped, nil
}

// Tokenize encodes every event list of w. The main list is wrapped in SOS
// and EOS; pre-context and guide lists are not.
func (p *Packer) Tokenize(w NormalizedWindow) (TokenizedWindow, error) {
	out := TokenizedWindow{Frames: w.Frames}

	out.Tokens = make([]int, len(w.Main.Events)+2)
	out.Tokens[0] = p.enc.SOS()
	if err := p.encodeAll(w.Main.Events, out.Tokens[1:]); err != nil {
		return out, errors.Wrap(err, "encode events")
	}
	out.Tokens[len(out.Tokens)-1] = p.enc.EOS()

	if w.Pre != nil {
		out.PreTokens = make([]int, len(w.Pre))
		if err := p.encodeAll(w.Pre, out.PreTokens); err != nil {
			return out, errors.Wrap(err, "encode pre events")
		}
	}

	side, dropped, err := p.sideTokens(w.Main.BeatmapIdx, w.Main.Difficulty)
	if err != nil {
		return out, err
	}
	out.Side = side
	out.BeatmapIdx = w.Main.BeatmapIdx
	if dropped {
		out.BeatmapIdx = p.enc.NumClasses()
	}

	if w.Guide != nil {
		g := &TokenizedGuide{Tokens: make([]int, len(w.Guide.Events))}
		if err := p.encodeAll(w.Guide.Events, g.Tokens); err != nil {
			return out, errors.Wrap(err, "encode guide events")
		}
		if g.Side, _, err = p.sideTokens(w.Guide.BeatmapIdx, w.Guide.Difficulty); err != nil {
			return out, err
		}
		out.Guide = g
	}
	return out, nil
}

// Layout is the slot budget chosen for one window: N main tokens, M
// pre-context tokens and O guide slots (side tokens included), with the
// guide segment starting at Start.
type Layout struct {
	N, M, O int
	Start   int
}

// Layout computes the budget split. numPre and numOther are the available
// pre-context tokens and guide slots.
func (p *Packer) Layout(numTokens, numPre, numOther int) Layout {
	stl := p.cfg.SpecialTokenLen
	tgt := p.cfg.TgtSeqLen
	var l Layout
	if p.cfg.CenterPadDecoder {
		pl := p.cfg.PreTokenLen()
		l.N = min(tgt-pl, numTokens-1)
		l.M = min(pl-stl, numPre)
		l.O = min(pl-l.M-stl, numOther)
		l.Start = pl - l.M - stl - l.O
	} else {
		// n + m + stl + o + padding = tgt
		l.N = max(min(tgt-stl-min(minPreTokenLen, numPre), numTokens-1), 0)
		l.M = min(tgt-l.N-stl, numPre)
		l.O = min(tgt-l.N-stl-l.M, numOther)
	}
	return l
}

// Pack builds decoder inputs and labels:
//
//	[guide side tokens, guide tokens][side tokens][pre tokens][main tokens][pad]
//
// Labels are the main tokens shifted by one; every other position is
// LabelIgnoreID. Timing jitter, when enabled, only touches the inputs.
func (p *Packer) Pack(w TokenizedWindow, addPreTokens bool) PackedTokens {
	stl := p.cfg.SpecialTokenLen
	tgt := p.cfg.TgtSeqLen
	diffIdx := p.cfg.DiffTokenIndex
	styleIdx := p.cfg.StyleTokenIndex

	numPre := 0
	if addPreTokens {
		numPre = len(w.PreTokens)
	}
	if p.cfg.MaxPreTokenLen > 0 {
		numPre = min(numPre, p.cfg.MaxPreTokenLen)
	}
	numOther := 0
	if w.Guide != nil {
		numOther = len(w.Guide.Tokens) + stl
	}

	input := make([]int, tgt)
	labels := make([]int, tgt)
	for i := range input {
		input[i] = p.enc.Pad()
		labels[i] = LabelIgnoreID
	}

	l := p.Layout(len(w.Tokens), numPre, numOther)
	start := l.Start

	if l.O > 0 {
		if diffIdx >= 0 && diffIdx < l.O {
			input[start+diffIdx] = w.Guide.Side.Difficulty
		}
		if styleIdx >= 0 && styleIdx < l.O {
			input[start+styleIdx] = w.Guide.Side.Style
		}
		if l.O > stl {
			copy(input[start+stl:start+l.O], w.Guide.Tokens[:l.O-stl])
		}
	}
	start += l.O

	if diffIdx >= 0 {
		input[start+diffIdx] = w.Side.Difficulty
	}
	if styleIdx >= 0 {
		input[start+styleIdx] = w.Side.Style
	}
	if l.M > 0 {
		copy(input[start+stl:start+stl+l.M], w.PreTokens[len(w.PreTokens)-l.M:])
	}
	mainStart := start + stl + l.M
	copy(input[mainStart:mainStart+l.N], w.Tokens[:l.N])
	copy(labels[mainStart:mainStart+l.N], w.Tokens[1:l.N+1])

	if p.cfg.TimingRandomOffset > 0 {
		p.jitterTimeShifts(input)
	}

	mask := make([]bool, tgt)
	for i, id := range input {
		mask[i] = id != p.enc.Pad()
	}
	return PackedTokens{InputIDs: input, AttentionMask: mask, Labels: labels}
}

// jitterTimeShifts adds one random offset to every time shift id, clamped
// to the time shift range.
func (p *Packer) jitterTimeShifts(input []int) {
	r := p.cfg.TimingRandomOffset
	offset := p.rng.IntN(2*r+1) - r
	lo, hi := p.enc.EventRange(event.TimeShift)
	for i, id := range input {
		if id >= lo && id < hi {
			input[i] = min(max(id+offset, lo), hi-1)
		}
	}
}
