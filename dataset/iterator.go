package dataset

import (
	"io"
	"log"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"orsdata/event"
)

// Example is one emitted training pair.
type Example struct {
	Frames               []float32
	DecoderInputIDs      []int
	DecoderAttentionMask []bool
	Labels               []int
	BeatmapIdx           int
}

// Iterator yields examples until it returns io.EOF.
type Iterator interface {
	Next() (*Example, error)
}

// Parser turns a beatmap file into a time-ordered event stream.
type Parser interface {
	ParseFile(path string) ([]event.Event, error)
}

// AudioLoader decodes an audio file to mono samples at sampleRate.
type AudioLoader interface {
	Load(path string, sampleRate int) ([]float32, error)
}

// StepSource reports the current training step. *atomic.Int64 satisfies it.
type StepSource interface {
	Load() int64
}

// Sources bundles the collaborators an iterator reads from. Step may be nil.
type Sources struct {
	Parser  Parser
	Encoder Encoder
	Audio   AudioLoader
	Step    StepSource
}

// BeatmapIterator drives the pipeline over a list of beatmap files, or of
// track directories when PerTrack is set. It pulls one window at a time and
// loads the next beatmap or track only when the current one is used up.
type BeatmapIterator struct {
	cfg   Config
	src   Sources
	rng   *rand.Rand
	files []string
	next  int
	err   error

	addPreTokens      bool
	addEmptySequences bool

	windower   Windower
	normalizer Normalizer
	packer     *Packer

	// current track
	meta    *Metadata
	frames  Frames
	pending []string
	windows []RawWindow
}

func NewBeatmapIterator(files []string, cfg Config, src Sources, test bool, rng *rand.Rand) *BeatmapIterator {
	classDropout, diffDropout := cfg.ClassDropoutProb, cfg.DiffDropoutProb
	if test {
		classDropout, diffDropout = 1, 0
	}
	it := &BeatmapIterator{
		cfg:               cfg,
		src:               src,
		rng:               rng,
		files:             files,
		addPreTokens:      cfg.AddPreTokens,
		addEmptySequences: cfg.AddEmptySequences,
		windower: Windower{
			FrameSeqLen: cfg.FrameSeqLen(),
			WithPre:     cfg.AddPreTokens || cfg.AddPreTokensAtStep >= 0,
		},
		normalizer: Normalizer{StepsPerMS: cfg.StepsPerMS},
	}
	it.packer = NewPacker(&it.cfg, src.Encoder, rng, classDropout, diffDropout)
	return it
}

// Next returns the next example or io.EOF once every file is consumed. Any
// other error is final: later calls return it again.
func (it *BeatmapIterator) Next() (*Example, error) {
	if it.err != nil {
		return nil, it.err
	}
	ex, err := it.advance()
	if err != nil {
		it.err = err
		return nil, err
	}
	return ex, nil
}

func (it *BeatmapIterator) advance() (*Example, error) {
	for {
		for len(it.windows) > 0 {
			w := it.windows[0]
			it.windows = it.windows[1:]
			ex, err := it.process(w)
			if err != nil {
				return nil, err
			}
			if ex != nil {
				return ex, nil
			}
		}
		if len(it.pending) > 0 {
			path := it.pending[0]
			it.pending = it.pending[1:]
			if err := it.loadBeatmap(path); err != nil {
				return nil, err
			}
			continue
		}
		if it.next >= len(it.files) {
			it.meta, it.frames = nil, Frames{}
			return nil, io.EOF
		}
		f := it.files[it.next]
		it.next++
		if err := it.loadTrack(f); err != nil {
			return nil, err
		}
	}
}

func (it *BeatmapIterator) loadTrack(file string) error {
	trackDir := file
	if !it.cfg.PerTrack {
		trackDir = filepath.Dir(filepath.Dir(file))
	}
	meta, err := LoadMetadata(trackDir)
	if err != nil {
		return err
	}
	if it.cfg.AddGuideContext && len(meta.Beatmaps) <= 1 {
		log.Printf("skipping %s: no guide beatmap available", trackDir)
		return nil
	}

	audioPath, err := FindAudioFile(trackDir)
	if err != nil {
		return err
	}
	samples, err := it.src.Audio.Load(audioPath, it.cfg.SampleRate)
	if err != nil {
		return errors.Wrapf(err, "load audio %s", audioPath)
	}

	it.meta = meta
	it.frames = Segment(samples, it.cfg.HopLength, it.cfg.SampleRate)
	if it.cfg.PerTrack {
		it.pending = it.pending[:0]
		for _, name := range meta.Names() {
			it.pending = append(it.pending, filepath.Join(trackDir, beatmapsDir, name+beatmapExt))
		}
	} else {
		it.pending = append(it.pending[:0], file)
	}
	return nil
}

func (it *BeatmapIterator) loadBeatmap(path string) error {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var guide *Chart
	if it.cfg.AddGuideContext {
		var others []string
		for _, n := range it.meta.Names() {
			if n != name {
				others = append(others, n)
			}
		}
		if len(others) == 0 {
			return errors.Errorf("%s: no guide beatmap available", path)
		}
		otherName := others[it.rng.IntN(len(others))]
		otherPath := filepath.Join(filepath.Dir(path), otherName+beatmapExt)
		otherEvents, err := it.src.Parser.ParseFile(otherPath)
		if err != nil {
			return errors.Wrapf(err, "parse guide %s", otherPath)
		}
		info, err := it.meta.Lookup(otherName)
		if err != nil {
			return err
		}
		guide = &Chart{Events: otherEvents, BeatmapIdx: info.Index, Difficulty: info.Difficulty()}
	}

	events, err := it.src.Parser.ParseFile(path)
	if err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	info, err := it.meta.Lookup(name)
	if err != nil {
		return err
	}
	main := Chart{Events: events, BeatmapIdx: info.Index, Difficulty: info.Difficulty()}
	it.windows = it.windower.Split(it.frames, main, guide, it.windower.RandomOffset(it.rng))
	return nil
}

// maybeChangeDataset applies curriculum switches. Once on, a switch stays on.
func (it *BeatmapIterator) maybeChangeDataset() {
	if it.src.Step == nil {
		return
	}
	step := it.src.Step.Load()
	if at := int64(it.cfg.AddEmptySequencesAtStep); at >= 0 && at <= step {
		it.addEmptySequences = true
	}
	if at := int64(it.cfg.AddPreTokensAtStep); at >= 0 && at <= step {
		it.addPreTokens = true
	}
}

// process turns a window into an example, or returns nil when the window is
// filtered out.
func (it *BeatmapIterator) process(w RawWindow) (*Example, error) {
	it.maybeChangeDataset()
	nw := it.normalizer.Normalize(w)
	tw, err := it.packer.Tokenize(nw)
	if err != nil {
		return nil, err
	}
	frames := AssembleFrames(tw.Frames, it.cfg.FrameSeqLen())
	packed := it.packer.Pack(tw, it.addPreTokens)
	if !it.addEmptySequences && it.isEmpty(packed.Labels) {
		return nil, nil
	}
	return &Example{
		Frames:               frames,
		DecoderInputIDs:      packed.InputIDs,
		DecoderAttentionMask: packed.AttentionMask,
		Labels:               packed.Labels,
		BeatmapIdx:           tw.BeatmapIdx,
	}, nil
}

// isEmpty reports whether labels hold no event token.
func (it *BeatmapIterator) isEmpty(labels []int) bool {
	pad, eos := it.src.Encoder.Pad(), it.src.Encoder.EOS()
	for _, id := range labels {
		if id != LabelIgnoreID && id != pad && id != eos {
			return false
		}
	}
	return true
}
