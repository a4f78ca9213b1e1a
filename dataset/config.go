package dataset

import "github.com/pkg/errors"

// Config holds the data loading options. JSON names match the option names
// used by training configs.
type Config struct {
	SrcSeqLen       int     `json:"src_seq_len"`
	TgtSeqLen       int     `json:"tgt_seq_len"`
	SampleRate      int     `json:"sample_rate"`
	HopLength       int     `json:"hop_length"`
	SpecialTokenLen int     `json:"special_token_len"`
	StepsPerMS      float64 `json:"steps_per_ms"`

	ClassDropoutProb float64 `json:"class_dropout_prob"`
	DiffDropoutProb  float64 `json:"diff_dropout_prob"`

	AddPreTokens            bool `json:"add_pre_tokens"`
	AddPreTokensAtStep      int  `json:"add_pre_tokens_at_step"`
	MaxPreTokenLen          int  `json:"max_pre_token_len"`
	AddEmptySequences       bool `json:"add_empty_sequences"`
	AddEmptySequencesAtStep int  `json:"add_empty_sequences_at_step"`
	AddGuideContext         bool `json:"add_gd_context"`
	PerTrack                bool `json:"per_track"`
	CycleLength             int  `json:"cycle_length"`
	CenterPadDecoder        bool `json:"center_pad_decoder"`
	DiffTokenIndex          int  `json:"diff_token_index"`
	StyleTokenIndex         int  `json:"style_token_index"`
	TimingRandomOffset      int  `json:"timing_random_offset"`

	NumClasses    int     `json:"num_classes"`
	MaxDifficulty float64 `json:"max_difficulty"`

	TrainDatasetPath  string `json:"train_dataset_path"`
	TrainDatasetStart int    `json:"train_dataset_start"`
	TrainDatasetEnd   int    `json:"train_dataset_end"`
	TestDatasetPath   string `json:"test_dataset_path"`
	TestDatasetStart  int    `json:"test_dataset_start"`
	TestDatasetEnd    int    `json:"test_dataset_end"`
}

// minPreTokenLen is the pre-context budget reserved ahead of main tokens in
// left-aligned packing.
const minPreTokenLen = 4

// LabelIgnoreID marks label positions excluded from the loss.
const LabelIgnoreID = -100

// DefaultConfig returns the options used when a settings file omits them.
func DefaultConfig() Config {
	return Config{
		SrcSeqLen:       512,
		TgtSeqLen:       256,
		SampleRate:      16000,
		HopLength:       128,
		SpecialTokenLen: 2,
		StepsPerMS:      0.1,

		ClassDropoutProb: 0.2,
		DiffDropoutProb:  0.2,

		AddPreTokensAtStep:      -1,
		MaxPreTokenLen:          -1,
		AddEmptySequencesAtStep: -1,
		CycleLength:             64,
		DiffTokenIndex:          0,
		StyleTokenIndex:         1,

		NumClasses:    1000,
		MaxDifficulty: 10,
	}
}

// FrameSeqLen is the number of audio frames per window. N-1 frames make N
// spectrogram frames downstream.
func (c *Config) FrameSeqLen() int { return c.SrcSeqLen - 1 }

// PreTokenLen is the fixed pre-context boundary used by center padding.
func (c *Config) PreTokenLen() int { return c.TgtSeqLen / 2 }

func (c *Config) Validate() error {
	switch {
	case c.SrcSeqLen < 2:
		return errors.Errorf("src_seq_len must be at least 2, got %d", c.SrcSeqLen)
	case c.TgtSeqLen < 1:
		return errors.Errorf("tgt_seq_len must be positive, got %d", c.TgtSeqLen)
	case c.SampleRate <= 0:
		return errors.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	case c.HopLength <= 0:
		return errors.Errorf("hop_length must be positive, got %d", c.HopLength)
	case c.SpecialTokenLen < 0:
		return errors.Errorf("special_token_len must not be negative, got %d", c.SpecialTokenLen)
	case c.StepsPerMS <= 0:
		return errors.Errorf("steps_per_ms must be positive, got %v", c.StepsPerMS)
	case c.DiffTokenIndex >= c.SpecialTokenLen:
		return errors.Errorf("diff_token_index %d outside special_token_len %d", c.DiffTokenIndex, c.SpecialTokenLen)
	case c.StyleTokenIndex >= c.SpecialTokenLen:
		return errors.Errorf("style_token_index %d outside special_token_len %d", c.StyleTokenIndex, c.SpecialTokenLen)
	case c.CenterPadDecoder && c.PreTokenLen() < c.SpecialTokenLen:
		return errors.Errorf("tgt_seq_len %d too short for center padding", c.TgtSeqLen)
	case !c.CenterPadDecoder && c.TgtSeqLen <= c.SpecialTokenLen:
		return errors.Errorf("tgt_seq_len %d leaves no room after %d special tokens", c.TgtSeqLen, c.SpecialTokenLen)
	case c.ClassDropoutProb < 0 || c.ClassDropoutProb > 1:
		return errors.Errorf("class_dropout_prob %v outside [0, 1]", c.ClassDropoutProb)
	case c.DiffDropoutProb < 0 || c.DiffDropoutProb > 1:
		return errors.Errorf("diff_dropout_prob %v outside [0, 1]", c.DiffDropoutProb)
	case c.TimingRandomOffset < 0:
		return errors.Errorf("timing_random_offset must not be negative, got %d", c.TimingRandomOffset)
	}
	return nil
}
