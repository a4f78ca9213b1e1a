package dataset

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	beatmapsDir = "beatmaps"
	beatmapExt  = ".osu"
)

// TrackName returns the directory name of track i.
func TrackName(i int) string {
	return fmt.Sprintf("Track%05d", i)
}

// Dataset lists the files of a dataset split and builds iterators over them.
type Dataset struct {
	cfg   Config
	src   Sources
	test  bool
	files []string

	path       string
	start, end int
}

func New(cfg Config, src Sources, test bool) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src.Parser == nil || src.Encoder == nil || src.Audio == nil {
		return nil, errors.New("dataset: parser, encoder and audio loader are required")
	}
	d := &Dataset{cfg: cfg, src: src, test: test}
	if test {
		d.path, d.start, d.end = cfg.TestDatasetPath, cfg.TestDatasetStart, cfg.TestDatasetEnd
	} else {
		d.path, d.start, d.end = cfg.TrainDatasetPath, cfg.TrainDatasetStart, cfg.TrainDatasetEnd
	}
	return d, nil
}

// WithFiles makes the dataset read the given beatmap files instead of
// scanning the track range.
func (d *Dataset) WithFiles(files []string) *Dataset {
	d.files = files
	return d
}

func (d *Dataset) Config() Config { return d.cfg }

// Files lists track directories in per-track mode, beatmap files otherwise.
func (d *Dataset) Files() ([]string, error) {
	if d.cfg.PerTrack {
		return d.trackPaths(), nil
	}
	if d.files != nil {
		return append([]string(nil), d.files...), nil
	}
	var files []string
	for _, track := range d.trackPaths() {
		dir := filepath.Join(track, beatmapsDir)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}
	return files, nil
}

func (d *Dataset) trackPaths() []string {
	var paths []string
	for i := d.start; i < d.end; i++ {
		paths = append(paths, filepath.Join(d.path, TrackName(i)))
	}
	return paths
}

// Shards lists the files of one pass, shuffled unless this is the test split,
// and splits them into k contiguous shards for parallel readers.
func (d *Dataset) Shards(rng *rand.Rand, k int) ([][]string, error) {
	files, err := d.Files()
	if err != nil {
		return nil, err
	}
	if !d.test {
		rng.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })
	}
	return Shard(files, k), nil
}

// Iter starts a fresh pass, read through an Interleaver when CycleLength > 1
// outside the test split.
func (d *Dataset) Iter(rng *rand.Rand) (Iterator, error) {
	k := 1
	if d.cfg.CycleLength > 1 && !d.test {
		k = d.cfg.CycleLength
	}
	shards, err := d.Shards(rng, k)
	if err != nil {
		return nil, err
	}
	if k == 1 {
		return d.NewIterator(shards[0], rng), nil
	}
	its := make([]Iterator, len(shards))
	for i, s := range shards {
		its[i] = d.NewIterator(s, rng)
	}
	return NewInterleaver(its), nil
}

// NewIterator builds a BeatmapIterator over files. Iterators that run on
// different goroutines need their own rng.
func (d *Dataset) NewIterator(files []string, rng *rand.Rand) *BeatmapIterator {
	return NewBeatmapIterator(files, d.cfg, d.src, d.test, rng)
}

// Shard splits files into k contiguous shards of ceil(len/k) files. Trailing
// shards may be empty.
func Shard(files []string, k int) [][]string {
	if k < 1 {
		k = 1
	}
	per := (len(files) + k - 1) / k
	shards := make([][]string, k)
	for i := range shards {
		lo := min(i*per, len(files))
		hi := min((i+1)*per, len(files))
		shards[i] = files[lo:hi:hi]
	}
	return shards
}
