package dataset

import (
	"math/rand/v2"
	"path/filepath"
	"testing"

	"orsdata/event"
)

func TestShard(t *testing.T) {
	files := []string{"a", "b", "c", "d", "e", "f", "g"}
	cases := []struct {
		files []string
		k     int
		sizes []int
	}{
		{files, 3, []int{3, 3, 1}},
		{files, 1, []int{7}},
		{files[:2], 4, []int{1, 1, 0, 0}},
		{nil, 2, []int{0, 0}},
	}
	for _, tc := range cases {
		shards := Shard(tc.files, tc.k)
		if len(shards) != len(tc.sizes) {
			t.Fatalf("Shard(%d, %d) = %d shards", len(tc.files), tc.k, len(shards))
		}
		var joined []string
		for i, s := range shards {
			if len(s) != tc.sizes[i] {
				t.Fatalf("Shard(%d, %d)[%d] has %d files, want %d", len(tc.files), tc.k, i, len(s), tc.sizes[i])
			}
			joined = append(joined, s...)
		}
		for i := range joined {
			if joined[i] != tc.files[i] {
				t.Fatalf("shards reorder files: %v", joined)
			}
		}
	}
}

func TestNewRequiresSources(t *testing.T) {
	if _, err := New(iterConfig(), Sources{}, false); err == nil {
		t.Fatalf("missing sources accepted")
	}
	bad := iterConfig()
	bad.SrcSeqLen = 1
	src, _ := testSources(t, iterConfig(), &fakeParser{})
	if _, err := New(bad, src, false); err == nil {
		t.Fatalf("invalid config accepted")
	}
}

func TestDatasetFiles(t *testing.T) {
	root := t.TempDir()
	writeTrack(t, root, 0, "a", "b")
	writeTrack(t, root, 1, "c")
	writeTrack(t, root, 2, "d")

	cfg := iterConfig()
	cfg.TrainDatasetPath = root
	cfg.TrainDatasetStart, cfg.TrainDatasetEnd = 0, 2
	src, _ := testSources(t, cfg, &fakeParser{})

	d, err := New(cfg, src, false)
	if err != nil {
		t.Fatal(err)
	}
	files, err := d.Files()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(root, "Track00000", "beatmaps", "a.osu"),
		filepath.Join(root, "Track00000", "beatmaps", "b.osu"),
		filepath.Join(root, "Track00001", "beatmaps", "c.osu"),
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v", files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("files = %v, want %v", files, want)
		}
	}

	cfg.PerTrack = true
	d, _ = New(cfg, src, false)
	tracks, _ := d.Files()
	if len(tracks) != 2 || tracks[1] != filepath.Join(root, "Track00001") {
		t.Fatalf("tracks = %v", tracks)
	}

	cfg.PerTrack = false
	cfg.TestDatasetPath = root
	cfg.TestDatasetStart, cfg.TestDatasetEnd = 2, 3
	d, _ = New(cfg, src, true)
	files, _ = d.Files()
	if len(files) != 1 || filepath.Base(files[0]) != "d.osu" {
		t.Fatalf("test files = %v", files)
	}

	d.WithFiles([]string{"x.osu"})
	if files, _ = d.Files(); len(files) != 1 || files[0] != "x.osu" {
		t.Fatalf("override files = %v", files)
	}
}

func TestDatasetMissingTrack(t *testing.T) {
	cfg := iterConfig()
	cfg.TrainDatasetPath = t.TempDir()
	cfg.TrainDatasetEnd = 1
	src, _ := testSources(t, cfg, &fakeParser{})
	d, err := New(cfg, src, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Files(); err == nil {
		t.Fatalf("missing track directory accepted")
	}
}

func TestDatasetIter(t *testing.T) {
	root := t.TempDir()
	events := map[string][]event.Event{}
	for i, name := range []string{"a", "b", "c", "d"} {
		writeTrack(t, root, i, name)
		events[name] = everyMS(40, 800)
	}
	cfg := iterConfig()
	cfg.TrainDatasetPath, cfg.TrainDatasetEnd = root, 4
	cfg.TestDatasetPath, cfg.TestDatasetEnd = root, 4
	cfg.CycleLength = 3
	src, _ := testSources(t, cfg, &fakeParser{events: events})

	train, err := New(cfg, src, false)
	if err != nil {
		t.Fatal(err)
	}
	it, err := train.Iter(rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatal(err)
	}
	in, ok := it.(*Interleaver)
	if !ok {
		t.Fatalf("train iterator is %T", it)
	}
	if in.Live() != 3 {
		t.Fatalf("live = %d", in.Live())
	}
	trainCount := len(collect(t, it))

	test, err := New(cfg, src, true)
	if err != nil {
		t.Fatal(err)
	}
	it, err = test.Iter(rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := it.(*BeatmapIterator); !ok {
		t.Fatalf("test iterator is %T", it)
	}
	testCount := len(collect(t, it))
	if trainCount < 4*9 || testCount < 4*9 {
		t.Fatalf("train = %d, test = %d examples", trainCount, testCount)
	}
}

func TestDatasetShards(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		writeTrack(t, root, i, "m")
	}
	cfg := iterConfig()
	cfg.TrainDatasetPath, cfg.TrainDatasetEnd = root, 5
	cfg.TestDatasetPath, cfg.TestDatasetEnd = root, 5
	src, _ := testSources(t, cfg, &fakeParser{})

	test, _ := New(cfg, src, true)
	ordered, _ := test.Files()
	shards, err := test.Shards(rand.New(rand.NewPCG(1, 1)), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(shards) != 2 || len(shards[0]) != 3 || shards[0][0] != ordered[0] || shards[1][1] != ordered[4] {
		t.Fatalf("test shards = %v", shards)
	}

	train, _ := New(cfg, src, false)
	a, _ := train.Shards(rand.New(rand.NewPCG(4, 4)), 2)
	b, _ := train.Shards(rand.New(rand.NewPCG(4, 4)), 2)
	seen := map[string]bool{}
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("same seed gave different shards")
			}
			seen[a[i][j]] = true
		}
	}
	if len(seen) != 5 {
		t.Fatalf("shards cover %d files", len(seen))
	}
}
