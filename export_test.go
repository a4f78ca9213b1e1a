package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/pkg/errors"

	"orsdata/audio"
	"orsdata/dataset"
	"orsdata/osu"
	"orsdata/tokenizer"
)

const fixtureOsu = "osu file format v14\n" +
	"\n" +
	"[Difficulty]\n" +
	"SliderMultiplier:1.4\n" +
	"\n" +
	"[TimingPoints]\n" +
	"0,500,4,2,0,60,1,0\n" +
	"\n" +
	"[HitObjects]\n" +
	"256,192,100,5,0,0:0:0:0:\n" +
	"300,192,300,1,0,0:0:0:0:\n" +
	"300,100,500,1,0,0:0:0:0:\n" +
	"100,100,700,2,0,L|150:100,1,50\n" +
	"256,192,900,1,0,0:0:0:0:\n"

// writeFixtureTrack writes one second of 16kHz audio, metadata and the given
// beatmaps under root/TrackNNNNN.
func writeFixtureTrack(t *testing.T, root string, idx int, names ...string) {
	t.Helper()
	dir := filepath.Join(root, dataset.TrackName(idx))
	if err := os.MkdirAll(filepath.Join(dir, "beatmaps"), 0755); err != nil {
		t.Fatal(err)
	}

	f, err := os.Create(filepath.Join(dir, "audio.wav"))
	if err != nil {
		t.Fatal(err)
	}
	samples := make([]int, 16000)
	for i := range samples {
		samples[i] = (i*37)%2000 - 1000
	}
	enc := gowav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: 16000, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	meta := dataset.Metadata{Beatmaps: map[string]dataset.BeatmapInfo{}}
	for i, name := range names {
		meta.Beatmaps[name] = dataset.BeatmapInfo{
			StandardStarRating: map[string]float64{"0": 3.5},
			Index:              idx*len(names) + i,
		}
		path := filepath.Join(dir, "beatmaps", name+".osu")
		if err := os.WriteFile(path, []byte(fixtureOsu), 0644); err != nil {
			t.Fatal(err)
		}
	}
	data, _ := json.Marshal(meta)
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func fixtureDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	root := t.TempDir()
	writeFixtureTrack(t, root, 0, "normal", "hard")
	writeFixtureTrack(t, root, 1, "insane")

	cfg := dataset.DefaultConfig()
	cfg.SrcSeqLen = 11
	cfg.TgtSeqLen = 64
	cfg.NumClasses = 10
	cfg.CycleLength = 2
	cfg.TrainDatasetPath = root
	cfg.TrainDatasetEnd = 2

	tok, err := tokenizer.New(cfg.NumClasses, cfg.MaxDifficulty)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := dataset.New(cfg, dataset.Sources{
		Parser:  osu.Parser{},
		Encoder: tok,
		Audio:   audio.NewLoader(4),
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func testStore(t *testing.T) *store {
	t.Helper()
	st, err := openStore(filepath.Join(t.TempDir(), "examples.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testExporter(ds *dataset.Dataset, st *store, seed uint64, limit int) *exporter {
	e := newExporter(ds, st, seed, limit, 0)
	e.out = io.Discard
	return e
}

func digests(t *testing.T, st *store) []string {
	t.Helper()
	rows, err := st.db.Query("SELECT shard, seq, digest FROM examples ORDER BY shard, seq")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var shard, seq int
		var d string
		if err := rows.Scan(&shard, &seq, &d); err != nil {
			t.Fatal(err)
		}
		out = append(out, fmt.Sprintf("%d/%d/%s", shard, seq, d))
	}
	return out
}

func TestExportParallel(t *testing.T) {
	ds := fixtureDataset(t)
	st := testStore(t)
	if err := testExporter(ds, st, 7, 0).runParallel(context.Background(), 2, 2); err != nil {
		t.Fatalf("export: %v", err)
	}
	n, err := st.count(-1)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 || int64(n) != st.examples.Load() {
		t.Fatalf("stored %d rows, counted %d", n, st.examples.Load())
	}
	checked, err := verifyStore(st, ds.Config())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if checked != n {
		t.Fatalf("verified %d of %d rows", checked, n)
	}
	cfg := ds.Config()
	if want := int64(n * 4 * cfg.FrameSeqLen() * cfg.HopLength); st.frameBytes.Load() != want {
		t.Fatalf("frame bytes = %d, want %d", st.frameBytes.Load(), want)
	}

	// Same seed, same rows.
	again := testStore(t)
	if err := testExporter(ds, again, 7, 0).runParallel(context.Background(), 2, 1); err != nil {
		t.Fatalf("second export: %v", err)
	}
	a, b := digests(t, st), digests(t, again)
	if len(a) != len(b) {
		t.Fatalf("rerun stored %d rows, want %d", len(b), len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d differs: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestExportSingleWithLimit(t *testing.T) {
	ds := fixtureDataset(t)
	st := testStore(t)
	if err := testExporter(ds, st, 1, 5).runSingle(context.Background()); err != nil {
		t.Fatalf("export: %v", err)
	}
	n, err := st.count(0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("shard 0 rows = %d, want 5", n)
	}

	// A rerun replaces the shard instead of failing on duplicate keys.
	if err := testExporter(ds, st, 2, 3).runSingle(context.Background()); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if n, _ := st.count(0); n != 3 {
		t.Fatalf("rows after rerun = %d, want 3", n)
	}
}

func TestExportDropsStaleShards(t *testing.T) {
	ds := fixtureDataset(t)
	st := testStore(t)
	if err := testExporter(ds, st, 3, 0).runParallel(context.Background(), 4, 2); err != nil {
		t.Fatalf("export: %v", err)
	}
	for shard := 0; shard < 3; shard++ {
		if n, _ := st.count(shard); n == 0 {
			t.Fatalf("shard %d empty after first export", shard)
		}
	}

	// One file over four shards leaves shards 1 to 3 empty.
	files, err := ds.Files()
	if err != nil {
		t.Fatal(err)
	}
	ds.WithFiles(files[:1])
	if err := testExporter(ds, st, 3, 0).runParallel(context.Background(), 4, 2); err != nil {
		t.Fatalf("smaller export: %v", err)
	}
	all, _ := st.count(-1)
	first, _ := st.count(0)
	if all == 0 || all != first {
		t.Fatalf("rows = %d, shard 0 rows = %d", all, first)
	}

	ds.WithFiles(nil)
	if err := testExporter(ds, st, 3, 0).runParallel(context.Background(), 3, 3); err != nil {
		t.Fatalf("full export: %v", err)
	}
	if err := testExporter(ds, st, 3, 4).runSingle(context.Background()); err != nil {
		t.Fatalf("single export: %v", err)
	}
	if all, _ := st.count(-1); all != 4 {
		t.Fatalf("rows after single export = %d, want 4", all)
	}
	if _, err := verifyStore(st, ds.Config()); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

type failingIter struct{ err error }

func (f failingIter) Next() (*dataset.Example, error) { return nil, f.err }

func TestExportShardStopsOnError(t *testing.T) {
	st := testStore(t)
	e := testExporter(nil, st, 1, 0)
	p := e.newProgress()

	boom := errors.New("decode failed")
	if _, err := e.exportShard(context.Background(), 3, failingIter{boom}, addShardBar(p, "fail:")); err != boom {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.exportShard(ctx, 4, failingIter{io.EOF}, addShardBar(p, "cancelled:")); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	p.Wait()
}

func TestVerifyDetectsCorruption(t *testing.T) {
	ds := fixtureDataset(t)
	st := testStore(t)
	if err := testExporter(ds, st, 1, 2).runSingle(context.Background()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := st.db.Exec("UPDATE examples SET digest = 'x' WHERE seq = 1"); err != nil {
		t.Fatal(err)
	}
	if _, err := verifyStore(st, ds.Config()); err == nil {
		t.Fatalf("corrupt digest not reported")
	}
}

func TestEncodeInts(t *testing.T) {
	in := []int{0, 1, dataset.LabelIgnoreID, 1 << 20}
	got := decodeInts(encodeInts(in))
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("decoded %v, want %v", got, in)
		}
	}
	if digest(encodeInts(in), nil) == digest(encodeInts(in[:3]), nil) {
		t.Fatalf("digest ignores content")
	}
	if len(digest(nil, nil)) != 64 {
		t.Fatalf("digest is not blake2b-256 hex")
	}
}
