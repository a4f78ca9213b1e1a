package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

func writeWAV(t *testing.T, path string, rate int, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := gowav.NewEncoder(f, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: rate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func TestLoadWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.wav")
	samples := make([]int, 1600)
	for i := range samples {
		samples[i] = int(16384 * math.Sin(float64(i)/10))
	}
	writeWAV(t, path, 16000, samples)

	l := NewLoader(2)
	got, err := l.Load(path, 16000)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(samples) {
		t.Fatalf("len = %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		want := float32(samples[i]) / 32768
		if d := got[i] - want; d > 1e-3 || d < -1e-3 {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want)
		}
	}

	again, err := l.Load(path, 16000)
	if err != nil {
		t.Fatalf("cached Load: %v", err)
	}
	if &again[0] != &got[0] {
		t.Fatalf("expected cached slice")
	}
}

func TestLoaderEvicts(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(1)
	var paths []string
	for _, name := range []string{"a.wav", "b.wav"} {
		p := filepath.Join(dir, name)
		writeWAV(t, p, 8000, make([]int, 80))
		paths = append(paths, p)
		if _, err := l.Load(p, 8000); err != nil {
			t.Fatalf("Load %s: %v", name, err)
		}
	}
	if len(l.cache) != 1 {
		t.Fatalf("cache size = %d", len(l.cache))
	}
	if _, ok := l.cache[cacheKey{paths[1], 8000}]; !ok {
		t.Fatalf("most recent track not cached")
	}
}

func TestDecodeUnsupported(t *testing.T) {
	if _, err := Decode(nil, ".flac", 16000); err == nil {
		t.Fatalf("expected error for flac")
	}
}

func TestStereoDownmix(t *testing.T) {
	// L=16384, R=-16384 cancels; L=R=-32768 is full scale.
	pcm := []byte{0x00, 0x40, 0x00, 0xC0, 0x00, 0x80, 0x00, 0x80}
	got := stereoS16ToMono(pcm)
	if len(got) != 2 || got[0] != 0 || got[1] != -1 {
		t.Fatalf("got %v", got)
	}
}
