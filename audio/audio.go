package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/pkg/errors"
)

type cacheKey struct {
	path string
	rate int
}

// Loader decodes audio files to mono float32 samples and keeps the most
// recently used tracks. Returned slices are shared and must not be modified.
type Loader struct {
	mu        sync.Mutex
	cache     map[cacheKey][]float32
	order     []cacheKey
	maxCached int
}

// NewLoader returns a loader that keeps up to maxCached decoded tracks.
// A value <= 0 disables caching.
func NewLoader(maxCached int) *Loader {
	return &Loader{cache: make(map[cacheKey][]float32), maxCached: maxCached}
}

// Load decodes the file at path resampled to sampleRate.
func (l *Loader) Load(path string, sampleRate int) ([]float32, error) {
	key := cacheKey{path, sampleRate}
	l.mu.Lock()
	if s, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return s, nil
	}
	l.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	samples, err := Decode(bytes.NewReader(data), filepath.Ext(path), sampleRate)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if l.maxCached <= 0 {
		return samples, nil
	}

	l.mu.Lock()
	if _, ok := l.cache[key]; !ok {
		l.cache[key] = samples
		l.order = append(l.order, key)
		for len(l.order) > l.maxCached {
			delete(l.cache, l.order[0])
			l.order = l.order[1:]
		}
	}
	l.mu.Unlock()
	return samples, nil
}

// ClearCache discards all decoded tracks.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.cache = make(map[cacheKey][]float32)
	l.order = nil
	l.mu.Unlock()
}

// Decode reads an mp3, ogg or wav stream chosen by ext and returns mono
// samples in [-1, 1) at sampleRate.
func Decode(r io.Reader, ext string, sampleRate int) ([]float32, error) {
	var (
		stream io.Reader
		err    error
	)
	switch strings.ToLower(ext) {
	case ".mp3":
		stream, err = mp3.DecodeWithSampleRate(sampleRate, r)
	case ".ogg":
		stream, err = vorbis.DecodeWithSampleRate(sampleRate, r)
	case ".wav":
		stream, err = wav.DecodeWithSampleRate(sampleRate, r)
	default:
		return nil, errors.Errorf("unsupported audio format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(stream)
	if err != nil {
		return nil, err
	}
	return stereoS16ToMono(pcm), nil
}

// stereoS16ToMono downmixes interleaved 16-bit little endian stereo.
func stereoS16ToMono(pcm []byte) []float32 {
	n := len(pcm) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		l := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		r := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		out[i] = (float32(l) + float32(r)) / 2 / 32768
	}
	return out
}
