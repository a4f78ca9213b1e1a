package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
)

const metadataFile = "metadata.json"

// BeatmapInfo is one entry of a track's metadata.json.
type BeatmapInfo struct {
	StandardStarRating map[string]float64 `json:"StandardStarRating"`
	Index              int                `json:"Index"`
}

// Difficulty returns the nomod star rating.
func (b BeatmapInfo) Difficulty() float64 {
	return b.StandardStarRating["0"]
}

type Metadata struct {
	Beatmaps map[string]BeatmapInfo `json:"Beatmaps"`
}

// Names returns the beatmap names in sorted order.
func (m *Metadata) Names() []string {
	names := make([]string, 0, len(m.Beatmaps))
	for name := range m.Beatmaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Metadata) Lookup(name string) (BeatmapInfo, error) {
	info, ok := m.Beatmaps[name]
	if !ok {
		return BeatmapInfo{}, errors.Errorf("beatmap %q missing from metadata", name)
	}
	return info, nil
}

// LoadMetadata reads trackDir/metadata.json.
func LoadMetadata(trackDir string) (*Metadata, error) {
	path := filepath.Join(trackDir, metadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if m.Beatmaps == nil {
		return nil, errors.Errorf("%s: no Beatmaps object", path)
	}
	for name, info := range m.Beatmaps {
		if _, ok := info.StandardStarRating["0"]; !ok {
			return nil, errors.Errorf("%s: beatmap %q has no nomod star rating", path, name)
		}
	}
	return &m, nil
}

// FindAudioFile returns the first file in trackDir named audio.* (any case).
func FindAudioFile(trackDir string) (string, error) {
	entries, err := os.ReadDir(trackDir)
	if err != nil {
		return "", err
	}
	fold := cases.Fold()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(fold.String(e.Name()), "audio.") {
			return filepath.Join(trackDir, e.Name()), nil
		}
	}
	return "", errors.Errorf("no audio file in %s", trackDir)
}
