package main

import (
	"encoding/json"
	"os"

	"orsdata/dataset"
)

const SETTINGS_VERSION = 1

// settings is the on-disk run configuration: the dataset options plus the
// exporter's own knobs.
type settings struct {
	Version int `json:"version"`
	dataset.Config

	// AudioCache is the number of decoded tracks kept in memory.
	AudioCache int `json:"audio_cache"`
	// ProgressEvery throttles progress log lines, in seconds.
	ProgressEvery float64 `json:"progress_every"`
}

var gsdef = settings{
	Version:       SETTINGS_VERSION,
	Config:        dataset.DefaultConfig(),
	AudioCache:    8,
	ProgressEvery: 5,
}

// loadSettings reads path over the defaults. A missing file, a decode error
// or a version mismatch yields the defaults and false.
func loadSettings(path string) (settings, bool) {
	if path == "" {
		return gsdef, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logWarn("read settings %s: %v", path, err)
		}
		return gsdef, false
	}
	tmp := gsdef
	if err := json.Unmarshal(data, &tmp); err != nil {
		logWarn("decode settings %s: %v", path, err)
		return gsdef, false
	}
	if tmp.Version != SETTINGS_VERSION {
		logWarn("settings %s has version %d, want %d; using defaults", path, tmp.Version, SETTINGS_VERSION)
		return gsdef, false
	}
	return tmp, true
}

func saveSettings(path string, s settings) error {
	s.Version = SETTINGS_VERSION
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path+".tmp", data, 0644); err != nil {
		return err
	}
	return os.Rename(path+".tmp", path)
}
