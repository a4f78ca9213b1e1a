package main

import (
	"os"
	"testing"
)

// TestMain keeps log files out of the working tree.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "orsdata-logs")
	if err == nil {
		logDir = dir
	}
	setupLogging(false)
	code := m.Run()
	if err == nil {
		os.RemoveAll(dir)
	}
	os.Exit(code)
}
