package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger matching the server's format, writing to
// stdout so failures interleave with the test output.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[huddle-test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
