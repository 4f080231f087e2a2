package laketesting

import (
	"log/slog"
	"os"
	"testing"

	"github.com/petrodata/prodlake/lake/pkg/logger"
)

// NewLogger returns a discard logger, or a debug tint logger when DEBUG is set.
func NewLogger(t *testing.T) *slog.Logger {
	t.Helper()
	if os.Getenv("DEBUG") != "" {
		return logger.New(true)
	}
	return logger.Discard()
}
