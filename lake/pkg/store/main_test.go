package store

import (
	"log/slog"
	"os"
	"testing"

	"github.com/petrodata/prodlake/lake/pkg/logger"
)

var testLogger *slog.Logger

func TestMain(m *testing.M) {
	testLogger = logger.Discard()
	if os.Getenv("DEBUG") != "" {
		testLogger = logger.New(true)
	}
	os.Exit(m.Run())
}
