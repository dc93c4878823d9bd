package relay

import (
	"io"

	"github.com/vault713/grinbox/internal/logger"
)

// testLogger returns a discard logger for unit tests.
func testLogger() logger.Logger {
	return logger.NewLogger(io.Discard, logger.ErrorLevel)
}
