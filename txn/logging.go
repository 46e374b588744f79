package txn

import (
	"os"

	"github.com/rs/zerolog"
)

// newLogger returns the processor's default structured logger, one field
// (mode) pre-bound so every log line carries its protocol without
// repeating it at each call site. The processor logs one line, at startup.
func newLogger(mode Mode) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("mode", mode.String()).Logger()
}
