package myq

import (
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
)

// defaultLogger builds the logger used when the caller does not supply
// one: human-readable output on stderr at info level. Debug output
// (logr V(1) and above) is suppressed; install a more verbose logger
// with WithLogger to see it.
func defaultLogger() logr.Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	return zerologr.New(&zl)
}
