// Package logging provides Tidarr's leveled program logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.Mutex
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()

	// Level gates D() output. -1 until Setup runs.
	Level = -1
)

// Setup points the logger at the given console writer and sets the debug level.
func Setup(console io.Writer, level int) {
	mu.Lock()
	defer mu.Unlock()

	logger = zerolog.New(zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
	Level = level

	if level > 0 {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
}

// I logs informational messages.
func I(format string, args ...any) {
	logger.Info().Msg(fmt.Sprintf(format, args...))
}

// S logs success messages.
func S(format string, args ...any) {
	logger.Info().Str("status", "ok").Msg(fmt.Sprintf(format, args...))
}

// W logs warnings.
func W(format string, args ...any) {
	logger.Warn().Msg(fmt.Sprintf(format, args...))
}

// E logs errors.
func E(format string, args ...any) {
	logger.Error().Msg(fmt.Sprintf(format, args...))
}

// D logs debug messages at or below the configured debug level.
func D(l int, format string, args ...any) {
	if l > Level {
		return
	}
	logger.Debug().Msg(fmt.Sprintf(format, args...))
}
