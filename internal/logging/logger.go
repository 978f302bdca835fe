package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// New creates the application logger. level is a logrus level name and
// format is "json" or "text"; unknown values fall back to info/text.
func New(level, format string) *log.Logger {
	logger := log.New()
	logger.SetOutput(os.Stderr)

	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// NewNop returns a logger that discards everything.
func NewNop() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}
