// Package logging configures the process-wide structured logger.
//
// Grounded on rolldone-data-splitter's cmd/main.go setupLogging: a
// logrus text formatter with full timestamps, level resolved from the
// environment with a config fallback.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures the shared logrus logger and returns it. levelName
// falls back to "info" when empty or unparseable.
func Setup(levelName string) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		levelName = v
	}
	if levelName == "" {
		levelName = "info"
	}

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		log.Warnf("invalid log level %q, defaulting to info", levelName)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// ForTable returns a logger scoped to a single entity's pipeline, so
// concurrent per-entity goroutines can be told apart in interleaved
// output.
func ForTable(table string) *logrus.Entry {
	return logrus.StandardLogger().WithField("table", table)
}
