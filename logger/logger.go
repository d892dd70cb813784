// Package logger holds the process-wide logrus logger shared by the client,
// the rollback core and the signaling server.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is usable before Init so that packages and tests never see a nil logger.
var Log = logrus.New()

// Init configures Log from the environment. Call once from main.
//
// LOG_LEVEL selects the level (default "info"), LOG_FORMAT=json switches to
// the JSON formatter.
func Init() {
	level, err := logrus.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	Log.SetOutput(os.Stdout)
}

// Component returns an entry tagged with the subsystem name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

// Silence discards all output. Used by tests that exercise noisy paths.
func Silence() {
	Log.SetOutput(io.Discard)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
