package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Field names shared by the capture pipeline so session and step events can
// be correlated across the service, the uploader and the observers.
const (
	FieldSession  = "session_id"
	FieldStep     = "step_id"
	FieldProvider = "ai_provider"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()
	Logger.SetOutput(os.Stdout)

	// LOG_LEVEL accepts any logrus level name; unknown values keep Info
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		Logger.SetLevel(lvl)
	} else {
		Logger.SetLevel(logrus.InfoLevel)
	}

	// LOG_FORMAT=text is for local development, JSON otherwise
	if os.Getenv("LOG_FORMAT") == "text" {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}
}

// WithSession tags an entry with the capture session it belongs to.
func WithSession(sessionID string) *logrus.Entry {
	return Logger.WithField(FieldSession, sessionID)
}

// WithStep tags an entry with a session and the step being captured.
func WithStep(sessionID, stepID string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		FieldSession: sessionID,
		FieldStep:    stepID,
	})
}

// WithProvider tags an entry with the AI provider serving a call.
func WithProvider(name string) *logrus.Entry {
	return Logger.WithField(FieldProvider, name)
}

// WithFields creates a new entry with the given fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithField creates a new entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithError creates a new entry with an error field
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}

// Info logs an info message
func Info(msg string) {
	Logger.Info(msg)
}

// Error logs an error message
func Error(msg string) {
	Logger.Error(msg)
}

// Debug logs a debug message
func Debug(msg string) {
	Logger.Debug(msg)
}

// Warn logs a warning message
func Warn(msg string) {
	Logger.Warn(msg)
}
