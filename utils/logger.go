package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger for the command line tools, which log as
// colored text for a terminal rather than JSON.
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a text logger writing to w (stderr when nil).
func NewLogger(level string, w io.Writer) *Logger {
	logger := logrus.New()

	// Set log level
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     w == nil,
	})

	if w == nil {
		w = os.Stderr
	}
	logger.SetOutput(w)

	return &Logger{Logger: logger}
}

// WithRoom returns an entry tagged with the room id.
func (l *Logger) WithRoom(roomID uint) *logrus.Entry {
	return l.WithField("room_id", roomID)
}
