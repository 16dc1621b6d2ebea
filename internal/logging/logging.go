// Package logging builds the logrus logger shared by fintrack commands.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to out at the named level. Unknown levels fall
// back to info. format "json" selects the JSON formatter; anything else is text.
func New(level, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			DisableColors:    true,
			FullTimestamp:    true,
			DisableQuote:     true,
			QuoteEmptyFields: true,
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// Component returns a child logger tagged with a component name.
func Component(logger logrus.FieldLogger, name string) logrus.FieldLogger {
	if logger == nil {
		logger = Discard()
	}
	return logger.WithField("component", name)
}

// Discard returns a logger that drops everything, for tests and library defaults.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
