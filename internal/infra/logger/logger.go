package logger

import (
	"io"
	"os"

	"inviter_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

const serviceName = "inviter_bot"

// Log is the process-wide logger. Init replaces its configuration.
var Log = logrus.New()

// Init configures Log from the application config and writes to stdout.
func Init(cfg *config.AppConfig) {
	configure(Log, os.Stdout, cfg)
	Log.WithFields(logrus.Fields{
		"level":       Log.GetLevel().String(),
		"environment": cfg.Environment,
	}).Debug("Logger initialized")
}

// Component returns an entry tagged with the service and component name.
func Component(name string) *logrus.Entry {
	return Log.WithFields(logrus.Fields{"service": serviceName, "component": name})
}

func configure(l *logrus.Logger, out io.Writer, cfg *config.AppConfig) {
	l.SetOutput(out)
	l.SetLevel(levelFor(l, cfg.LogLevel))

	switch cfg.Environment {
	case "production", "staging":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "msg"},
		})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  "2006-01-02 15:04:05",
			QuoteEmptyFields: true,
		})
	}
}

func levelFor(l *logrus.Logger, raw string) logrus.Level {
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		l.WithError(err).Warnf("Invalid log level %q, using info", raw)
		return logrus.InfoLevel
	}
	return level
}
