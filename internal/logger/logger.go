package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger. It is usable before Init with logrus defaults.
var Logger = logrus.New()

// Init configures the global logger. Unknown levels fall back to info.
func Init(level string, json bool) {
	Logger.SetOutput(os.Stdout)
	if json {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		Logger.WithField("level", level).Warn("invalid log level, using info")
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)
}
