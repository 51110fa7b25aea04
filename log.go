package stratumd

import (
	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func init() {
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)
}

// Logger returns the package logger so commands can tune level and output.
func Logger() *logrus.Logger {
	return logger
}
