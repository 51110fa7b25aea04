//go:build debug

package stratumd

import "github.com/sirupsen/logrus"

func init() {
	logger.SetLevel(logrus.DebugLevel)
	logger.SetReportCaller(true)
}
