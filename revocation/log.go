package revocation

import "github.com/sirupsen/logrus"

// Logger logs accumulator changes. Nil disables logging.
var Logger *logrus.Logger

func logf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Debugf(format, args...)
	}
}
