package anoncreds

import (
	"github.com/sirupsen/logrus"

	"github.com/credentials/anoncreds/revocation"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.StandardLogger()
	revocation.Logger = Logger
}
