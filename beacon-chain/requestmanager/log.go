package requestmanager

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "requestmanager")
