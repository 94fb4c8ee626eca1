package blockprocessor

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "blockprocessor")
