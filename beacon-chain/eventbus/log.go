package eventbus

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "eventbus")
