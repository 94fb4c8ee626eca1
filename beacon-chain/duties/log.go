package duties

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "duties")
