package gossip

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "gossip")
