package roadnetwork

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "roadnetwork")
