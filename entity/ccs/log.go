package ccs

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "ccs")
