package lanelet

import "github.com/sirupsen/logrus"

// log 车道片模块的日志记录器
var log = logrus.WithField("module", "lanelet")
