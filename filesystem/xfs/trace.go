package xfs

import "github.com/sirupsen/logrus"

// LogrusTrace adapts a *logrus.Logger into a Trace, giving CLI front ends
// (cmd/xfsinfo, cmd/xfsbodyfile) the teacher's structured-logging texture
// for OpenOptions.Trace without coupling the core to any particular sink.
func LogrusTrace(log *logrus.Logger) Trace {
	return func(area, msg string) {
		log.WithField("area", area).Debug(msg)
	}
}
