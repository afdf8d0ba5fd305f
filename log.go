package imgio

import (
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// logger traces plugin probing at debug level. Warn and above by default so
// library consumers see nothing unless they opt in. Held behind an atomic
// pointer so SetLogger is safe while Open calls are in flight.
var logger atomic.Pointer[logrus.Logger]

func init() {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	logger.Store(l)
}

// SetLogger replaces the package logger. Pass a logger at debug level to see
// per-candidate probe traces from Open. nil is ignored. Safe to call
// concurrently with Open.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		logger.Store(l)
	}
}
