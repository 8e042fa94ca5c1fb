package compute

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logMu sync.RWMutex
	log   = zap.NewNop()
)

// SetLogger installs the package logger. The default is a no-op logger;
// passing nil restores it.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logMu.Lock()
	log = l
	logMu.Unlock()
}

// logger returns the current package logger.
func logger() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return log
}
