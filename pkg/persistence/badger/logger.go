package badger

import (
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// loggerAdapter routes badger's printf-style logging into zap, tagged with the component name.
type loggerAdapter struct {
	sugar *zap.SugaredLogger
}

var _ badgerdb.Logger = (*loggerAdapter)(nil)

func newLoggerAdapter(logger *zap.Logger) *loggerAdapter {
	return &loggerAdapter{sugar: logger.Sugar().With("component", "badger")}
}

func (l *loggerAdapter) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *loggerAdapter) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Infof is demoted to debug: badger reports every compaction and flush at info level.
func (l *loggerAdapter) Infof(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *loggerAdapter) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}
