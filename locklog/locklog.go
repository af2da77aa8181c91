// Package locklog reports rwlock events through a zap logger.
package locklog

import (
	"time"

	"go.uber.org/zap"

	"github.com/rogov-ks/rwlock/rwlock"
)

type logObserver struct {
	logger *zap.Logger
	slow   time.Duration
}

// New returns an rwlock.Observer that logs each event at Debug level and,
// in addition, acquisitions that waited longer than slow at Warn level.
// A zero slow disables the warning.
func New(logger *zap.Logger, slow time.Duration) rwlock.Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logObserver{logger: logger, slow: slow}
}

func (o *logObserver) Acquired(m rwlock.Mode, waited time.Duration) {
	if o.slow > 0 && waited > o.slow {
		o.logger.Warn("slow lock acquisition",
			zap.Stringer("mode", m),
			zap.Duration("waited", waited),
			zap.Duration("threshold", o.slow),
		)
	}
	if ce := o.logger.Check(zap.DebugLevel, "lock acquired"); ce != nil {
		ce.Write(zap.Stringer("mode", m), zap.Duration("waited", waited))
	}
}

func (o *logObserver) Released(m rwlock.Mode) {
	if ce := o.logger.Check(zap.DebugLevel, "lock released"); ce != nil {
		ce.Write(zap.Stringer("mode", m))
	}
}
