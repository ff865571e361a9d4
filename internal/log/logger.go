package log

import (
	"go.uber.org/zap"
)

var base = zap.NewNop()

// Init builds the process-wide zap logger. prod selects the production
// encoder (JSON); otherwise the development console encoder is used.
func Init(prod bool) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if prod {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	base = l
	return l, nil
}

func Sync() { _ = base.Sync() }
