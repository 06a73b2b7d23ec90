package bus

import (
	"go.uber.org/zap"
)

type Statistics struct {
	PostCount     uint64
	PostFails     uint64
	DispatchCount uint64
	DispatchFails uint64
}

func (s Statistics) Print(logger *zap.Logger) {
	logger.Info("router statistics",
		zap.Uint64("post_count", s.PostCount),
		zap.Uint64("post_fails", s.PostFails),
		zap.Uint64("dispatch_count", s.DispatchCount),
		zap.Uint64("dispatch_fails", s.DispatchFails))
}
