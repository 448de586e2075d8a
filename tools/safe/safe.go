package safe

import (
	"StreamCursor/logger"

	"go.uber.org/zap"
)

// Go starts a new goroutine that recovers from panic,
// so that panics don't crash the entire program.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("goroutine panic recovered", zap.Any("panic", r))
			}
		}()
		f()
	}()
}
