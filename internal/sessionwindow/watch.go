package sessionwindow

import (
	"context"
	"time"
)

// DefaultTick is the re-evaluation interval for live session views.
const DefaultTick = time.Second

// Watch calls fn immediately and then once per interval until ctx is done.
// The ticker is released when Watch returns.
func Watch(ctx context.Context, clock Clock, interval time.Duration, fn func(now time.Time)) {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultTick
	}
	fn(clock.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(clock.Now())
		}
	}
}
