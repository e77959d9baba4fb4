package sessionwindow

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestClassify(t *testing.T) {
	start := mustTime(t, "2025-01-01T10:00:00Z")
	end := mustTime(t, "2025-01-01T11:00:00Z")

	tests := []struct {
		name string
		now  string
		want State
	}{
		{name: "two hours before", now: "2025-01-01T08:00:00Z", want: Upcoming},
		{name: "fifteen minutes before", now: "2025-01-01T09:45:00Z", want: Upcoming},
		{name: "just outside window", now: "2025-01-01T09:49:59Z", want: Upcoming},
		{name: "window edge", now: "2025-01-01T09:50:00Z", want: StartingSoon},
		{name: "one second before", now: "2025-01-01T09:59:59Z", want: StartingSoon},
		{name: "at start", now: "2025-01-01T10:00:00Z", want: InProgress},
		{name: "midway", now: "2025-01-01T10:30:00Z", want: InProgress},
		{name: "at end", now: "2025-01-01T11:00:00Z", want: InProgress},
		{name: "after end", now: "2025-01-01T11:00:01Z", want: Ended},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(mustTime(t, tt.now), start, end))
		})
	}
}

func TestClassifyWithinCustomWindow(t *testing.T) {
	start := mustTime(t, "2025-01-01T10:00:00Z")
	end := mustTime(t, "2025-01-01T11:00:00Z")
	now := mustTime(t, "2025-01-01T09:45:00Z")

	assert.Equal(t, StartingSoon, ClassifyWithin(now, start, end, 15*time.Minute))
	assert.Equal(t, Upcoming, ClassifyWithin(now, start, end, 14*time.Minute))
}

func TestEvaluatorUsesClock(t *testing.T) {
	start := mustTime(t, "2025-01-01T10:00:00Z")
	end := mustTime(t, "2025-01-01T11:00:00Z")

	ev := NewEvaluator(FixedClock(mustTime(t, "2025-01-01T10:30:00Z")), 0)
	assert.Equal(t, DefaultJoinWindow, ev.Window())
	assert.Equal(t, InProgress, ev.Classify(start, end))

	ev = NewEvaluator(FixedClock(mustTime(t, "2025-01-01T11:00:01Z")), 0)
	assert.Equal(t, Ended, ev.Classify(start, end))
}

func TestCanJoin(t *testing.T) {
	link := "https://meet.example.com/abc"
	for _, s := range []State{Upcoming, StartingSoon, InProgress, Ended} {
		assert.False(t, CanJoin(s, ""), "no link in %s", s)
	}
	assert.True(t, CanJoin(InProgress, link))
	assert.True(t, CanJoin(StartingSoon, link))
	assert.False(t, CanJoin(Upcoming, link))
	assert.False(t, CanJoin(Ended, link))
}

func TestTimeUntilLabel(t *testing.T) {
	start := mustTime(t, "2025-01-01T10:00:00Z")
	tests := []struct {
		now  string
		want string
	}{
		{now: "2025-01-01T10:00:00Z", want: "In progress"},
		{now: "2025-01-01T10:05:00Z", want: "In progress"},
		{now: "2025-01-01T09:59:00Z", want: "Starts in 1 min"},
		{now: "2025-01-01T09:00:01Z", want: "Starts in 59 min"},
		{now: "2025-01-01T09:00:00Z", want: "Starts in 1 hr"},
		{now: "2025-01-01T08:00:00Z", want: "Starts in 2 hr"},
		{now: "2024-12-31T10:00:01Z", want: "Starts in 23 hr"},
		{now: "2024-12-31T10:00:00Z", want: "Starts in 1 day"},
		{now: "2024-12-29T09:00:00Z", want: "Starts in 3 days"},
	}
	for _, tt := range tests {
		t.Run(tt.now, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeUntilLabel(mustTime(t, tt.now), start))
		})
	}
}

func TestCountdown(t *testing.T) {
	start := mustTime(t, "2025-01-01T10:00:00Z")
	tests := []struct {
		now  string
		want string
	}{
		{now: "2025-01-01T09:45:00Z", want: "15:00"},
		{now: "2025-01-01T09:49:59Z", want: "10:01"},
		{now: "2025-01-01T09:59:59Z", want: "00:01"},
		{now: "2025-01-01T10:00:00Z", want: "00:00"},
		{now: "2025-01-01T10:30:00Z", want: "00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.now, func(t *testing.T) {
			assert.Equal(t, tt.want, Countdown(mustTime(t, tt.now), start))
		})
	}
}

func TestStateText(t *testing.T) {
	b, err := StartingSoon.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "starting_soon", string(b))
	assert.Equal(t, "state(9)", State(9).String())

	var s State
	assert.NoError(t, s.UnmarshalText([]byte("in_progress")))
	assert.Equal(t, InProgress, s)
	assert.Error(t, s.UnmarshalText([]byte("later")))
}

func TestWatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})

	go func() {
		Watch(ctx, FixedClock(time.Unix(0, 0)), 5*time.Millisecond, func(time.Time) {
			if calls.Add(1) == 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}
