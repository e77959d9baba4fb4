package sessionwindow

import (
	"fmt"
	"time"
)

// DefaultJoinWindow is how long before a session starts joining opens.
const DefaultJoinWindow = 10 * time.Minute

// State is the lifecycle position of a session relative to now.
type State int

const (
	Upcoming State = iota
	StartingSoon
	InProgress
	Ended
)

func (s State) String() string {
	switch s {
	case Upcoming:
		return "upcoming"
	case StartingSoon:
		return "starting_soon"
	case InProgress:
		return "in_progress"
	case Ended:
		return "ended"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state as its string name for JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{Upcoming, StartingSoon, InProgress, Ended} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// Evaluator classifies sessions against an injected clock.
type Evaluator struct {
	clock  Clock
	window time.Duration
}

// NewEvaluator creates an evaluator. A non-positive window falls back to DefaultJoinWindow.
func NewEvaluator(clock Clock, window time.Duration) *Evaluator {
	if clock == nil {
		clock = SystemClock{}
	}
	if window <= 0 {
		window = DefaultJoinWindow
	}
	return &Evaluator{clock: clock, window: window}
}

// Now returns the evaluator's current time.
func (e *Evaluator) Now() time.Time { return e.clock.Now() }

// Window returns the configured join window.
func (e *Evaluator) Window() time.Duration { return e.window }

// Classify returns the state of [start, end] at the evaluator's current time.
func (e *Evaluator) Classify(start, end time.Time) State {
	return ClassifyWithin(e.clock.Now(), start, end, e.window)
}

// Classify uses the default join window.
func Classify(now, start, end time.Time) State {
	return ClassifyWithin(now, start, end, DefaultJoinWindow)
}

// ClassifyWithin classifies with an explicit join window.
// Precedence: InProgress, StartingSoon, Upcoming, Ended.
func ClassifyWithin(now, start, end time.Time, window time.Duration) State {
	switch {
	case !now.Before(start) && !now.After(end):
		return InProgress
	case now.Before(start):
		if start.Sub(now) <= window {
			return StartingSoon
		}
		return Upcoming
	default:
		return Ended
	}
}

// CanJoin reports whether a join is permitted in state s for the given link.
func CanJoin(s State, meetingLink string) bool {
	if meetingLink == "" {
		return false
	}
	switch s {
	case InProgress, StartingSoon:
		return true
	case Upcoming, Ended:
		return false
	}
	return false
}

// TimeUntilLabel renders a coarse human label for the time left before start.
func TimeUntilLabel(now, start time.Time) string {
	if !start.After(now) {
		return "In progress"
	}
	left := start.Sub(now)
	switch {
	case left < time.Hour:
		return fmt.Sprintf("Starts in %d min", int(left/time.Minute))
	case left < 24*time.Hour:
		return fmt.Sprintf("Starts in %d hr", int(left/time.Hour))
	}
	days := int(left / (24 * time.Hour))
	if days == 1 {
		return "Starts in 1 day"
	}
	return fmt.Sprintf("Starts in %d days", days)
}

// Countdown renders the remaining time before start as MM:SS, clamped at 00:00.
func Countdown(now, start time.Time) string {
	left := start.Sub(now)
	if left <= 0 {
		return "00:00"
	}
	secs := int(left / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
