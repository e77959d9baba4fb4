package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"classportal/internal/logger"
	"classportal/internal/metrics"
	"classportal/internal/store"
)

// Status is the result class of a recording attempt.
type Status string

const (
	Created   Status = "created"
	Refreshed Status = "refreshed"
	Skipped   Status = "skipped"
	Failed    Status = "failed"
)

// Outcome describes what Record did. Err is set only when Status is Failed.
type Outcome struct {
	Status Status
	Record *Record
	Err    error
}

// OK reports whether attendance is known to be stored.
func (o Outcome) OK() bool { return o.Status == Created || o.Status == Refreshed }

// Recorder marks learner attendance. It never blocks or fails the join that triggered it.
type Recorder struct {
	repo     *Repository
	guard    Guard
	guardTTL time.Duration
	log      logrus.FieldLogger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithGuard collapses concurrent joins for the same pair while one is in flight.
func WithGuard(g Guard, ttl time.Duration) Option {
	return func(r *Recorder) {
		r.guard = g
		if ttl > 0 {
			r.guardTTL = ttl
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Recorder) { r.log = l }
}

// NewRecorder creates a recorder backed by repo.
func NewRecorder(repo *Repository, opts ...Option) *Recorder {
	r := &Recorder{repo: repo, guardTTL: 5 * time.Second, log: logger.Logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Repository returns the store the recorder writes to.
func (r *Recorder) Repository() *Repository { return r.repo }

// Record creates the (userID, sessionID) record on first join and refreshes join_time afterwards.
func (r *Recorder) Record(ctx context.Context, userID, sessionID string, at time.Time) Outcome {
	log := r.log.WithFields(logrus.Fields{"user_id": userID, "session_id": sessionID})
	out := r.record(ctx, userID, sessionID, at)

	metrics.AttendanceOutcomes.WithLabelValues(string(out.Status)).Inc()
	entry := log.WithField("outcome", out.Status)
	if out.Err != nil {
		entry.WithError(out.Err).Warn("attendance not recorded")
	} else {
		entry.Debug("attendance recorded")
	}
	return out
}

func (r *Recorder) record(ctx context.Context, userID, sessionID string, at time.Time) Outcome {
	if userID == "" || sessionID == "" {
		return Outcome{Status: Failed, Err: errors.New("user and session required")}
	}

	if r.guard != nil {
		release, ok, err := r.guard.Acquire(ctx, guardKey(userID, sessionID), r.guardTTL)
		switch {
		case err != nil:
			r.log.WithError(err).Warn("join guard unavailable, recording unguarded")
		case !ok:
			return Outcome{Status: Skipped}
		default:
			defer release()
		}
	}

	existing, err := r.repo.Find(ctx, userID, sessionID)
	if err != nil {
		return Outcome{Status: Failed, Err: err}
	}
	if existing != nil {
		return r.touch(ctx, userID, sessionID, at)
	}

	rec, err := r.repo.Insert(ctx, userID, sessionID, at)
	if errors.Is(err, store.ErrConflict) {
		// lost a race with another join for the same pair
		return r.touch(ctx, userID, sessionID, at)
	}
	if err != nil {
		return Outcome{Status: Failed, Err: err}
	}
	return Outcome{Status: Created, Record: &rec}
}

func (r *Recorder) touch(ctx context.Context, userID, sessionID string, at time.Time) Outcome {
	rec, err := r.repo.Touch(ctx, userID, sessionID, at)
	if err != nil {
		return Outcome{Status: Failed, Err: err}
	}
	return Outcome{Status: Refreshed, Record: &rec}
}

func guardKey(userID, sessionID string) string {
	return "attendance:join:" + userID + ":" + sessionID
}
