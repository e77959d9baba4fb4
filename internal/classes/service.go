package classes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"classportal/internal/attendance"
	"classportal/internal/auth"
	"classportal/internal/logger"
	"classportal/internal/metrics"
	"classportal/internal/sessionwindow"
)

var (
	ErrJoinClosed = errors.New("session is not open for joining")
	ErrForbidden  = errors.New("role may not perform this action")
)

// SessionView is a session annotated with its state at a point in time.
type SessionView struct {
	ClassSession
	State     sessionwindow.State `json:"state"`
	Label     string              `json:"label"`
	Countdown string              `json:"countdown,omitempty"`
	Joinable  bool                `json:"joinable"`
}

// JoinResult is returned when the join gate admits the caller.
type JoinResult struct {
	SessionID   string              `json:"session_id"`
	MeetingLink string              `json:"meeting_link"`
	State       sessionwindow.State `json:"state"`
}

// submitTimeout bounds how long a join waits on the attendance sink.
const submitTimeout = 2 * time.Second

// Service wires session storage, the join gate and the attendance side effect.
type Service struct {
	repo *Repository
	eval *sessionwindow.Evaluator
	sink attendance.Sink
	log  logrus.FieldLogger

	submitTimeout time.Duration
}

// NewService creates a service. sink may be nil, in which case joins record nothing.
func NewService(repo *Repository, eval *sessionwindow.Evaluator, sink attendance.Sink) *Service {
	return &Service{repo: repo, eval: eval, sink: sink, log: logger.Logger, submitTimeout: submitTimeout}
}

// View annotates s with its state at now.
func (s *Service) View(sess ClassSession, now time.Time) SessionView {
	state := sessionwindow.ClassifyWithin(now, sess.StartTime, sess.EndTime, s.eval.Window())
	v := SessionView{
		ClassSession: sess,
		State:        state,
		Label:        sessionwindow.TimeUntilLabel(now, sess.StartTime),
		Joinable:     sessionwindow.CanJoin(state, sess.MeetingLink),
	}
	if state == sessionwindow.StartingSoon {
		v.Countdown = sessionwindow.Countdown(now, sess.StartTime)
	}
	return v
}

// Views annotates sessions at now and drops the ones that have ended.
func (s *Service) Views(sessions []ClassSession, now time.Time) []SessionView {
	out := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		v := s.View(sess, now)
		if v.State == sessionwindow.Ended {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Load returns the stored sessions for a course (all courses when empty) that have not
// ended by now, without annotation.
func (s *Service) Load(ctx context.Context, courseID string, now time.Time) ([]ClassSession, error) {
	return s.repo.List(ctx, courseID, now, 0)
}

// List returns the visible (not ended) sessions, ordered by start time.
func (s *Service) List(ctx context.Context, courseID string, limit int) ([]SessionView, error) {
	now := s.eval.Now()
	sessions, err := s.repo.List(ctx, courseID, now, limit)
	if err != nil {
		return nil, err
	}
	return s.Views(sessions, now), nil
}

// Get returns one session view, including ended sessions.
func (s *Service) Get(ctx context.Context, id string) (SessionView, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	return s.View(sess, s.eval.Now()), nil
}

// Schedule validates and stores a session on behalf of p.
func (s *Service) Schedule(ctx context.Context, p auth.Principal, courseID, title string, start, end time.Time, link string) (ClassSession, error) {
	if !p.Role.CanSchedule() {
		return ClassSession{}, ErrForbidden
	}
	sess, err := NewClassSession(uuid.NewString(), courseID, title, start, end, link)
	if err != nil {
		return ClassSession{}, err
	}
	sess.CreatedBy = p.UserID
	return s.repo.Create(ctx, sess)
}

// Join admits p to a session when the join window is open.
// Students also get an attendance record; failures there are logged and never fail the join.
func (s *Service) Join(ctx context.Context, p auth.Principal, sessionID string) (JoinResult, error) {
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return JoinResult{}, err
	}
	now := s.eval.Now()
	state := sessionwindow.ClassifyWithin(now, sess.StartTime, sess.EndTime, s.eval.Window())
	if !sessionwindow.CanJoin(state, sess.MeetingLink) {
		metrics.JoinDecisions.WithLabelValues(state.String(), "closed").Inc()
		return JoinResult{}, fmt.Errorf("%w: %s", ErrJoinClosed, state)
	}
	metrics.JoinDecisions.WithLabelValues(state.String(), "allowed").Inc()

	if p.Role.RecordsAttendance() && s.sink != nil {
		j := attendance.Join{UserID: p.UserID, SessionID: sess.ID, At: now}
		submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
		err := s.sink.Submit(submitCtx, j)
		cancel()
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"user_id":    p.UserID,
				"session_id": sess.ID,
			}).WithError(err).Warn("attendance submit failed")
		}
	}

	return JoinResult{SessionID: sess.ID, MeetingLink: sess.MeetingLink, State: state}, nil
}
