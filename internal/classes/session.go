package classes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"classportal/internal/logger"
	"classportal/internal/store"
)

var (
	ErrMissingID       = errors.New("session id required")
	ErrInvalidWindow   = errors.New("session end must be after start")
	ErrSessionNotFound = errors.New("session not found")
)

// ClassSession is a scheduled, time-boxed class meeting.
type ClassSession struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	MeetingLink string    `json:"meeting_link,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
}

// NewClassSession validates the window and identity of a session.
func NewClassSession(id, courseID, title string, start, end time.Time, meetingLink string) (ClassSession, error) {
	if id == "" {
		return ClassSession{}, ErrMissingID
	}
	if !end.After(start) {
		return ClassSession{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidWindow, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return ClassSession{
		ID:          id,
		CourseID:    courseID,
		Title:       title,
		StartTime:   start.UTC(),
		EndTime:     end.UTC(),
		MeetingLink: meetingLink,
	}, nil
}

// Repository reads and writes sessions through the row store.
type Repository struct {
	rows store.Rows
}

// NewRepository creates a repo.
func NewRepository(rows store.Rows) *Repository {
	return &Repository{rows: rows}
}

// Get returns a session by id. Stored rows that fail validation are reported as errors.
func (r *Repository) Get(ctx context.Context, id string) (ClassSession, error) {
	row, err := r.rows.FindOne(ctx, store.TableSessions, store.Filter{"id": id})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ClassSession{}, ErrSessionNotFound
		}
		return ClassSession{}, err
	}
	return fromRow(row)
}

// List returns sessions ordered by start time. A non-zero endingAfter drops sessions
// that ended before it. Stored rows that fail validation are logged and skipped.
func (r *Repository) List(ctx context.Context, courseID string, endingAfter time.Time, limit int) ([]ClassSession, error) {
	filter := store.Filter{}
	if courseID != "" {
		filter["course_id"] = courseID
	}
	if !endingAfter.IsZero() {
		filter["end_time"] = store.AtLeast{V: endingAfter}
	}
	rows, err := r.rows.FindMany(ctx, store.TableSessions, filter, "start_time", limit)
	if err != nil {
		return nil, err
	}
	out := make([]ClassSession, 0, len(rows))
	for _, row := range rows {
		s, err := fromRow(row)
		if err != nil {
			logger.Logger.WithError(err).Warn("skipping invalid stored session")
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Create stores a new session. The id is generated when empty.
func (r *Repository) Create(ctx context.Context, s ClassSession) (ClassSession, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row, err := r.rows.Insert(ctx, store.TableSessions, store.Row{
		"id":           s.ID,
		"course_id":    s.CourseID,
		"title":        s.Title,
		"start_time":   s.StartTime,
		"end_time":     s.EndTime,
		"meeting_link": s.MeetingLink,
		"created_by":   s.CreatedBy,
	})
	if err != nil {
		return ClassSession{}, err
	}
	return fromRow(row)
}

func fromRow(row store.Row) (ClassSession, error) {
	s, err := NewClassSession(
		row.String("id"),
		row.String("course_id"),
		row.String("title"),
		row.Time("start_time"),
		row.Time("end_time"),
		row.String("meeting_link"),
	)
	if err != nil {
		return ClassSession{}, fmt.Errorf("stored session %q: %w", row.String("id"), err)
	}
	s.CreatedBy = row.String("created_by")
	return s, nil
}
