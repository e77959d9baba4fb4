package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"classportal/internal/store"
)

// Record marks that a learner joined a session.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	JoinTime  time.Time `json:"join_time"`
	IsPresent bool      `json:"is_present"`
}

// Repository persists attendance rows keyed by (user_id, session_id).
type Repository struct {
	rows store.Rows
}

// NewRepository creates a repo.
func NewRepository(rows store.Rows) *Repository {
	return &Repository{rows: rows}
}

// Find returns the record for the pair, or nil when none exists.
func (r *Repository) Find(ctx context.Context, userID, sessionID string) (*Record, error) {
	row, err := r.rows.FindOne(ctx, store.TableAttendance, pairFilter(userID, sessionID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rec := fromRow(row)
	return &rec, nil
}

// Insert creates a present record. A duplicate pair yields store.ErrConflict.
func (r *Repository) Insert(ctx context.Context, userID, sessionID string, at time.Time) (Record, error) {
	row, err := r.rows.Insert(ctx, store.TableAttendance, store.Row{
		"id":         uuid.NewString(),
		"user_id":    userID,
		"session_id": sessionID,
		"join_time":  at.UTC(),
		"is_present": true,
	})
	if err != nil {
		return Record{}, err
	}
	return fromRow(row), nil
}

// Touch refreshes join_time on an existing record.
func (r *Repository) Touch(ctx context.Context, userID, sessionID string, at time.Time) (Record, error) {
	row, err := r.rows.Update(ctx, store.TableAttendance, pairFilter(userID, sessionID), store.Row{
		"join_time": at.UTC(),
	})
	if err != nil {
		return Record{}, err
	}
	return fromRow(row), nil
}

// ListBySession returns records for a session, latest join first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	rows, err := r.rows.FindMany(ctx, store.TableAttendance, store.Filter{"session_id": sessionID}, "-join_time", limit)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func pairFilter(userID, sessionID string) store.Filter {
	return store.Filter{"user_id": userID, "session_id": sessionID}
}

func fromRow(row store.Row) Record {
	return Record{
		ID:        row.String("id"),
		UserID:    row.String("user_id"),
		SessionID: row.String("session_id"),
		JoinTime:  row.Time("join_time"),
		IsPresent: row.Bool("is_present"),
	}
}
