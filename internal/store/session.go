package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"hybridhouse/internal/models"
)

// Sessions persists interview sessions.
type Sessions struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewSessions(db *sqlx.DB, log *zap.Logger) *Sessions {
	return &Sessions{db: db, log: log.With(zap.String("component", "session_store"))}
}

// Replace deletes any active session of s.UserID and inserts s, in one
// transaction, so a user never has two active sessions.
func (st *Sessions) Replace(ctx context.Context, s *models.Session) error {
	db, err := conn(st.db)
	if err != nil {
		return err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM interview_sessions WHERE user_id=$1 AND status='active'`, s.UserID)
	if err != nil {
		return fmt.Errorf("delete active sessions: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		st.log.Info("terminated active session", zap.String("user_id", s.UserID), zap.Int64("count", n))
	}

	if s.Messages == nil {
		s.Messages = []models.Message{}
	}
	row := tx.QueryRowxContext(ctx,
		`INSERT INTO interview_sessions (id, user_id, status, messages, last_response_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		s.ID, s.UserID, s.Status, s.Messages, s.LastResponseID)
	if err := row.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return tx.Commit()
}

// Get returns one session or ErrNotFound.
func (st *Sessions) Get(ctx context.Context, id string) (*models.Session, error) {
	db, err := conn(st.db)
	if err != nil {
		return nil, err
	}
	var s models.Session
	if err := db.GetContext(ctx, &s, `SELECT * FROM interview_sessions WHERE id=$1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Save writes the mutable session state back.
func (st *Sessions) Save(ctx context.Context, s *models.Session) error {
	db, err := conn(st.db)
	if err != nil {
		return err
	}
	res, err := db.NamedExecContext(ctx,
		`UPDATE interview_sessions
		 SET status=:status, messages=:messages, last_response_id=:last_response_id,
		     artifact_id=:artifact_id, updated_at=NOW()
		 WHERE id=:id`, s)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
