package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"hybridhouse/internal/models"
)

const identityTable = "user_profiles"

// Identities reads and writes user_profiles rows keyed by user_id.
type Identities struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewIdentities(db *sqlx.DB, log *zap.Logger) *Identities {
	return &Identities{db: db, log: log.With(zap.String("component", "identity_store"))}
}

// Get returns the identity row or ErrNotFound.
func (s *Identities) Get(ctx context.Context, userID string) (*models.Identity, error) {
	db, err := conn(s.db)
	if err != nil {
		return nil, err
	}
	var id models.Identity
	if err := db.GetContext(ctx, &id, `SELECT * FROM user_profiles WHERE user_id=$1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &id, nil
}

// GetOrCreate returns the identity row, creating it on first touch with a
// display name seeded from the email local part.
func (s *Identities) GetOrCreate(ctx context.Context, userID, email string) (*models.Identity, error) {
	id, err := s.Get(ctx, userID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	db, err := conn(s.db)
	if err != nil {
		return nil, err
	}
	var emailArg, displayArg any
	if email = strings.TrimSpace(strings.ToLower(email)); email != "" {
		emailArg = email
		displayArg = EmailLocalPart(email)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, email, display_name) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, emailArg, displayArg); err != nil {
		return nil, err
	}
	s.log.Info("identity created", zap.String("user_id", userID))
	return s.Get(ctx, userID)
}

// Patch applies fields to the identity row. Unknown columns are dropped and
// reported as warnings. user_id is immutable and ignored when present.
func (s *Identities) Patch(ctx context.Context, userID string, fields map[string]any) (*models.Identity, []string, error) {
	db, err := conn(s.db)
	if err != nil {
		return nil, nil, err
	}
	payload := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "user_id" || k == "created_at" || k == "updated_at" {
			continue
		}
		payload[k] = v
	}

	var out models.Identity
	warnings, err := WriteTolerant(s.log, identityTable, payload, func(p map[string]any) error {
		query, args, err := buildUpdate(identityTable, "user_id", userID, p)
		if err != nil {
			return err
		}
		return db.QueryRowxContext(ctx, query, args...).StructScan(&out)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, warnings, ErrNotFound
		}
		return nil, warnings, err
	}
	return &out, warnings, nil
}

// ListByIDs loads the identities for the given users in one query.
func (s *Identities) ListByIDs(ctx context.Context, userIDs []string) ([]models.Identity, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	db, err := conn(s.db)
	if err != nil {
		return nil, err
	}
	query, args, err := sqlx.In(`SELECT * FROM user_profiles WHERE user_id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	var out []models.Identity
	if err := db.SelectContext(ctx, &out, db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return out, nil
}

// EmailLocalPart returns the part of an address before the @.
func EmailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
