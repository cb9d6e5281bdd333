package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"hybridhouse/internal/models"
	"hybridhouse/internal/projection"
)

const artifactTable = "athlete_profiles"

const completeScoresClause = `hybrid_score IS NOT NULL AND strength_score IS NOT NULL AND speed_score IS NOT NULL
	AND vo2_score IS NOT NULL AND distance_score IS NOT NULL AND volume_score IS NOT NULL
	AND recovery_score IS NOT NULL`

// ListFilter narrows ListByUser.
type ListFilter struct {
	CompleteOnly bool
	PublicOnly   bool
}

// Artifacts reads and writes athlete_profiles rows keyed by artifact id.
type Artifacts struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewArtifacts(db *sqlx.DB, log *zap.Logger) *Artifacts {
	return &Artifacts{db: db, log: log.With(zap.String("component", "artifact_store"))}
}

// PrepareCreate validates a create payload and fills server-side defaults.
// It is shared with the in-memory store so both enforce the same rules.
func PrepareCreate(userID string, fields map[string]any) (map[string]any, error) {
	if profile, ok := fields["profile_json"].(map[string]any); ok {
		if err := projection.CheckNoPersonalData(profile); err != nil {
			return nil, err
		}
	}
	payload := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		payload[k] = v
	}
	payload["id"] = uuid.NewString()
	payload["user_id"] = userID
	if _, ok := payload["is_public"]; !ok {
		payload["is_public"] = true
	}
	if _, ok := payload["profile_json"]; !ok {
		payload["profile_json"] = map[string]any{}
	}
	return payload, nil
}

// ScorePatch builds the column payload that stores a scoring result.
func ScorePatch(scoreData map[string]any, now time.Time) map[string]any {
	fields := projection.ScoreColumns(scoreData)
	fields["score_data"] = scoreData
	if projection.HasRequiredScores(scoreData) {
		fields["completed_at"] = now
	}
	return fields
}

// Create inserts a new artifact for userID. is_public defaults to true.
func (s *Artifacts) Create(ctx context.Context, userID string, fields map[string]any) (*models.Artifact, []string, error) {
	db, err := conn(s.db)
	if err != nil {
		return nil, nil, err
	}
	payload, err := PrepareCreate(userID, fields)
	if err != nil {
		return nil, nil, err
	}

	var out models.Artifact
	warnings, err := WriteTolerant(s.log, artifactTable, payload, func(p map[string]any) error {
		query, args, err := buildInsert(artifactTable, p)
		if err != nil {
			return err
		}
		return db.QueryRowxContext(ctx, query, args...).StructScan(&out)
	})
	if err != nil {
		return nil, warnings, fmt.Errorf("insert artifact: %w", err)
	}
	return &out, warnings, nil
}

// Get returns one artifact or ErrNotFound.
func (s *Artifacts) Get(ctx context.Context, id string) (*models.Artifact, error) {
	db, err := conn(s.db)
	if err != nil {
		return nil, err
	}
	var a models.Artifact
	if err := db.GetContext(ctx, &a, `SELECT * FROM athlete_profiles WHERE id=$1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// owned loads an artifact and hides it when actorUserID is not the owner.
func (s *Artifacts) owned(ctx context.Context, id, actorUserID string) (*models.Artifact, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != actorUserID {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *Artifacts) update(ctx context.Context, id string, fields map[string]any) (*models.Artifact, []string, error) {
	db, err := conn(s.db)
	if err != nil {
		return nil, nil, err
	}
	var out models.Artifact
	warnings, err := WriteTolerant(s.log, artifactTable, fields, func(p map[string]any) error {
		query, args, err := buildUpdate(artifactTable, "id", id, p)
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

// Update replaces performance fields of an owned artifact and clears its scores,
// since they no longer describe the edited profile.
func (s *Artifacts) Update(ctx context.Context, id, actorUserID string, fields map[string]any) (*models.Artifact, []string, error) {
	if _, err := s.owned(ctx, id, actorUserID); err != nil {
		return nil, nil, err
	}
	payload, err := PrepareUpdate(fields)
	if err != nil {
		return nil, nil, err
	}
	return s.update(ctx, id, payload)
}

// PrepareUpdate validates an edit payload and adds the score reset.
func PrepareUpdate(fields map[string]any) (map[string]any, error) {
	if profile, ok := fields["profile_json"].(map[string]any); ok {
		if err := projection.CheckNoPersonalData(profile); err != nil {
			return nil, err
		}
	}
	payload := projection.ClearedScoreColumns()
	for k, v := range fields {
		if k == "id" || k == "user_id" || k == "created_at" {
			continue
		}
		payload[k] = v
	}
	return payload, nil
}

// PatchScores stores the raw scoring payload and its scalar projections.
func (s *Artifacts) PatchScores(ctx context.Context, id string, scoreData map[string]any) (*models.Artifact, []string, error) {
	return s.update(ctx, id, ScorePatch(scoreData, time.Now().UTC()))
}

// SetVisibility toggles is_public on an artifact owned by actorUserID.
func (s *Artifacts) SetVisibility(ctx context.Context, id string, isPublic bool, actorUserID string) (*models.Artifact, error) {
	if _, err := s.owned(ctx, id, actorUserID); err != nil {
		return nil, err
	}
	a, _, err := s.update(ctx, id, map[string]any{"is_public": isPublic})
	return a, err
}

// Delete removes an artifact owned by actorUserID.
func (s *Artifacts) Delete(ctx context.Context, id, actorUserID string) error {
	db, err := conn(s.db)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM athlete_profiles WHERE id=$1 AND user_id=$2`, id, actorUserID)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPublicComplete returns public artifacts carrying all seven required scores.
func (s *Artifacts) ListPublicComplete(ctx context.Context) ([]models.Artifact, error) {
	db, err := conn(s.db)
	if err != nil {
		return nil, err
	}
	var out []models.Artifact
	query := `SELECT * FROM athlete_profiles WHERE is_public AND ` + completeScoresClause +
		` ORDER BY hybrid_score DESC, updated_at DESC`
	if err := db.SelectContext(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns a user's artifacts, newest first.
func (s *Artifacts) ListByUser(ctx context.Context, userID string, f ListFilter) ([]models.Artifact, error) {
	db, err := conn(s.db)
	if err != nil {
		return nil, err
	}
	query := `SELECT * FROM athlete_profiles WHERE user_id=$1`
	if f.PublicOnly {
		query += ` AND is_public`
	}
	if f.CompleteOnly {
		query += ` AND ` + completeScoresClause
	}
	query += ` ORDER BY created_at DESC`

	var out []models.Artifact
	if err := db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUnscored returns artifacts still waiting for a hybrid score, oldest first.
func (s *Artifacts) ListUnscored(ctx context.Context, limit int) ([]models.Artifact, error) {
	db, err := conn(s.db)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	var out []models.Artifact
	if err := db.SelectContext(ctx, &out,
		`SELECT * FROM athlete_profiles WHERE hybrid_score IS NULL ORDER BY created_at ASC LIMIT $1`, limit); err != nil {
		return nil, err
	}
	return out, nil
}
