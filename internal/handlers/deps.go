package handlers

import (
	"context"

	"hybridhouse/internal/interview"
	"hybridhouse/internal/models"
	"hybridhouse/internal/ranking"
	"hybridhouse/internal/store"
)

// IdentityStore is the subset of store.Identities the handlers use.
type IdentityStore interface {
	Get(ctx context.Context, userID string) (*models.Identity, error)
	GetOrCreate(ctx context.Context, userID, email string) (*models.Identity, error)
	Patch(ctx context.Context, userID string, fields map[string]any) (*models.Identity, []string, error)
}

// ArtifactStore is the subset of store.Artifacts the handlers use.
type ArtifactStore interface {
	Create(ctx context.Context, userID string, fields map[string]any) (*models.Artifact, []string, error)
	Get(ctx context.Context, id string) (*models.Artifact, error)
	Update(ctx context.Context, id, actorUserID string, fields map[string]any) (*models.Artifact, []string, error)
	SetVisibility(ctx context.Context, id string, isPublic bool, actorUserID string) (*models.Artifact, error)
	Delete(ctx context.Context, id, actorUserID string) error
	ListPublicComplete(ctx context.Context) ([]models.Artifact, error)
	ListByUser(ctx context.Context, userID string, f store.ListFilter) ([]models.Artifact, error)
}

// ScoreApplier stores a scoring callback payload on an artifact.
type ScoreApplier interface {
	Apply(ctx context.Context, artifactID string, scores map[string]any) error
}

// Ranker serves leaderboard reads.
type Ranker interface {
	Leaderboard(ctx context.Context, f ranking.Filter) (*ranking.Leaderboard, error)
	Ranking(ctx context.Context, artifactID string) (*ranking.Ranking, error)
	Invalidate(ctx context.Context)
}

// Interviewer runs interview sessions.
type Interviewer interface {
	Start(ctx context.Context, userID, email string) (*interview.Reply, error)
	Chat(ctx context.Context, sessionID, userID, message string) (*interview.Reply, error)
	Session(ctx context.Context, sessionID, userID string) (*models.Session, error)
}
