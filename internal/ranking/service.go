package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hybridhouse/internal/cache"
	"hybridhouse/internal/models"
)

const boardKey = "leaderboard:v1"

var ErrUnscored = errors.New("artifact has no hybrid score")

type ArtifactReader interface {
	ListPublicComplete(ctx context.Context) ([]models.Artifact, error)
	Get(ctx context.Context, id string) (*models.Artifact, error)
}

type IdentityReader interface {
	ListByIDs(ctx context.Context, userIDs []string) ([]models.Identity, error)
}

// Board is one materialized leaderboard snapshot.
type Board struct {
	Rows        []models.LeaderboardRow `json:"rows"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// Leaderboard is a filtered view of a Board.
type Leaderboard struct {
	Rows        []models.LeaderboardRow
	Total       int
	TotalPublic int
	Stats       Stats
	LastUpdated time.Time
}

// Ranking places one artifact's hybrid score against the board.
type Ranking struct {
	HybridScore   float64
	Position      int
	TotalAthletes int
	Percentile    float64
	OnLeaderboard bool
}

type Service struct {
	artifacts  ArtifactReader
	identities IdentityReader
	cache      cache.Cache
	ttl        time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewService builds the ranking service. c may be nil to disable snapshot caching.
func NewService(artifacts ArtifactReader, identities IdentityReader, c cache.Cache, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{
		artifacts:  artifacts,
		identities: identities,
		cache:      c,
		ttl:        ttl,
		log:        log.With(zap.String("component", "ranking")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Board returns the full deduplicated leaderboard, from cache when fresh.
func (s *Service) Board(ctx context.Context) (*Board, error) {
	if s.cache != nil {
		var b Board
		ok, err := s.cache.Get(ctx, boardKey, &b)
		if err != nil {
			s.log.Warn("leaderboard cache read failed", zap.Error(err))
		} else if ok {
			return &b, nil
		}
	}

	artifacts, err := s.artifacts.ListPublicComplete(ctx)
	if err != nil {
		return nil, fmt.Errorf("list public artifacts: %w", err)
	}
	userIDs := make([]string, 0, len(artifacts))
	seen := map[string]bool{}
	for _, a := range artifacts {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			userIDs = append(userIDs, a.UserID)
		}
	}
	ids, err := s.identities.ListByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	byUser := make(map[string]models.Identity, len(ids))
	for _, id := range ids {
		byUser[id.UserID] = id
	}

	now := s.now()
	b := &Board{Rows: Build(artifacts, byUser, now), GeneratedAt: now}
	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.Set(ctx, boardKey, b, s.ttl); err != nil {
			s.log.Warn("leaderboard cache write failed", zap.Error(err))
		}
	}
	return b, nil
}

// Leaderboard filters the board and computes stats over the matching rows.
func (s *Service) Leaderboard(ctx context.Context, f Filter) (*Leaderboard, error) {
	b, err := s.Board(ctx)
	if err != nil {
		return nil, err
	}
	all, matched := Apply(b.Rows, Filter{Gender: f.Gender, Country: f.Country, MinAge: f.MinAge, MaxAge: f.MaxAge})
	rows := all
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return &Leaderboard{
		Rows:        rows,
		Total:       matched,
		TotalPublic: len(b.Rows),
		Stats:       ComputeStats(Scores(all)),
		LastUpdated: b.GeneratedAt,
	}, nil
}

// Ranking reports where an artifact stands. Artifacts missing from the public
// board (private, or a user's lower duplicate) get a hypothetical rank.
func (s *Service) Ranking(ctx context.Context, artifactID string) (*Ranking, error) {
	var (
		board    *Board
		artifact *models.Artifact
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		board, err = s.Board(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		artifact, err = s.artifacts.Get(gctx, artifactID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if artifact.HybridScore == nil {
		return nil, ErrUnscored
	}
	score := *artifact.HybridScore

	if pos, total, ok := RankForArtifact(board.Rows, artifactID); ok {
		others := make([]float64, 0, len(board.Rows)-1)
		for _, r := range board.Rows {
			if r.ArtifactID != artifactID {
				others = append(others, r.Score)
			}
		}
		return &Ranking{
			HybridScore:   score,
			Position:      pos,
			TotalAthletes: total,
			Percentile:    Percentile(others, score),
			OnLeaderboard: true,
		}, nil
	}

	scores := Scores(board.Rows)
	pos, total := HypotheticalRank(scores, score)
	return &Ranking{
		HybridScore:   score,
		Position:      pos,
		TotalAthletes: total,
		Percentile:    Percentile(scores, score),
	}, nil
}

// Invalidate drops the cached snapshot.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, boardKey); err != nil {
		s.log.Warn("leaderboard cache invalidation failed", zap.Error(err))
	}
}
