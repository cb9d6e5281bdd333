package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"hybridhouse/internal/cache"
	"hybridhouse/internal/models"
	"hybridhouse/internal/store"
	"hybridhouse/internal/store/storetest"
)

func seeded(t *testing.T) (*Service, *storetest.Artifacts) {
	t.Helper()
	artifacts := storetest.NewArtifacts()
	identities := storetest.NewIdentities()
	for i, s := range []float64{90, 80, 70} {
		user := string(rune('a' + i))
		artifacts.Put(complete("art-"+user, user, s, t0))
		identities.Put(models.Identity{UserID: user, DisplayName: ptr("Athlete " + user)})
	}
	return NewService(artifacts, identities, cache.NewMemory(), time.Minute, zap.NewNop()), artifacts
}

func TestServiceLeaderboard(t *testing.T) {
	svc, _ := seeded(t)
	lb, err := svc.Leaderboard(context.Background(), Filter{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(lb.Rows) != 2 || lb.Total != 3 || lb.TotalPublic != 3 {
		t.Errorf("leaderboard = %+v", lb)
	}
	if lb.Rows[0].DisplayName != "Athlete a" || lb.Stats.Max != 90 {
		t.Errorf("rows = %+v stats = %+v", lb.Rows, lb.Stats)
	}
}

func TestServiceCachesUntilInvalidated(t *testing.T) {
	svc, artifacts := seeded(t)
	ctx := context.Background()
	if _, err := svc.Board(ctx); err != nil {
		t.Fatal(err)
	}

	artifacts.Put(complete("art-d", "d", 99, t0))
	b, _ := svc.Board(ctx)
	if len(b.Rows) != 3 {
		t.Fatalf("expected cached board, got %d rows", len(b.Rows))
	}

	svc.Invalidate(ctx)
	b, _ = svc.Board(ctx)
	if len(b.Rows) != 4 || b.Rows[0].ArtifactID != "art-d" {
		t.Fatalf("after invalidate rows = %+v", b.Rows)
	}
}

func TestServiceRankingOnBoard(t *testing.T) {
	svc, _ := seeded(t)
	r, err := svc.Ranking(context.Background(), "art-b")
	if err != nil {
		t.Fatal(err)
	}
	if !r.OnLeaderboard || r.Position != 2 || r.TotalAthletes != 3 || r.Percentile != 33.3 {
		t.Errorf("ranking = %+v", r)
	}
}

func TestServiceRankingPrivate(t *testing.T) {
	svc, artifacts := seeded(t)
	private := complete("secret", "p", 85, t0)
	private.IsPublic = false
	artifacts.Put(private)

	r, err := svc.Ranking(context.Background(), "secret")
	if err != nil {
		t.Fatal(err)
	}
	if r.OnLeaderboard || r.Position != 2 || r.TotalAthletes != 4 || r.Percentile != 50 {
		t.Errorf("ranking = %+v", r)
	}
}

func TestServiceRankingErrors(t *testing.T) {
	svc, artifacts := seeded(t)
	artifacts.Put(models.Artifact{ID: "bare", UserID: "x"})
	ctx := context.Background()

	if _, err := svc.Ranking(ctx, "bare"); !errors.Is(err, ErrUnscored) {
		t.Errorf("unscored err = %v", err)
	}
	if _, err := svc.Ranking(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}
