package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hybridhouse/internal/models"
	"hybridhouse/internal/projection"
	"hybridhouse/internal/store"
)

type UnscoredLister interface {
	ListUnscored(ctx context.Context, limit int) ([]models.Artifact, error)
}

type IdentityGetter interface {
	Get(ctx context.Context, userID string) (*models.Identity, error)
}

// RescoreResult counts the outcome of one Rescore pass.
type RescoreResult struct {
	Attempted int      `json:"attempted"`
	Scored    int      `json:"scored"`
	Failed    []string `json:"failed,omitempty"`
}

// Rescore re-sends score-less artifacts to the webhook, rebuilding the full
// athlete profile from the stored profile_json and the owner's identity.
// Individual failures are counted, not returned.
func (d *Dispatcher) Rescore(ctx context.Context, artifacts UnscoredLister, identities IdentityGetter, limit, workers int) (*RescoreResult, error) {
	if !d.Configured() {
		return nil, ErrNotConfigured
	}
	pending, err := artifacts.ListUnscored(ctx, limit)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 4
	}

	res := &RescoreResult{Attempted: len(pending)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, a := range pending {
		g.Go(func() error {
			_, err := d.Score(gctx, a.ID, d.fullProfile(gctx, a, identities))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.log.Warn("rescore failed", zap.String("artifact_id", a.ID), zap.Error(err))
				res.Failed = append(res.Failed, a.ID)
				return nil
			}
			res.Scored++
			return nil
		})
	}
	_ = g.Wait()
	return res, ctx.Err()
}

func (d *Dispatcher) fullProfile(ctx context.Context, a models.Artifact, identities IdentityGetter) map[string]any {
	var stored map[string]any
	if len(a.ProfileJSON) > 0 {
		if err := json.Unmarshal(a.ProfileJSON, &stored); err != nil {
			d.log.Warn("stored profile_json unreadable", zap.String("artifact_id", a.ID), zap.Error(err))
		}
	}
	id, err := identities.Get(ctx, a.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		d.log.Warn("identity lookup failed", zap.String("user_id", a.UserID), zap.Error(err))
	}
	return projection.Normalize(projection.Rehydrate(stored, id))
}
