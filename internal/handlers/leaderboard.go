package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"hybridhouse/internal/projection"
	"hybridhouse/internal/ranking"
)

const maxLeaderboardLimit = 500

type LeaderboardHandler struct {
	ranker Ranker
	log    *zap.Logger
}

func NewLeaderboardHandler(ranker Ranker, log *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{ranker: ranker, log: log.With(zap.String("component", "leaderboard"))}
}

func parseFilter(r *http.Request) (ranking.Filter, error) {
	q := r.URL.Query()
	f := ranking.Filter{Country: strings.TrimSpace(q.Get("country"))}
	if g := q.Get("gender"); g != "" && !strings.EqualFold(g, "all") {
		f.Gender, _ = projection.NormalizeGender(g)
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"min_age", &f.MinAge},
		{"max_age", &f.MaxAge},
		{"limit", &f.Limit},
	}
	for _, p := range ints {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New(p.key + " must be a non-negative integer")
		}
		*p.dst = n
	}
	if f.MinAge > 0 && f.MaxAge > 0 && f.MinAge > f.MaxAge {
		return f, errors.New("min_age must not exceed max_age")
	}
	if f.Limit > maxLeaderboardLimit {
		f.Limit = maxLeaderboardLimit
	}
	return f, nil
}

// Leaderboard serves the deduplicated public board with optional filters.
func (h *LeaderboardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	lb, err := h.ranker.Leaderboard(r.Context(), f)
	if err != nil {
		h.log.Error("leaderboard failed", zap.Error(err))
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"leaderboard":           nonNil(lb.Rows),
		"total":                 lb.Total,
		"total_public_athletes": lb.TotalPublic,
		"ranking_metadata": map[string]any{
			"score_range":            map[string]float64{"min": lb.Stats.Min, "max": lb.Stats.Max},
			"avg_score":              lb.Stats.Avg,
			"percentile_breakpoints": lb.Stats.Breakpoints,
			"last_updated":           lb.LastUpdated,
		},
	})
}

// Ranking places one artifact against the public board.
func (h *LeaderboardHandler) Ranking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rk, err := h.ranker.Ranking(r.Context(), id)
	if err != nil {
		if errors.Is(err, ranking.ErrUnscored) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artifact_id":  id,
		"hybrid_score": rk.HybridScore,
		"ranking": map[string]any{
			"position":       rk.Position,
			"total_athletes": rk.TotalAthletes,
			"percentile":     rk.Percentile,
			"on_leaderboard": rk.OnLeaderboard,
		},
	})
}
