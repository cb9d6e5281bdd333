package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"hybridhouse/internal/scoring"
)

// artifactIDKeys are where callback bodies without a path id carry the artifact.
var artifactIDKeys = []string{"profileId", "profile_id", "artifact_id", "athleteProfileId"}

// ScoreHandler accepts scoring service callbacks.
type ScoreHandler struct {
	scores ScoreApplier
	log    *zap.Logger
}

func NewScoreHandler(scores ScoreApplier, log *zap.Logger) *ScoreHandler {
	return &ScoreHandler{scores: scores, log: log.With(zap.String("component", "score_callback"))}
}

// ScoreByPath handles callbacks addressed by URL, for both
// /athlete-profile/{id}/score and /webhook/score/{id}.
func (h *ScoreHandler) ScoreByPath(w http.ResponseWriter, r *http.Request) {
	var body any
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	h.apply(w, r, chi.URLParam(r, "id"), body)
}

// ScoreByBody handles callbacks that name the artifact inside the payload.
func (h *ScoreHandler) ScoreByBody(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	var id string
	for _, k := range artifactIDKeys {
		if s, ok := body[k].(string); ok && strings.TrimSpace(s) != "" {
			id = strings.TrimSpace(s)
			break
		}
	}
	if id == "" {
		writeError(w, http.StatusUnprocessableEntity, "artifact id is required (profileId or artifact_id)")
		return
	}
	h.apply(w, r, id, body)
}

func (h *ScoreHandler) apply(w http.ResponseWriter, r *http.Request, id string, body any) {
	scores, ok := scoring.ExtractScores(body)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "no score object in payload")
		return
	}
	if err := h.scores.Apply(r.Context(), id, scores); err != nil {
		h.log.Warn("score callback rejected", zap.String("artifact_id", id), zap.Error(err))
		storeError(w, err)
		return
	}
	h.log.Info("score callback applied", zap.String("artifact_id", id), zap.Any("hybrid_score", scores["hybridScore"]))
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "scores updated",
		"artifact_id": id,
	})
}
