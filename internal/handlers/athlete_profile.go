package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	mw "hybridhouse/internal/middleware"
	"hybridhouse/internal/models"
	"hybridhouse/internal/projection"
	"hybridhouse/internal/store"
)

type AthleteProfileHandler struct {
	identities IdentityStore
	artifacts  ArtifactStore
	ranker     Ranker
	log        *zap.Logger
	now        func() time.Time
}

func NewAthleteProfileHandler(identities IdentityStore, artifacts ArtifactStore, ranker Ranker, log *zap.Logger) *AthleteProfileHandler {
	return &AthleteProfileHandler{
		identities: identities,
		artifacts:  artifacts,
		ranker:     ranker,
		log:        log.With(zap.String("component", "athlete_profile")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type artifactRequest struct {
	ProfileJSON map[string]any `json:"profile_json"`
	ScoreData   map[string]any `json:"score_data"`
	IsPublic    *bool          `json:"is_public"`
	UserID      string         `json:"user_id"`
}

// Create stores an artifact for the authenticated caller.
func (h *AthleteProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, _ := mw.UserFromContext(r.Context())
	var body artifactRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	h.create(w, r, u.ID, u.Email, body)
}

// CreatePublic stores an artifact without authentication. A synthetic user id
// is generated when the payload carries none. A supplied id must not belong to
// an existing identity; claiming one requires signing in.
func (h *AthleteProfileHandler) CreatePublic(w http.ResponseWriter, r *http.Request) {
	var body artifactRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	userID := strings.TrimSpace(body.UserID)
	if userID == "" {
		userID = uuid.NewString()
	} else {
		_, err := h.identities.Get(r.Context(), userID)
		switch {
		case err == nil:
			writeError(w, http.StatusConflict, "user_id belongs to an existing user; sign in to add profiles")
			return
		case !errors.Is(err, store.ErrNotFound):
			storeError(w, err)
			return
		}
	}
	h.create(w, r, userID, "", body)
}

func (h *AthleteProfileHandler) create(w http.ResponseWriter, r *http.Request, userID, email string, body artifactRequest) {
	if body.ProfileJSON == nil {
		writeError(w, http.StatusUnprocessableEntity, "profile_json is required")
		return
	}
	ctx := r.Context()
	proj := projection.Project(projection.Normalize(body.ProfileJSON), body.ScoreData)

	if _, err := h.identities.GetOrCreate(ctx, userID, email); err != nil {
		storeError(w, err)
		return
	}
	var warnings []string
	if len(proj.Identity) > 0 {
		_, w1, err := h.identities.Patch(ctx, userID, proj.Identity)
		if err != nil {
			storeError(w, err)
			return
		}
		warnings = append(warnings, w1...)
	}

	fields := proj.Performance
	if body.IsPublic != nil {
		fields["is_public"] = *body.IsPublic
	}
	if projection.HasRequiredScores(body.ScoreData) {
		fields["completed_at"] = h.now()
	}
	a, w2, err := h.artifacts.Create(ctx, userID, fields)
	if err != nil {
		storeError(w, err)
		return
	}
	warnings = append(warnings, w2...)
	if a.HasAnyScore() {
		h.ranker.Invalidate(ctx)
	}

	h.log.Info("artifact created", zap.String("artifact_id", a.ID), zap.String("user_id", userID))
	writeJSON(w, http.StatusCreated, withWarning(map[string]any{
		"message": "athlete profile created",
		"user_id": userID,
		"profile": a,
	}, warnings))
}

// Get returns one artifact. Private artifacts are visible to their owner only.
func (h *AthleteProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.artifacts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		storeError(w, err)
		return
	}
	if !a.IsPublic {
		if u, ok := mw.UserFromContext(r.Context()); !ok || u.ID != a.UserID {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
	}
	writeJSON(w, http.StatusOK, a)
}

// ListPublic returns every public, score-complete artifact.
func (h *AthleteProfileHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	list, err := h.artifacts.ListPublicComplete(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": nonNil(list),
		"total":    len(list),
	})
}

// PublicProfile returns an athlete's public identity and public artifacts.
func (h *AthleteProfileHandler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	var (
		id   *models.Identity
		list []models.Artifact
	)
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		id, err = h.identities.Get(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		list, err = h.artifacts.ListByUser(gctx, userID, store.ListFilter{PublicOnly: true})
		return err
	})
	if err := g.Wait(); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_profile":     toPublicIdentityDTO(*id, h.now()),
		"athlete_profiles": nonNil(list),
		"total":            len(list),
	})
}

// Update replaces an owned artifact's profile. Existing scores are cleared.
func (h *AthleteProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, _ := mw.UserFromContext(r.Context())
	var body artifactRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if body.ProfileJSON == nil {
		writeError(w, http.StatusUnprocessableEntity, "profile_json is required")
		return
	}
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	proj := projection.Project(projection.Normalize(body.ProfileJSON), nil)

	fields := proj.Performance
	if body.IsPublic != nil {
		fields["is_public"] = *body.IsPublic
	}
	a, warnings, err := h.artifacts.Update(ctx, id, u.ID, fields)
	if err != nil {
		storeError(w, err)
		return
	}
	if len(proj.Identity) > 0 {
		_, w2, err := h.identities.Patch(ctx, u.ID, proj.Identity)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			storeError(w, err)
			return
		}
		warnings = append(warnings, w2...)
	}
	h.ranker.Invalidate(ctx)

	writeJSON(w, http.StatusOK, withWarning(map[string]any{
		"message": "athlete profile updated",
		"profile": a,
	}, warnings))
}

// SetPrivacy toggles is_public on an owned artifact.
func (h *AthleteProfileHandler) SetPrivacy(w http.ResponseWriter, r *http.Request) {
	u, _ := mw.UserFromContext(r.Context())
	var body struct {
		IsPublic *bool `json:"is_public"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if body.IsPublic == nil {
		writeError(w, http.StatusUnprocessableEntity, "is_public is required")
		return
	}
	a, err := h.artifacts.SetVisibility(r.Context(), chi.URLParam(r, "id"), *body.IsPublic, u.ID)
	if err != nil {
		storeError(w, err)
		return
	}
	h.ranker.Invalidate(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "privacy updated",
		"id":        a.ID,
		"is_public": a.IsPublic,
	})
}

// Delete removes an owned artifact.
func (h *AthleteProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, _ := mw.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.artifacts.Delete(r.Context(), id, u.ID); err != nil {
		storeError(w, err)
		return
	}
	h.ranker.Invalidate(context.WithoutCancel(r.Context()))
	h.log.Info("artifact deleted", zap.String("artifact_id", id), zap.String("user_id", u.ID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "athlete profile deleted", "id": id})
}
