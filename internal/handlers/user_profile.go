package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"hybridhouse/internal/avatar"
	"hybridhouse/internal/coerce"
	mw "hybridhouse/internal/middleware"
	"hybridhouse/internal/projection"
	"hybridhouse/internal/store"
)

type UserProfileHandler struct {
	identities IdentityStore
	artifacts  ArtifactStore
	log        *zap.Logger
	now        func() time.Time
}

func NewUserProfileHandler(identities IdentityStore, artifacts ArtifactStore, log *zap.Logger) *UserProfileHandler {
	return &UserProfileHandler{
		identities: identities,
		artifacts:  artifacts,
		log:        log.With(zap.String("component", "user_profile")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetMe returns the caller's identity, creating it on first visit.
func (h *UserProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, _ := mw.UserFromContext(r.Context())
	id, err := h.identities.GetOrCreate(r.Context(), u.ID, u.Email)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityDTO(*id, h.now()))
}

type updateIdentityRequest struct {
	Name            *string  `json:"name"`
	DisplayName     *string  `json:"display_name"`
	DateOfBirth     *string  `json:"date_of_birth"` // YYYY-MM-DD or MM/DD/YYYY
	Gender          *string  `json:"gender"`
	Country         *string  `json:"country"`
	Location        *string  `json:"location"`
	Timezone        *string  `json:"timezone"`
	HeightIn        *float64 `json:"height_in"`
	WeightLb        *float64 `json:"weight_lb"`
	UnitsPreference *string  `json:"units_preference"`
	PrivacyLevel    *string  `json:"privacy_level"`
	Wearables       []string `json:"wearables"`
}

// fields turns the provided keys into a column patch.
func (b updateIdentityRequest) fields() (map[string]any, error) {
	out := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			out[col] = strings.TrimSpace(*v)
		}
	}
	set("name", b.Name)
	set("display_name", b.DisplayName)
	set("country", b.Country)
	set("location", b.Location)
	set("timezone", b.Timezone)
	set("privacy_level", b.PrivacyLevel)

	if b.DateOfBirth != nil {
		dob, ok := coerce.DateFromMDY(*b.DateOfBirth)
		if !ok {
			return nil, errors.New("date_of_birth must be YYYY-MM-DD or MM/DD/YYYY")
		}
		out["date_of_birth"] = dob
	}
	if b.Gender != nil {
		g, ok := projection.NormalizeGender(*b.Gender)
		if !ok {
			return nil, errors.New("gender must be male, female or unspecified")
		}
		out["gender"] = g
	}
	if b.UnitsPreference != nil {
		switch p := strings.ToLower(strings.TrimSpace(*b.UnitsPreference)); p {
		case "imperial", "metric":
			out["units_preference"] = p
		default:
			return nil, errors.New("units_preference must be imperial or metric")
		}
	}
	if b.HeightIn != nil {
		if *b.HeightIn <= 0 {
			return nil, errors.New("height_in must be positive")
		}
		out["height_in"] = *b.HeightIn
	}
	if b.WeightLb != nil {
		if *b.WeightLb <= 0 {
			return nil, errors.New("weight_lb must be positive")
		}
		out["weight_lb"] = *b.WeightLb
	}
	if b.Wearables != nil {
		out["wearables"] = b.Wearables
	}
	return out, nil
}

// UpdateMe patches the provided identity fields.
func (h *UserProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	u, _ := mw.UserFromContext(r.Context())
	var body updateIdentityRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	fields, err := body.fields()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, err := h.identities.GetOrCreate(r.Context(), u.ID, u.Email)
	if err != nil {
		storeError(w, err)
		return
	}
	var warnings []string
	if len(fields) > 0 {
		if id, warnings, err = h.identities.Patch(r.Context(), u.ID, fields); err != nil {
			storeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, withWarning(map[string]any{
		"user_profile": toIdentityDTO(*id, h.now()),
	}, warnings))
}

// UploadAvatar accepts a multipart "file" image and stores it as a square JPEG data URI.
func (h *UserProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	u, _ := mw.UserFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, avatar.MaxBytes+64<<10)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, avatar.MaxBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	uri, err := avatar.Process(raw, avatar.Size)
	if err != nil {
		if errors.Is(err, avatar.ErrTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "unsupported image")
		return
	}

	if _, err := h.identities.GetOrCreate(r.Context(), u.ID, u.Email); err != nil {
		storeError(w, err)
		return
	}
	id, warnings, err := h.identities.Patch(r.Context(), u.ID, map[string]any{"avatar": uri})
	if err != nil {
		storeError(w, err)
		return
	}
	h.log.Info("avatar updated", zap.String("user_id", u.ID), zap.Int("bytes", len(uri)))
	writeJSON(w, http.StatusOK, withWarning(map[string]any{
		"user_profile": toIdentityDTO(*id, h.now()),
	}, warnings))
}

// MyArtifacts lists the caller's complete artifacts, public or not.
func (h *UserProfileHandler) MyArtifacts(w http.ResponseWriter, r *http.Request) {
	u, _ := mw.UserFromContext(r.Context())
	list, err := h.artifacts.ListByUser(r.Context(), u.ID, store.ListFilter{CompleteOnly: true})
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": nonNil(list),
		"total":    len(list),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
