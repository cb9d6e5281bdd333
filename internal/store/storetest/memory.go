// Package storetest provides in-memory stores with the same method sets as
// package store, for tests that should not need Postgres.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"hybridhouse/internal/models"
	"hybridhouse/internal/store"
)

// apply overlays column-keyed fields onto dst through its JSON shape.
func apply(dst any, fields map[string]any) error {
	b, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	for k, v := range fields {
		m[k] = v
	}
	if b, err = json.Marshal(m); err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// schema simulates columns missing from a table.
type schema struct {
	table   string
	missing map[string]bool
}

func (s schema) check(fields map[string]any) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s.missing[k] {
			return &pgconn.PgError{
				Code:    "42703",
				Message: fmt.Sprintf(`column "%s" of relation "%s" does not exist`, k, s.table),
			}
		}
	}
	return nil
}

// Identities is an in-memory identity store.
type Identities struct {
	mu     sync.Mutex
	rows   map[string]models.Identity
	schema schema
}

// NewIdentities returns an empty store whose table lacks the given columns.
func NewIdentities(missingColumns ...string) *Identities {
	s := &Identities{rows: map[string]models.Identity{}, schema: schema{table: "user_profiles", missing: map[string]bool{}}}
	for _, c := range missingColumns {
		s.schema.missing[c] = true
	}
	return s
}

func (s *Identities) Put(id models.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id.UserID] = id
}

func (s *Identities) Get(_ context.Context, userID string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &row, nil
}

func (s *Identities) GetOrCreate(ctx context.Context, userID, email string) (*models.Identity, error) {
	s.mu.Lock()
	if _, ok := s.rows[userID]; !ok {
		now := time.Now().UTC()
		row := models.Identity{UserID: userID, CreatedAt: now, UpdatedAt: now, Wearables: []string{}}
		if email != "" {
			display := store.EmailLocalPart(email)
			row.Email = &email
			row.DisplayName = &display
		}
		s.rows[userID] = row
	}
	s.mu.Unlock()
	return s.Get(ctx, userID)
}

func (s *Identities) Patch(_ context.Context, userID string, fields map[string]any) (*models.Identity, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[userID]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	patch := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != "user_id" {
			patch[k] = v
		}
	}
	warnings, err := store.WriteTolerant(nil, s.schema.table, patch, func(p map[string]any) error {
		if err := s.schema.check(p); err != nil {
			return err
		}
		return apply(&row, p)
	})
	if err != nil {
		return nil, warnings, err
	}
	row.UpdatedAt = time.Now().UTC()
	s.rows[userID] = row
	return &row, warnings, nil
}

func (s *Identities) ListByIDs(_ context.Context, userIDs []string) ([]models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Identity
	for _, id := range userIDs {
		if row, ok := s.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// Artifacts is an in-memory artifact store.
type Artifacts struct {
	mu     sync.Mutex
	rows   map[string]models.Artifact
	schema schema
}

func NewArtifacts(missingColumns ...string) *Artifacts {
	s := &Artifacts{rows: map[string]models.Artifact{}, schema: schema{table: "athlete_profiles", missing: map[string]bool{}}}
	for _, c := range missingColumns {
		s.schema.missing[c] = true
	}
	return s
}

// Put stores a as is. Zero timestamps are set to now.
func (s *Artifacts) Put(a models.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	s.rows[a.ID] = a
}

func (s *Artifacts) Create(_ context.Context, userID string, fields map[string]any) (*models.Artifact, []string, error) {
	payload, err := store.PrepareCreate(userID, fields)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var row models.Artifact
	warnings, err := store.WriteTolerant(nil, s.schema.table, payload, func(p map[string]any) error {
		if err := s.schema.check(p); err != nil {
			return err
		}
		row = models.Artifact{CreatedAt: now, UpdatedAt: now}
		return apply(&row, p)
	})
	if err != nil {
		return nil, warnings, err
	}
	s.rows[row.ID] = row
	return &row, warnings, nil
}

func (s *Artifacts) Get(_ context.Context, id string) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &row, nil
}

func (s *Artifacts) patch(id string, fields map[string]any) (*models.Artifact, []string, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	warnings, err := store.WriteTolerant(nil, s.schema.table, fields, func(p map[string]any) error {
		if err := s.schema.check(p); err != nil {
			return err
		}
		return apply(&row, p)
	})
	if err != nil {
		return nil, warnings, err
	}
	row.UpdatedAt = time.Now().UTC()
	s.rows[id] = row
	return &row, warnings, nil
}

func (s *Artifacts) Update(_ context.Context, id, actorUserID string, fields map[string]any) (*models.Artifact, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; !ok || row.UserID != actorUserID {
		return nil, nil, store.ErrNotFound
	}
	payload, err := store.PrepareUpdate(fields)
	if err != nil {
		return nil, nil, err
	}
	return s.patch(id, payload)
}

func (s *Artifacts) PatchScores(_ context.Context, id string, scoreData map[string]any) (*models.Artifact, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patch(id, store.ScorePatch(scoreData, time.Now().UTC()))
}

func (s *Artifacts) SetVisibility(_ context.Context, id string, isPublic bool, actorUserID string) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; !ok || row.UserID != actorUserID {
		return nil, store.ErrNotFound
	}
	a, _, err := s.patch(id, map[string]any{"is_public": isPublic})
	return a, err
}

func (s *Artifacts) Delete(_ context.Context, id, actorUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; !ok || row.UserID != actorUserID {
		return store.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *Artifacts) ListPublicComplete(_ context.Context) ([]models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Artifact
	for _, row := range s.rows {
		if row.IsPublic && row.ScoreComplete() {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if *out[i].HybridScore != *out[j].HybridScore {
			return *out[i].HybridScore > *out[j].HybridScore
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Artifacts) ListByUser(_ context.Context, userID string, f store.ListFilter) ([]models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Artifact
	for _, row := range s.rows {
		if row.UserID != userID {
			continue
		}
		if f.PublicOnly && !row.IsPublic {
			continue
		}
		if f.CompleteOnly && !row.ScoreComplete() {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Artifacts) ListUnscored(_ context.Context, limit int) ([]models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Artifact
	for _, row := range s.rows {
		if row.HybridScore == nil {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Sessions is an in-memory session store.
type Sessions struct {
	mu   sync.Mutex
	rows map[string]models.Session
}

func NewSessions() *Sessions {
	return &Sessions{rows: map[string]models.Session{}}
}

func copySession(s models.Session) models.Session {
	s.Messages = append([]models.Message(nil), s.Messages...)
	return s
}

func (st *Sessions) Replace(_ context.Context, s *models.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, row := range st.rows {
		if row.UserID == s.UserID && row.Status == models.SessionActive {
			delete(st.rows, id)
		}
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	st.rows[s.ID] = copySession(*s)
	return nil
}

func (st *Sessions) Get(_ context.Context, id string) (*models.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	row, ok := st.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	row = copySession(row)
	return &row, nil
}

func (st *Sessions) Save(_ context.Context, s *models.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.rows[s.ID]; !ok {
		return store.ErrNotFound
	}
	s.UpdatedAt = time.Now().UTC()
	st.rows[s.ID] = copySession(*s)
	return nil
}

// ActiveCount returns how many active sessions userID has.
func (st *Sessions) ActiveCount(userID string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for _, row := range st.rows {
		if row.UserID == userID && row.Status == models.SessionActive {
			n++
		}
	}
	return n
}
