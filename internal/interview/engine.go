// Package interview runs the LLM-driven athlete interview: one live session per
// user, turn dispatch, completion detection and hand-off to the stores and the
// scoring service.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hybridhouse/internal/llm"
	"hybridhouse/internal/logger"
	"hybridhouse/internal/models"
	"hybridhouse/internal/projection"
	"hybridhouse/internal/store"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionInactive = errors.New("session is not active")
	ErrEmptyMessage    = errors.New("message is empty")
)

type SessionStore interface {
	Replace(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
}

type IdentityStore interface {
	GetOrCreate(ctx context.Context, userID, email string) (*models.Identity, error)
	Patch(ctx context.Context, userID string, fields map[string]any) (*models.Identity, []string, error)
}

type ArtifactStore interface {
	Create(ctx context.Context, userID string, fields map[string]any) (*models.Artifact, []string, error)
}

// Scorer sends a finished profile to the scoring service and stores the result.
type Scorer interface {
	Score(ctx context.Context, artifactID string, profile map[string]any) (map[string]any, error)
}

type Config struct {
	PromptID     string
	Instructions string
	AsyncScoring bool
}

// Reply is what the client sees after start or chat.
type Reply struct {
	SessionID  string         `json:"session_id"`
	Status     string         `json:"status"`
	Response   string         `json:"response"`
	Complete   bool           `json:"complete"`
	ArtifactID string         `json:"artifact_id,omitempty"`
	Profile    map[string]any `json:"profile,omitempty"`
	Scores     map[string]any `json:"scores,omitempty"`
	Milestone  string         `json:"milestone,omitempty"`
	Warnings   []string       `json:"warning,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type Engine struct {
	sessions   SessionStore
	identities IdentityStore
	artifacts  ArtifactStore
	llm        llm.Client
	scorer     Scorer
	cfg        Config
	log        *zap.Logger

	now   func() time.Time
	locks keyedMutex
	wg    sync.WaitGroup
}

func NewEngine(sessions SessionStore, identities IdentityStore, artifacts ArtifactStore,
	client llm.Client, scorer Scorer, cfg Config, log *zap.Logger) *Engine {
	if cfg.PromptID == "" && cfg.Instructions == "" {
		cfg.Instructions = defaultInstructions
	}
	return &Engine{
		sessions:   sessions,
		identities: identities,
		artifacts:  artifacts,
		llm:        client,
		scorer:     scorer,
		cfg:        cfg,
		log:        log.With(zap.String("component", "interview")),
		now:        func() time.Time { return time.Now().UTC() },
		locks:      keyedMutex{m: map[string]*lockEntry{}},
	}
}

// Wait blocks until background scoring started by the engine has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Start replaces any active session of userID with a fresh one and returns the
// opening assistant message.
func (e *Engine) Start(ctx context.Context, userID, email string) (*Reply, error) {
	if _, err := e.identities.GetOrCreate(ctx, userID, email); err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}

	sess := &models.Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Status:   models.SessionActive,
		Messages: []models.Message{},
	}
	if err := e.sessions.Replace(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	text := welcomeMessage
	resp, err := e.llm.Create(ctx, llm.Request{
		Input:        []llm.InputMessage{{Role: models.RoleUser, Content: "start"}},
		PromptID:     e.cfg.PromptID,
		Instructions: e.cfg.Instructions,
	})
	if err != nil {
		e.log.Warn("priming turn failed, using canned welcome", zap.String("session_id", sess.ID), zap.Error(err))
	} else {
		text = resp.Outputs[0]
		if resp.ID != "" {
			sess.LastResponseID = &resp.ID
		}
	}

	sess.Messages = append(sess.Messages, e.message(models.RoleAssistant, text))
	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	e.log.Info("interview started", zap.String("session_id", sess.ID), zap.String("user_id", userID))

	return &Reply{
		SessionID: sess.ID,
		Status:    sess.Status,
		Response:  text,
		Milestone: Milestone(text),
	}, nil
}

// Chat records one user turn and returns the assistant's answer. LLM failures
// come back as a soft reply with Error set and the session still active.
func (e *Engine) Chat(ctx context.Context, sessionID, userID, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	unlock := e.locks.lock(sessionID)
	defer unlock()

	sess, err := e.owned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionActive {
		return nil, ErrSessionInactive
	}

	sess.Messages = append(sess.Messages, e.message(models.RoleUser, message))
	if IsForceComplete(message) {
		return e.forceComplete(ctx, sess)
	}
	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save user turn: %w", err)
	}

	req := llm.Request{
		Input:        history(sess.Messages),
		PromptID:     e.cfg.PromptID,
		Instructions: e.cfg.Instructions,
	}
	if sess.LastResponseID != nil {
		req.PreviousResponseID = *sess.LastResponseID
	}
	resp, err := e.llm.Create(ctx, req)
	if err != nil {
		e.log.Error("chat turn failed", zap.String("session_id", sess.ID), zap.Error(err))
		return &Reply{
			SessionID: sess.ID,
			Status:    sess.Status,
			Response:  upstreamErrorMessage,
			Error:     "llm_unavailable",
		}, nil
	}
	if len(resp.Outputs) > 1 {
		e.log.Info("discarding extra model outputs",
			zap.String("session_id", sess.ID),
			zap.Int("outputs", len(resp.Outputs)),
		)
	}
	text := resp.Outputs[0]
	if resp.ID != "" {
		sess.LastResponseID = &resp.ID
	}
	sess.Messages = append(sess.Messages, e.message(models.RoleAssistant, text))

	if HasSentinel(text) {
		return e.complete(ctx, sess, text)
	}

	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save assistant turn: %w", err)
	}
	return &Reply{
		SessionID: sess.ID,
		Status:    sess.Status,
		Response:  text,
		Milestone: Milestone(text),
	}, nil
}

// Session returns the caller's session.
func (e *Engine) Session(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	return e.owned(ctx, sessionID, userID)
}

func (e *Engine) owned(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (e *Engine) complete(ctx context.Context, sess *models.Session, text string) (*Reply, error) {
	profile, err := ParseProfile(text)
	if err != nil {
		e.log.Warn("unparseable athlete profile",
			zap.String("session_id", sess.ID),
			zap.String("text", logger.Truncate(text, 300)),
			zap.Error(err),
		)
		sess.Status = models.SessionError
		if err := e.sessions.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("save errored session: %w", err)
		}
		return &Reply{
			SessionID: sess.ID,
			Status:    sess.Status,
			Response:  parseErrorMessage,
			Error:     "profile_parse_failed",
		}, nil
	}

	prose, _ := SplitSentinel(text)
	return e.finalize(ctx, sess, profile, prose, false)
}

// forceComplete salvages the last emitted profile from the transcript, if any,
// and finishes the interview with whatever it holds.
func (e *Engine) forceComplete(ctx context.Context, sess *models.Session) (*Reply, error) {
	profile := map[string]any{}
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		m := sess.Messages[i]
		if m.Role != models.RoleAssistant || !HasSentinel(m.Content) {
			continue
		}
		if p, err := ParseProfile(m.Content); err == nil {
			profile = p
			break
		}
	}
	profile["force_completed"] = true
	e.log.Info("force completing interview", zap.String("session_id", sess.ID), zap.Int("fields", len(profile)))
	return e.finalize(ctx, sess, profile, "", true)
}

func (e *Engine) finalize(ctx context.Context, sess *models.Session, raw map[string]any, prose string, forced bool) (*Reply, error) {
	profile := projection.Normalize(raw)
	proj := projection.Project(profile, nil)

	var warnings []string
	if len(proj.Identity) > 0 {
		_, w, err := e.identities.Patch(ctx, sess.UserID, proj.Identity)
		if err != nil {
			return nil, fmt.Errorf("save identity: %w", err)
		}
		warnings = append(warnings, w...)
	}

	artifact, w, err := e.artifacts.Create(ctx, sess.UserID, proj.Performance)
	if err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	warnings = append(warnings, w...)

	response := prose
	if response == "" {
		response = completeMessage
	}
	if forced {
		sess.Messages = append(sess.Messages, e.message(models.RoleAssistant, response))
	}
	sess.Status = models.SessionComplete
	sess.ArtifactID = &artifact.ID
	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save completed session: %w", err)
	}
	e.log.Info("interview complete",
		zap.String("session_id", sess.ID),
		zap.String("artifact_id", artifact.ID),
		zap.Bool("forced", forced),
		zap.Int("warnings", len(warnings)),
	)

	reply := &Reply{
		SessionID:  sess.ID,
		Status:     sess.Status,
		Response:   response,
		Complete:   true,
		ArtifactID: artifact.ID,
		Profile:    profile,
		Warnings:   warnings,
	}
	reply.Scores = e.dispatchScoring(ctx, artifact.ID, profile)
	return reply, nil
}

// dispatchScoring never fails the completion. In async mode it returns nil
// immediately and scoring continues detached from the request context.
func (e *Engine) dispatchScoring(ctx context.Context, artifactID string, profile map[string]any) map[string]any {
	if e.scorer == nil {
		return nil
	}
	if e.cfg.AsyncScoring {
		bg := context.WithoutCancel(ctx)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if _, err := e.scorer.Score(bg, artifactID, profile); err != nil {
				e.log.Warn("background scoring failed", zap.String("artifact_id", artifactID), zap.Error(err))
			}
		}()
		return nil
	}
	scores, err := e.scorer.Score(ctx, artifactID, profile)
	if err != nil {
		e.log.Warn("scoring failed", zap.String("artifact_id", artifactID), zap.Error(err))
		return nil
	}
	return scores
}

func (e *Engine) message(role, content string) models.Message {
	return models.Message{Role: role, Content: content, Timestamp: e.now()}
}

// history strips stored turns down to the role/content pairs the provider accepts.
func history(msgs []models.Message) []llm.InputMessage {
	out := make([]llm.InputMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.InputMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// keyedMutex serializes turns of the same session within this process.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	ent, ok := k.m[key]
	if !ok {
		ent = &lockEntry{}
		k.m[key] = ent
	}
	ent.refs++
	k.mu.Unlock()

	ent.mu.Lock()
	return func() {
		ent.mu.Unlock()
		k.mu.Lock()
		ent.refs--
		if ent.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
