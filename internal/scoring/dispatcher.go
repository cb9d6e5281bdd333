// Package scoring sends finished athlete profiles to the external scoring
// webhook and writes the returned scores onto the artifact.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"hybridhouse/internal/httpx"
	"hybridhouse/internal/logger"
	"hybridhouse/internal/models"
)

var (
	ErrNotConfigured = errors.New("scoring webhook not configured")
	ErrNoScores      = errors.New("scoring response carries no scores")
)

// wrapperKeys are envelopes scoring responses and callbacks may nest scores under.
var wrapperKeys = []string{"scores", "score_data", "output", "data", "body"}

var scoreKeys = []string{
	"hybridScore", "strengthScore", "speedScore", "vo2Score",
	"distanceScore", "volumeScore", "recoveryScore", "enduranceScore",
}

type ScorePatcher interface {
	PatchScores(ctx context.Context, id string, scoreData map[string]any) (*models.Artifact, []string, error)
}

// Invalidator drops derived state (the leaderboard snapshot) after a score lands.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type Dispatcher struct {
	url        string
	httpClient *http.Client
	artifacts  ScorePatcher
	inv        Invalidator
	log        *zap.Logger
}

func NewDispatcher(url string, timeout time.Duration, artifacts ScorePatcher, inv Invalidator, log *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 150 * time.Second
	}
	return &Dispatcher{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: timeout},
		artifacts:  artifacts,
		inv:        inv,
		log:        log.With(zap.String("component", "scoring")),
	}
}

func (d *Dispatcher) Configured() bool {
	return d.url != ""
}

type request struct {
	AthleteProfile map[string]any `json:"athleteProfile"`
	Deliverable    string         `json:"deliverable"`
}

// Score posts profile to the webhook and stores the scores it returns on
// artifactID. Errors are for logging; the artifact stays valid without scores.
func (d *Dispatcher) Score(ctx context.Context, artifactID string, profile map[string]any) (map[string]any, error) {
	if !d.Configured() {
		return nil, ErrNotConfigured
	}
	start := time.Now()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(request{AthleteProfile: profile, Deliverable: "score"}); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scoring request: %w", err)
	}
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read scoring response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpx.StatusError{Service: "scoring", StatusCode: resp.StatusCode, Body: logger.Truncate(string(raw), 300)}
	}

	scores, err := DecodeScores(raw)
	if err != nil {
		d.log.Warn("unusable scoring response",
			zap.String("artifact_id", artifactID),
			zap.String("body", logger.Truncate(string(raw), 300)),
		)
		return nil, err
	}
	if err := d.Apply(ctx, artifactID, scores); err != nil {
		return nil, err
	}
	d.log.Info("artifact scored",
		zap.String("artifact_id", artifactID),
		zap.Any("hybrid_score", scores["hybridScore"]),
		zap.Duration("elapsed", time.Since(start)),
	)
	return scores, nil
}

// Apply stores a score object on an artifact, from a webhook reply or a callback.
func (d *Dispatcher) Apply(ctx context.Context, artifactID string, scores map[string]any) error {
	_, warnings, err := d.artifacts.PatchScores(ctx, artifactID, scores)
	if err != nil {
		return fmt.Errorf("patch scores: %w", err)
	}
	for _, w := range warnings {
		d.log.Warn("score patch warning", zap.String("artifact_id", artifactID), zap.String("warning", w))
	}
	if d.inv != nil {
		d.inv.Invalidate(ctx)
	}
	return nil
}

// DecodeScores parses a scoring response body.
func DecodeScores(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrNoScores
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoScores, err)
	}
	scores, ok := ExtractScores(v)
	if !ok {
		return nil, ErrNoScores
	}
	return scores, nil
}

// ExtractScores finds the score object in v: the object itself, the first
// element of an array, or an object nested under a known envelope key. String
// values holding JSON are decoded.
func ExtractScores(v any) (map[string]any, bool) {
	return extract(v, 0)
}

func extract(v any, depth int) (map[string]any, bool) {
	if depth > 3 {
		return nil, false
	}
	switch t := v.(type) {
	case string:
		var inner any
		if err := json.Unmarshal([]byte(t), &inner); err != nil {
			return nil, false
		}
		return extract(inner, depth+1)
	case []any:
		if len(t) == 0 {
			return nil, false
		}
		return extract(t[0], depth+1)
	case map[string]any:
		if hasScoreKey(t) {
			return t, true
		}
		for _, k := range wrapperKeys {
			if inner, ok := t[k]; ok {
				if s, ok := extract(inner, depth+1); ok {
					return s, true
				}
			}
		}
	}
	return nil, false
}

func hasScoreKey(m map[string]any) bool {
	for _, k := range scoreKeys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
