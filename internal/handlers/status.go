package handlers

import (
	"context"
	"net/http"
	"time"
)

const (
	statusOK           = "ok"
	statusError        = "error"
	statusUnconfigured = "unconfigured"
)

// Pinger is anything with a reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// StatusConfig says which optional integrations are set up.
type StatusConfig struct {
	Version           string
	JWTSecretSet      bool
	LLMConfigured     bool
	ScoringConfigured bool
}

// ComponentStatus is one /status row.
type ComponentStatus struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Details   string `json:"details"`
}

type StatusHandler struct {
	db    Pinger
	cache Pinger
	cfg   StatusConfig
}

// NewStatusHandler builds the banner and health endpoints. db and cache may be nil.
func NewStatusHandler(db, cache Pinger, cfg StatusConfig) *StatusHandler {
	return &StatusHandler{db: db, cache: cache, cfg: cfg}
}

func (h *StatusHandler) Banner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "Hybrid House API",
		"status":  "running",
		"version": h.cfg.Version,
	})
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rows := []ComponentStatus{
		ping(ctx, "database", h.db, "connected", "DATABASE_URL not set"),
		flag("jwt_secret", h.cfg.JWTSecretSet, "configured", "JWT_SECRET not set"),
		flag("llm", h.cfg.LLMConfigured, "configured", "OPENAI_API_KEY not set"),
		flag("scoring_webhook", h.cfg.ScoringConfigured, "configured", "SCORING_WEBHOOK_URL not set"),
		ping(ctx, "cache", h.cache, "reachable", "in-process only"),
	}
	writeJSON(w, http.StatusOK, rows)
}

func ping(ctx context.Context, component string, p Pinger, okDetail, missingDetail string) ComponentStatus {
	if p == nil {
		return ComponentStatus{Component: component, Status: statusUnconfigured, Details: missingDetail}
	}
	if err := p.Ping(ctx); err != nil {
		return ComponentStatus{Component: component, Status: statusError, Details: err.Error()}
	}
	return ComponentStatus{Component: component, Status: statusOK, Details: okDetail}
}

func flag(component string, set bool, okDetail, missingDetail string) ComponentStatus {
	if !set {
		return ComponentStatus{Component: component, Status: statusUnconfigured, Details: missingDetail}
	}
	return ComponentStatus{Component: component, Status: statusOK, Details: okDetail}
}
