package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"hybridhouse/internal/interview"
	mw "hybridhouse/internal/middleware"
	"hybridhouse/internal/models"
)

type InterviewHandler struct {
	engine Interviewer
	log    *zap.Logger
}

func NewInterviewHandler(engine Interviewer, log *zap.Logger) *InterviewHandler {
	return &InterviewHandler{engine: engine, log: log.With(zap.String("component", "interview_api"))}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Message string `json:"message"`
}

// lastUserMessage is the newest user turn; the server keeps the transcript.
func (c chatRequest) lastUserMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == models.RoleUser {
			return c.Messages[i].Content
		}
	}
	return c.Message
}

func (h *InterviewHandler) Start(w http.ResponseWriter, r *http.Request) {
	u, _ := mw.UserFromContext(r.Context())
	reply, err := h.engine.Start(r.Context(), u.ID, u.Email)
	if err != nil {
		h.log.Error("start interview failed", zap.String("user_id", u.ID), zap.Error(err))
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *InterviewHandler) Chat(w http.ResponseWriter, r *http.Request) {
	u, _ := mw.UserFromContext(r.Context())
	var body chatRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(body.SessionID) == "" {
		writeError(w, http.StatusUnprocessableEntity, "session_id is required")
		return
	}

	reply, err := h.engine.Chat(r.Context(), body.SessionID, u.ID, body.lastUserMessage())
	if err != nil {
		interviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// Session returns the caller's session with its transcript.
func (h *InterviewHandler) Session(w http.ResponseWriter, r *http.Request) {
	u, _ := mw.UserFromContext(r.Context())
	sess, err := h.engine.Session(r.Context(), chi.URLParam(r, "id"), u.ID)
	if err != nil {
		interviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func interviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interview.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, interview.ErrSessionInactive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, interview.ErrEmptyMessage):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		storeError(w, err)
	}
}
