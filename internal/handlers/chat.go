package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"yojana-backend/internal/conversation"
	"yojana-backend/internal/middleware"
	"yojana-backend/internal/models"
	"yojana-backend/internal/presentation"
)

type ChatHandler struct {
	sessions *conversation.Manager
}

func NewChatHandler(sessions *conversation.Manager) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

type sessionResponse struct {
	SessionID uuid.UUID         `json:"session_id"`
	View      presentation.View `json:"view"`
}

func viewOf(s *conversation.Session) sessionResponse {
	return sessionResponse{SessionID: s.ID, View: presentation.BuildView(s.Snapshot())}
}

// CreateSession starts a conversation. The upstream is picked from the host
// the browser is on, taken from Origin when present.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	user := &models.User{FullName: middleware.GetUserName(r.Context())}

	s := h.sessions.Create(userID, user.FirstName(), clientHost(r))
	writeJSON(w, http.StatusCreated, viewOf(s))
}

func clientHost(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			return u.Host
		}
	}
	if host, _, err := net.SplitHostPort(r.Host); err == nil {
		return host
	}
	return r.Host
}

func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, (*conversation.Session).Submit)
}

// Refine answers the assistant's clarifying question through /refine.
func (h *ChatHandler) Refine(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, (*conversation.Session).Refine)
}

func (h *ChatHandler) submit(w http.ResponseWriter, r *http.Request, send func(*conversation.Session, string) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := send(s, req.Message); err != nil {
		handleServiceError(w, r, err)
		return
	}

	// Blank input is dropped without a request.
	status := http.StatusAccepted
	if strings.TrimSpace(req.Message) == "" {
		status = http.StatusOK
	}
	writeJSON(w, status, viewOf(s))
}

func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return
	}
	if err := h.sessions.Close(id, middleware.GetUserID(r.Context())); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) session(w http.ResponseWriter, r *http.Request) (*conversation.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return nil, false
	}

	s, err := h.sessions.Get(id, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return s, true
}
