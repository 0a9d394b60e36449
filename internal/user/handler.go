package user

import (
	"log/slog"
	"net/http"

	"chatsync/internal/httpx"
	myMiddleware "chatsync/internal/middleware"
)

type Handler struct {
	Service *Service
	log     *slog.Logger
}

func NewHandler(s *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Service: s, log: log}
}

func (h *Handler) AddContact(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req ContactRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}

	if err := h.Service.AddContact(r.Context(), ownerID, req.ContactEmail); err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	contacts, err := h.Service.ListContacts(r.Context(), ownerID)
	if err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, contacts)
}

// Me returns the authenticated caller's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := myMiddleware.UserID(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	u, err := h.Service.GetUser(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}
