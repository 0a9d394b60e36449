package chat

import (
	"log/slog"
	"net/http"
	"strings"

	"chatsync/internal/apperr"
	"chatsync/internal/httpx"
	myMiddleware "chatsync/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

type Handler struct {
	service *Service
	log     *slog.Logger
}

func NewHandler(service *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{service: service, log: log}
}

// Routes mounts the chat and message endpoints. Callers must be authenticated.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/chats", h.CreateChat)
	r.Delete("/api/chats/{chatId}", h.DeleteChat)
	r.Get("/api/chats/{chatId}/messages", h.ListMessages)
	r.Get("/api/users/{userId}/chats", h.ListChats)

	r.Post("/api/messages", h.CreateMessage)
	r.Delete("/api/messages/{messageId}", h.DeleteMessage)
	r.Post("/api/messages/{messageId}/read", h.MarkRead)
}

func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req CreateChatRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}

	ids := req.ParticipantIDs
	if len(ids) == 0 {
		sender := req.SenderID
		if sender == "" {
			sender = callerID
		}
		ids = []string{sender, req.ReceiverID}
	}
	if !lo.ContainsBy(ids, func(id string) bool { return strings.TrimSpace(id) == callerID }) {
		httpx.WriteError(w, h.log, r, apperr.Forbidden("caller must be a participant"))
		return
	}

	c, err := h.service.CreateChat(r.Context(), ids)
	if err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userId")
	if userID != callerID {
		httpx.WriteError(w, h.log, r, apperr.Forbidden("cannot list another user's chats"))
		return
	}

	views, err := h.service.ListChatsForUser(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}
	chatID := chi.URLParam(r, "chatId")

	if err := h.service.DeleteChat(r.Context(), callerID, chatID); err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"deleted": chatID})
}

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req CreateMessageRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}
	if req.SenderID != "" && req.SenderID != callerID {
		httpx.WriteError(w, h.log, r, apperr.Forbidden("senderId must match the authenticated user"))
		return
	}

	msg, err := h.service.CreateMessage(r.Context(), CreateMessageInput{
		ChatID:      req.ChatID,
		SenderID:    callerID,
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	if err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, msg)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	msgs, err := h.service.ListMessagesFor(r.Context(), callerID, chi.URLParam(r, "chatId"))
	if err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, msgs)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}
	messageID := chi.URLParam(r, "messageId")

	if err := h.service.DeleteMessage(r.Context(), callerID, messageID); err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"deleted": messageID})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	msg, err := h.service.MarkRead(r.Context(), callerID, chi.URLParam(r, "messageId"))
	if err != nil {
		httpx.WriteError(w, h.log, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, msg)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := myMiddleware.UserID(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return "", false
	}
	return id, true
}
