package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"oedx-chat/internal/models"
	"oedx-chat/internal/repository"
)

type chatRepository interface {
	Create(ctx context.Context, title string) (*models.Chat, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	List(ctx context.Context) ([]*models.Chat, error)
	AppendMessage(ctx context.Context, chatID uuid.UUID, role, content string) (*models.Message, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type completionStreamer interface {
	StreamCompletion(ctx context.Context, history []models.ChatMessage, onDelta func(string) error) (string, error)
}

type ChatHandler struct {
	chatRepo    chatRepository
	completions completionStreamer
}

func NewChatHandler(chatRepo chatRepository, completions completionStreamer) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		completions: completions,
	}
}

// Completion relays a message history to the model provider and records the
// exchange. The reply is either returned as one JSON payload or, when the
// request asks for it, forwarded chunk-by-chunk as it arrives upstream.
// Persistence happens only after the provider's normal end-of-stream signal:
// first every input message in its original order, then the assistant reply.
func (h *ChatHandler) Completion(w http.ResponseWriter, r *http.Request) {
	var req models.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "At least one message is required", r))
		return
	}
	for _, m := range req.Messages {
		if !models.ValidRole(m.Role) {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message role must be 'user' or 'assistant'", r))
			return
		}
	}

	chat, err := h.resolveChat(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrChatNotFound):
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat not found", r))
		case errors.Is(err, errInvalidChatID):
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid chat ID", r))
		default:
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to resolve chat", r))
		}
		return
	}

	if req.Stream {
		h.streamCompletion(w, r, chat, req.Messages)
		return
	}

	content, err := h.completions.StreamCompletion(r.Context(), req.Messages, nil)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "Failed to get AI response", r))
		return
	}

	if err := h.persistExchange(r.Context(), chat.ID, req.Messages, content); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save conversation", r))
		return
	}

	writeJSON(w, http.StatusOK, models.CompletionResponse{
		ChatID:  chat.ID.String(),
		Content: content,
	})
}

var errInvalidChatID = errors.New("invalid chat id")

func (h *ChatHandler) resolveChat(ctx context.Context, req models.CompletionRequest) (*models.Chat, error) {
	if req.ChatID == nil || *req.ChatID == "" {
		return h.chatRepo.Create(ctx, models.DeriveTitle(req.Messages[0].Content))
	}

	id, err := uuid.Parse(*req.ChatID)
	if err != nil {
		return nil, errInvalidChatID
	}
	return h.chatRepo.GetByID(ctx, id)
}

// streamCompletion forwards provider deltas to the caller as they arrive.
// The resolved chat id travels in the X-Chat-Id header since the body is
// raw reply text.
func (h *ChatHandler) streamCompletion(w http.ResponseWriter, r *http.Request, chat *models.Chat, history []models.ChatMessage) {
	flusher, canFlush := w.(http.Flusher)

	// Streaming headers are held back until the first delta so a failure
	// before any output can still send a clean JSON error envelope.
	setStreamHeaders := func() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Chat-Id", chat.ID.String())
	}

	wroteBody := false
	content, err := h.completions.StreamCompletion(r.Context(), history, func(delta string) error {
		if !wroteBody {
			setStreamHeaders()
		}
		if _, err := io.WriteString(w, delta); err != nil {
			return err
		}
		wroteBody = true
		if canFlush {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Mid-stream failures cannot change the status line anymore; the
		// truncated body is all the caller sees. Nothing is persisted.
		if !wroteBody {
			writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "Failed to get AI response", r))
			return
		}
		log.Printf("chat %s: stream aborted: %v", chat.ID, err)
		return
	}

	// An empty reply produces no deltas; the caller still needs the
	// resolved chat id.
	if !wroteBody {
		setStreamHeaders()
	}

	if err := h.persistExchange(r.Context(), chat.ID, history, content); err != nil {
		log.Printf("chat %s: failed to save conversation: %v", chat.ID, err)
	}
}

func (h *ChatHandler) persistExchange(ctx context.Context, chatID uuid.UUID, history []models.ChatMessage, reply string) error {
	for _, m := range history {
		if _, err := h.chatRepo.AppendMessage(ctx, chatID, m.Role, m.Content); err != nil {
			return err
		}
	}
	_, err := h.chatRepo.AppendMessage(ctx, chatID, models.RoleAssistant, reply)
	return err
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatRepo.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list chats", r))
		return
	}
	if chats == nil {
		chats = []*models.Chat{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chats": chats})
}

func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid chat ID", r))
		return
	}

	chat, err := h.chatRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to get chat", r))
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid chat ID", r))
		return
	}

	if err := h.chatRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete chat", r))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
