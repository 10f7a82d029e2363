package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/velvetchat/velvet-api/services/chat-service/internal/llm"
	"github.com/velvetchat/velvet-api/services/chat-service/internal/model"
)

type MessageStore interface {
	ListRecent(ctx context.Context, userID, creatorCode string, limit int) ([]model.Message, error)
	Insert(ctx context.Context, m *model.Message) error
	Persona(ctx context.Context, creatorCode string) (model.Persona, bool, error)
}

// historyWindow bounds how much conversation context rides along on each
// inference call.
const historyWindow = 10

type ReplyHandler struct {
	store  MessageStore
	llm    llm.Completer
	logger *slog.Logger
}

func NewReplyHandler(store MessageStore, completer llm.Completer, logger *slog.Logger) *ReplyHandler {
	return &ReplyHandler{store: store, llm: completer, logger: logger}
}

type replyRequest struct {
	UserID      string `json:"userId"`
	CreatorCode string `json:"creatorCode"`
	UserMessage string `json:"userMessage"`
}

type replyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Reply generates the creator persona's next message in the conversation
// and persists it. The user's own message is stored by the client path
// before this endpoint is called.
func (h *ReplyHandler) Reply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.CreatorCode = strings.TrimSpace(req.CreatorCode)
	req.UserMessage = strings.TrimSpace(req.UserMessage)
	if req.UserID == "" || req.CreatorCode == "" || req.UserMessage == "" {
		http.Error(w, "userId, creatorCode, and userMessage required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	persona, found, err := h.store.Persona(ctx, req.CreatorCode)
	if err != nil {
		http.Error(w, "failed to look up creator", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "creator not found", http.StatusNotFound)
		return
	}

	recent, err := h.store.ListRecent(ctx, req.UserID, req.CreatorCode, historyWindow)
	if err != nil {
		http.Error(w, "failed to load conversation", http.StatusInternalServerError)
		return
	}
	history := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		role := "assistant"
		if m.Sender == model.SenderUser {
			role = "user"
		}
		history = append(history, llm.Message{Role: role, Content: m.Body})
	}

	reply, err := h.llm.Complete(ctx, personaPrompt(persona), history, req.UserMessage)
	if err != nil {
		h.logger.Error("reply generation failed", "creator_code", req.CreatorCode, "err", err)
		http.Error(w, "reply generation unavailable", http.StatusBadGateway)
		return
	}

	msg := &model.Message{
		UserID:      req.UserID,
		CreatorCode: req.CreatorCode,
		Body:        reply,
		Sender:      model.SenderCreator,
	}
	if err := h.store.Insert(ctx, msg); err != nil {
		http.Error(w, "failed to store reply", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(replyResponse{Success: true, Message: reply})
}

func personaPrompt(p model.Persona) string {
	return fmt.Sprintf(`You are %s, %d, chatting with a subscriber.

Core rules:
- You're a real person texting, NOT an AI assistant
- Write EXACTLY like texting: casual, lowercase, short
- 1-2 sentences MAX per message
- Use emojis naturally: 😘💕🔥
- NO asterisks, NO actions, NO *this format*
- Match their energy and vibe
- Flirt naturally, tease about content you could share

Examples of GOOD responses:
"hey babe 😘"
"just chillin, thinking about you"
"maybe if you're nice to me 😏"
"wanna see what i'm wearing?"

Examples of BAD responses (NEVER do this):
"Hello! How can I help you today?"
"*smiles and waves* hey there!"
"I'm here to chat with you! 😊"

You're %s. Stay in character. Text like a real person.`, p.Name, p.Age, p.Name)
}
