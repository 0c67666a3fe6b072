package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/abdullahkazmii/financial-chatbot/internal/auth"
	"github.com/abdullahkazmii/financial-chatbot/internal/core"
	"github.com/abdullahkazmii/financial-chatbot/internal/marketdata"
	"github.com/abdullahkazmii/financial-chatbot/internal/store"
)

type APIHandler struct {
	chatService   *core.ChatService
	speechService *core.SpeechService
	marketData    *marketdata.Service
	jwtSecret     []byte
}

func NewAPIHandler(cs *core.ChatService, ss *core.SpeechService, md *marketdata.Service, jwtSecret []byte) *APIHandler {
	return &APIHandler{
		chatService:   cs,
		speechService: ss,
		marketData:    md,
		jwtSecret:     jwtSecret,
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		externalUserID, err := auth.ValidateJWT(tokenString, h.jwtSecret)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.chatService.GetUserByExternalID(externalUserID)
		if err != nil {
			log.Error().Err(err).Str("user", externalUserID).Msg("Failed to resolve user in auth middleware")
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "userID", user.ID)
		ctx = context.WithValue(ctx, "externalUserID", user.ExternalUserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type SignupRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Str("user", req.UserID).Msg("Failed to hash password")
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.chatService.CreateUser(req.UserID, hashedPassword)
	if err != nil {
		log.Error().Err(err).Str("user", req.UserID).Msg("Failed to create user")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.chatService.GetUserByExternalID(req.UserID)
	if err != nil {
		log.Error().Err(err).Str("user", req.UserID).Msg("Failed to look up user for login")
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.UserID, h.jwtSecret)
	if err != nil {
		log.Error().Err(err).Str("user", req.UserID).Msg("Failed to generate JWT")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

type CreateChatRequest struct {
	FirstMessage *string `json:"first_message,omitempty"`
}

type CreateChatResponse struct {
	*store.Chat
	Messages []store.Message `json:"messages,omitempty"`
}

func (h *APIHandler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	var req CreateChatRequest
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	chat, messages, err := h.chatService.CreateChat(r.Context(), userID, req.FirstMessage)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to create chat")
		http.Error(w, "Failed to create chat", http.StatusInternalServerError)
		return
	}

	resp := CreateChatResponse{
		Chat:     chat,
		Messages: messages,
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	chats, err := h.chatService.GetChats(userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to list chats")
		http.Error(w, "Failed to list chats", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(chats)
}

type GetChatDetailsResponse struct {
	*store.Chat
	Messages []store.Message `json:"messages"`
}

func (h *APIHandler) GetChatDetailsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	chatID := chi.URLParam(r, "chatID")

	chat, messages, err := h.chatService.GetChatDetails(chatID, userID)
	if err != nil {
		if errors.Is(err, core.ErrChatNotFound) {
			http.Error(w, "Chat not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Int64("user_id", userID).Str("chat_id", chatID).Msg("Failed to get chat details")
		http.Error(w, "Failed to get chat details", http.StatusInternalServerError)
		return
	}

	resp := GetChatDetailsResponse{
		Chat:     chat,
		Messages: messages,
	}
	json.NewEncoder(w).Encode(resp)
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	chatID := chi.URLParam(r, "chatID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "Message content cannot be empty", http.StatusBadRequest)
		return
	}

	assistantMessage, err := h.chatService.PostMessage(r.Context(), chatID, userID, req.Content)
	if err != nil {
		if errors.Is(err, core.ErrChatNotFound) {
			http.Error(w, "Chat not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Int64("user_id", userID).Str("chat_id", chatID).Msg("Failed to post message")
		http.Error(w, "Failed to post message", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(assistantMessage)
}

type FeedbackRequest struct {
	Negative bool `json:"negative"`
}

func (h *APIHandler) MessageFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	messageID := chi.URLParam(r, "messageID")

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	err := h.chatService.SetMessageFeedback(messageID, userID, req.Negative)
	if err != nil {
		if errors.Is(err, core.ErrMessageNotFound) {
			http.Error(w, "Message not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Int64("user_id", userID).Str("message_id", messageID).Msg("Failed to set feedback")
		http.Error(w, "Failed to set feedback", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

func (h *APIHandler) SpeechHandler(w http.ResponseWriter, r *http.Request) {
	var req SpeechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "Text is required", http.StatusBadRequest)
		return
	}

	h.writeSpeech(w, r, req.Text, req.Voice)
}

type MessageSpeechRequest struct {
	Voice string `json:"voice,omitempty"`
}

func (h *APIHandler) MessageSpeechHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	messageID := chi.URLParam(r, "messageID")

	var req MessageSpeechRequest
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	msg, err := h.chatService.GetMessage(messageID, userID)
	if err != nil {
		if errors.Is(err, core.ErrMessageNotFound) {
			http.Error(w, "Message not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Int64("user_id", userID).Str("message_id", messageID).Msg("Failed to load message for speech")
		http.Error(w, "Failed to load message", http.StatusInternalServerError)
		return
	}

	h.writeSpeech(w, r, msg.Content, req.Voice)
}

func (h *APIHandler) writeSpeech(w http.ResponseWriter, r *http.Request, text, voice string) {
	audio, err := h.speechService.Synthesize(r.Context(), text, voice)
	if err != nil {
		if errors.Is(err, core.ErrUnsupportedVoice) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("Speech synthesis failed")
		http.Error(w, "Failed to synthesize speech", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Write(audio)
}

func (h *APIHandler) MarketQuoteHandler(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	data, err := h.marketData.StockData(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("symbol", symbol).Msg("Failed to fetch quote")
		http.Error(w, "Failed to fetch quote", http.StatusBadGateway)
		return
	}
	json.NewEncoder(w).Encode(data)
}

func (h *APIHandler) MarketOverviewHandler(w http.ResponseWriter, r *http.Request) {
	overview, err := h.marketData.MarketOverview(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch market overview")
		http.Error(w, "Failed to fetch market overview", http.StatusBadGateway)
		return
	}
	json.NewEncoder(w).Encode(overview)
}
