package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/abdullahkazmii/financial-chatbot/internal/store"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
)

const fallbackReply = "I'm sorry, I encountered an error while processing your request."

type ChatService struct {
	dbStore   *store.SQLiteStore
	assistant *AssistantService
}

func NewChatService(db *store.SQLiteStore, assistant *AssistantService) *ChatService {
	return &ChatService{
		dbStore:   db,
		assistant: assistant,
	}
}

func (s *ChatService) GetUserByExternalID(externalUserID string) (*store.User, error) {
	return s.dbStore.GetUserByExternalID(externalUserID)
}

func (s *ChatService) CreateUser(externalUserID, passwordHash string) (*store.User, error) {
	return s.dbStore.CreateUser(externalUserID, passwordHash)
}

func (s *ChatService) CreateChat(ctx context.Context, userID int64, firstMessageContent *string) (*store.Chat, []store.Message, error) {
	chat, err := s.dbStore.CreateChat(userID, nil) // Title is generated later
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chat in DB: %w", err)
	}

	var messages []store.Message

	if firstMessageContent != nil && *firstMessageContent != "" {
		userMsg := store.Message{
			ChatID:  chat.ID,
			Sender:  store.SenderUser,
			Content: *firstMessageContent,
		}
		if err := s.dbStore.CreateMessage(&userMsg); err != nil {
			log.Error().Err(err).Str("chat_id", chat.ID).Msg("Failed to store first user message for new chat")
			// Continue, but the chat will be empty initially
		} else {
			messages = append(messages, userMsg)

			assistantMsg, err := s.respond(ctx, chat, userID, userMsg.Content)
			if err != nil {
				log.Error().Err(err).Str("chat_id", chat.ID).Msg("Failed to generate initial assistant response")
			} else {
				messages = append(messages, *assistantMsg)
			}

			// Auto-generate title after first exchange
			go s.generateAndSaveChatTitle(chat.ID, userID, userMsg.Content)
		}
	}

	return chat, messages, nil
}

func (s *ChatService) GetChats(userID int64) ([]store.Chat, error) {
	return s.dbStore.GetChatsByUserID(userID)
}

func (s *ChatService) GetChatDetails(chatID string, userID int64) (*store.Chat, []store.Message, error) {
	chat, err := s.dbStore.GetChatByID(chatID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get chat: %w", err)
	}
	if chat == nil {
		return nil, nil, ErrChatNotFound
	}

	messages, err := s.dbStore.GetMessagesByChatID(chatID, 100, 0) // Up to 100 messages
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get messages for chat: %w", err)
	}
	return chat, messages, nil
}

func (s *ChatService) PostMessage(ctx context.Context, chatID string, userID int64, userContent string) (*store.Message, error) {
	chat, err := s.dbStore.GetChatByID(chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify chat: %w", err)
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	userMsg := store.Message{
		ChatID:  chatID,
		Sender:  store.SenderUser,
		Content: userContent,
	}
	if err := s.dbStore.CreateMessage(&userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	assistantMsg, err := s.respond(ctx, chat, userID, userContent)
	if err != nil {
		return nil, err
	}

	// If the chat doesn't have a title yet (created without a first message, or
	// title generation failed) attempt to generate it now, based on the most
	// recent user message in the chat.
	if chat.Title == nil || *chat.Title == "" {
		messages, _ := s.dbStore.GetLastNMessagesByChatID(chatID, 2)
		basisContent := userContent
		for _, m := range messages {
			if m.Sender == store.SenderUser {
				basisContent = m.Content
				break
			}
		}
		go s.generateAndSaveChatTitle(chatID, userID, basisContent)
	}

	return assistantMsg, nil
}

// respond runs the assistant against the chat's thread and persists the
// assistant message. Assistant failures degrade to a canned reply so the user
// message is never lost.
func (s *ChatService) respond(ctx context.Context, chat *store.Chat, userID int64, userContent string) (*store.Message, error) {
	threadID, err := s.ensureThread(ctx, chat, userID)

	var reply string
	if err != nil {
		log.Error().Err(err).Str("chat_id", chat.ID).Msg("Failed to prepare assistant thread")
		reply = fallbackReply
	} else {
		reply, err = s.assistant.GenerateReply(ctx, threadID, userContent)
		if err != nil {
			log.Error().Err(err).Str("chat_id", chat.ID).Msg("Failed to generate assistant response")
			reply = fallbackReply
		}
	}

	assistantMsg := store.Message{
		ChatID:  chat.ID,
		Sender:  store.SenderAssistant,
		Content: reply,
	}
	if err := s.dbStore.CreateMessage(&assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}
	return &assistantMsg, nil
}

// ensureThread returns the chat's assistant thread handle, creating and
// persisting it on first use.
func (s *ChatService) ensureThread(ctx context.Context, chat *store.Chat, userID int64) (string, error) {
	if chat.ThreadID != nil && *chat.ThreadID != "" {
		return *chat.ThreadID, nil
	}

	threadID, err := s.assistant.NewThread(ctx)
	if err != nil {
		return "", err
	}
	if err := s.dbStore.UpdateChatThreadID(chat.ID, userID, threadID); err != nil {
		return "", fmt.Errorf("failed to persist thread handle: %w", err)
	}
	chat.ThreadID = &threadID
	return threadID, nil
}

func (s *ChatService) generateAndSaveChatTitle(chatID string, userID int64, basisContent string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	title, err := s.assistant.GenerateTitleForChat(ctx, basisContent)
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to generate chat title")
		return
	}

	if err := s.dbStore.UpdateChatTitle(chatID, userID, title); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Str("title", title).Msg("Failed to save generated chat title")
		return
	}
	log.Debug().Str("chat_id", chatID).Str("title", title).Msg("Generated chat title")
}

func (s *ChatService) GetMessage(messageID string, userID int64) (*store.Message, error) {
	msg, err := s.dbStore.GetMessageByID(messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

func (s *ChatService) SetMessageFeedback(messageID string, userID int64, negative bool) error {
	msg, err := s.dbStore.GetMessageByID(messageID, userID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	return s.dbStore.UpdateMessageFeedback(messageID, negative)
}
