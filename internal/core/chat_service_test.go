package core

import (
	"context"
	"errors"
	"testing"

	"github.com/abdullahkazmii/financial-chatbot/internal/store"
)

func newTestChatService(t *testing.T, f *fakeOpenAI) (*ChatService, *store.SQLiteStore, int64) {
	t.Helper()
	db := newTestStore(t)
	quotes := newFakeQuotes(t, map[string]string{"AAPL": aaplQuoteJSON})
	assistant := newTestAssistantService(t, f, quotes, db)

	user, err := db.CreateUser("alice", "hash")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return NewChatService(db, assistant), db, user.ID
}

func TestCreateChatWithoutFirstMessage(t *testing.T) {
	f := newFakeOpenAI(t)
	svc, _, userID := newTestChatService(t, f)

	chat, messages, err := svc.CreateChat(context.Background(), userID, nil)
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	if chat.ID == "" || chat.ThreadID != nil {
		t.Fatalf("unexpected chat: %+v", chat)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
}

func TestCreateChatWithFirstMessage(t *testing.T) {
	f := newFakeOpenAI(t)
	svc, db, userID := newTestChatService(t, f)

	first := "What is Apple's stock price?"
	chat, messages, err := svc.CreateChat(context.Background(), userID, &first)
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected user+assistant messages, got %d", len(messages))
	}
	if messages[0].Sender != store.SenderUser || messages[0].Content != first {
		t.Fatalf("unexpected user message: %+v", messages[0])
	}
	if messages[1].Sender != store.SenderAssistant || messages[1].Content != "Here is your answer." {
		t.Fatalf("unexpected assistant message: %+v", messages[1])
	}

	// The thread handle is persisted on the chat.
	stored, err := db.GetChatByID(chat.ID, userID)
	if err != nil {
		t.Fatalf("GetChatByID failed: %v", err)
	}
	if stored.ThreadID == nil || *stored.ThreadID != "thread_test" {
		t.Fatalf("thread handle not persisted: %+v", stored)
	}
}

func TestPostMessage(t *testing.T) {
	f := newFakeOpenAI(t)
	svc, db, userID := newTestChatService(t, f)

	chat, _, err := svc.CreateChat(context.Background(), userID, nil)
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	reply, err := svc.PostMessage(context.Background(), chat.ID, userID, "Give me a market summary")
	if err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
	if reply.Sender != store.SenderAssistant || reply.Content != "Here is your answer." {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	messages, err := db.GetMessagesByChatID(chat.ID, 100, 0)
	if err != nil {
		t.Fatalf("GetMessagesByChatID failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(messages))
	}
}

func TestPostMessageChatNotFound(t *testing.T) {
	f := newFakeOpenAI(t)
	svc, _, userID := newTestChatService(t, f)

	_, err := svc.PostMessage(context.Background(), "missing-chat", userID, "hello")
	if !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestPostMessageAssistantFailureFallsBack(t *testing.T) {
	f := newFakeOpenAI(t)
	f.failRuns = true
	svc, _, userID := newTestChatService(t, f)

	chat, _, err := svc.CreateChat(context.Background(), userID, nil)
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	reply, err := svc.PostMessage(context.Background(), chat.ID, userID, "hello")
	if err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
	if reply.Content != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", reply.Content)
	}
}

func TestGetChatDetailsNotFound(t *testing.T) {
	f := newFakeOpenAI(t)
	svc, _, userID := newTestChatService(t, f)

	_, _, err := svc.GetChatDetails("missing-chat", userID)
	if !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestSetMessageFeedback(t *testing.T) {
	f := newFakeOpenAI(t)
	svc, db, userID := newTestChatService(t, f)

	chat, _, err := svc.CreateChat(context.Background(), userID, nil)
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	msg := store.Message{ChatID: chat.ID, Sender: store.SenderAssistant, Content: "reply"}
	if err := db.CreateMessage(&msg); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	if err := svc.SetMessageFeedback(msg.ID, userID, true); err != nil {
		t.Fatalf("SetMessageFeedback failed: %v", err)
	}

	if err := svc.SetMessageFeedback("missing", userID, true); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}

	// Another user cannot leave feedback on the message.
	other, err := db.CreateUser("bob", "hash")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := svc.SetMessageFeedback(msg.ID, other.ID, true); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound for foreign user, got %v", err)
	}
}
