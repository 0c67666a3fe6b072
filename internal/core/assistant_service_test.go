package core

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/abdullahkazmii/financial-chatbot/internal/openai"
)

const aaplQuoteJSON = `{"symbol":"AAPL","longName":"Apple Inc.","regularMarketPrice":230.12,"regularMarketChange":1.2,"regularMarketChangePercent":0.52,"regularMarketVolume":1000,"marketCap":5000000,"trailingPE":25.5,"fiftyTwoWeekHigh":260.1,"fiftyTwoWeekLow":160.9}`

func TestEnsureAssistantProvisionsOnce(t *testing.T) {
	f := newFakeOpenAI(t)
	quotes := newFakeQuotes(t, nil)
	db := newTestStore(t)

	svc := newTestAssistantService(t, f, quotes, db)

	id, err := svc.EnsureAssistant(context.Background())
	if err != nil {
		t.Fatalf("EnsureAssistant failed: %v", err)
	}
	if id != "asst_test" {
		t.Fatalf("unexpected assistant id: %s", id)
	}

	if _, err := svc.EnsureAssistant(context.Background()); err != nil {
		t.Fatalf("EnsureAssistant (second) failed: %v", err)
	}

	// A fresh service over the same store reuses the persisted ID.
	svc2 := newTestAssistantService(t, f, quotes, db)
	if _, err := svc2.EnsureAssistant(context.Background()); err != nil {
		t.Fatalf("EnsureAssistant (new instance) failed: %v", err)
	}

	if got := f.createCount(); got != 1 {
		t.Fatalf("expected 1 assistant creation, got %d", got)
	}
}

func TestGenerateReplyPollsToCompletion(t *testing.T) {
	f := newFakeOpenAI(t)
	f.statuses = []string{openai.RunStatusQueued, openai.RunStatusInProgress}
	quotes := newFakeQuotes(t, nil)
	svc := newTestAssistantService(t, f, quotes, newTestStore(t))

	reply, err := svc.GenerateReply(context.Background(), "thread_test", "What is the market doing?")
	if err != nil {
		t.Fatalf("GenerateReply failed: %v", err)
	}
	if reply != "Here is your answer." {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestGenerateReplyExecutesToolCalls(t *testing.T) {
	f := newFakeOpenAI(t)
	f.statuses = []string{openai.RunStatusRequiresAction}
	f.toolCalls = []openai.ToolCall{
		{ID: "call_1", Type: "function", Function: openai.ToolCallFunction{Name: "get_stock_data", Arguments: `{"symbol":"aapl"}`}},
		{ID: "call_2", Type: "function", Function: openai.ToolCallFunction{Name: "get_market_overview", Arguments: `{}`}},
		{ID: "call_3", Type: "function", Function: openai.ToolCallFunction{Name: "teleport_money", Arguments: `{}`}},
	}
	quotes := newFakeQuotes(t, map[string]string{"AAPL": aaplQuoteJSON})
	svc := newTestAssistantService(t, f, quotes, newTestStore(t))

	reply, err := svc.GenerateReply(context.Background(), "thread_test", "How is Apple doing?")
	if err != nil {
		t.Fatalf("GenerateReply failed: %v", err)
	}
	if reply != "Here is your answer." {
		t.Fatalf("unexpected reply: %q", reply)
	}

	submitted := f.submittedOutputs()
	if len(submitted) != 1 || len(submitted[0]) != 3 {
		t.Fatalf("expected one submission with 3 outputs, got %+v", submitted)
	}

	var stock map[string]any
	if err := json.Unmarshal([]byte(submitted[0][0].Output), &stock); err != nil {
		t.Fatalf("stock output is not JSON: %v", err)
	}
	if stock["symbol"] != "AAPL" || stock["current_price"] != 230.12 {
		t.Fatalf("unexpected stock output: %v", stock)
	}

	var overview map[string]any
	if err := json.Unmarshal([]byte(submitted[0][1].Output), &overview); err != nil {
		t.Fatalf("overview output is not JSON: %v", err)
	}
	if len(overview) == 0 {
		t.Fatal("overview output is empty")
	}

	if submitted[0][2].Output != `{"error":"function not implemented"}` {
		t.Fatalf("unexpected output for unknown tool: %s", submitted[0][2].Output)
	}
}

func TestGenerateReplyToolErrorsAreReported(t *testing.T) {
	f := newFakeOpenAI(t)
	f.statuses = []string{openai.RunStatusRequiresAction}
	f.toolCalls = []openai.ToolCall{
		{ID: "call_1", Type: "function", Function: openai.ToolCallFunction{Name: "get_stock_data", Arguments: `{"symbol":"NOPE"}`}},
	}
	quotes := newFakeQuotes(t, nil)
	svc := newTestAssistantService(t, f, quotes, newTestStore(t))

	if _, err := svc.GenerateReply(context.Background(), "thread_test", "How is NOPE doing?"); err != nil {
		t.Fatalf("GenerateReply failed: %v", err)
	}

	submitted := f.submittedOutputs()
	if len(submitted) != 1 || len(submitted[0]) != 1 {
		t.Fatalf("expected one submission with 1 output, got %+v", submitted)
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(submitted[0][0].Output), &out); err != nil {
		t.Fatalf("tool output is not JSON: %v", err)
	}
	if !strings.Contains(out["error"], "no data available for NOPE") {
		t.Fatalf("unexpected tool error: %v", out)
	}
}

func TestGenerateReplyRunFailure(t *testing.T) {
	f := newFakeOpenAI(t)
	f.statuses = []string{openai.RunStatusFailed}
	quotes := newFakeQuotes(t, nil)
	svc := newTestAssistantService(t, f, quotes, newTestStore(t))

	_, err := svc.GenerateReply(context.Background(), "thread_test", "hello")
	if err == nil {
		t.Fatal("expected error for failed run")
	}
	if !strings.Contains(err.Error(), openai.RunStatusFailed) || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateTitleForChat(t *testing.T) {
	f := newFakeOpenAI(t)
	f.title = "\"Apple Stock Question.\"\n"
	quotes := newFakeQuotes(t, nil)
	svc := newTestAssistantService(t, f, quotes, newTestStore(t))

	title, err := svc.GenerateTitleForChat(context.Background(), "What is Apple's stock price?")
	if err != nil {
		t.Fatalf("GenerateTitleForChat failed: %v", err)
	}
	if title != "Apple Stock Question" {
		t.Fatalf("title not trimmed: %q", title)
	}
}
