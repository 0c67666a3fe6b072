package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abdullahkazmii/financial-chatbot/internal/marketdata"
	"github.com/abdullahkazmii/financial-chatbot/internal/openai"
	"github.com/abdullahkazmii/financial-chatbot/internal/store"
)

// fakeOpenAI is a scripted stand-in for the OpenAI API. Run endpoints walk
// through statuses in order; once the script is exhausted every run reports
// completed.
type fakeOpenAI struct {
	t      *testing.T
	server *httptest.Server

	mu               sync.Mutex
	assistantCreates int
	statuses         []string
	toolCalls        []openai.ToolCall
	submitted        [][]openai.ToolOutput
	reply            string
	title            string
	speechRequests   []openai.SpeechRequest
	failRuns         bool
}

func newFakeOpenAI(t *testing.T) *fakeOpenAI {
	t.Helper()
	f := &fakeOpenAI{
		t:     t,
		reply: "Here is your answer.",
		title: "Stock Chat",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /assistants", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.assistantCreates++
		f.mu.Unlock()
		writeJSON(w, map[string]any{"id": "asst_test", "object": "assistant"})
	})
	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "thread_test", "object": "thread"})
	})
	mux.HandleFunc("POST /threads/{tid}/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "msg_user", "object": "thread.message", "role": "user"})
	})
	mux.HandleFunc("GET /threads/{tid}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		reply := f.reply
		f.mu.Unlock()
		writeJSON(w, map[string]any{
			"object": "list",
			"data": []map[string]any{
				{
					"id":   "msg_reply",
					"role": "assistant",
					"content": []map[string]any{
						{"type": "text", "text": map[string]any{"value": reply}},
					},
				},
			},
		})
	})
	mux.HandleFunc("POST /threads/{tid}/runs", func(w http.ResponseWriter, r *http.Request) {
		if f.failRuns {
			writeAPIError(w, "run creation disabled")
			return
		}
		writeJSON(w, f.runPayload())
	})
	mux.HandleFunc("GET /threads/{tid}/runs/{rid}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, f.runPayload())
	})
	mux.HandleFunc("POST /threads/{tid}/runs/{rid}/submit_tool_outputs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ToolOutputs []openai.ToolOutput `json:"tool_outputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Errorf("decode tool outputs: %v", err)
		}
		f.mu.Lock()
		f.submitted = append(f.submitted, body.ToolOutputs)
		f.mu.Unlock()
		writeJSON(w, f.runPayload())
	})
	mux.HandleFunc("POST /chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		title := f.title
		f.mu.Unlock()
		writeJSON(w, map[string]any{
			"id":     "cmpl_1",
			"object": "chat.completion",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": title}},
			},
		})
	})
	mux.HandleFunc("POST /audio/speech", func(w http.ResponseWriter, r *http.Request) {
		var req openai.SpeechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("decode speech request: %v", err)
		}
		f.mu.Lock()
		f.speechRequests = append(f.speechRequests, req)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		writeAPIError(w, "unexpected request")
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// runPayload pops the next scripted status and renders the run object for it.
func (f *fakeOpenAI) runPayload() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	status := openai.RunStatusCompleted
	if len(f.statuses) > 0 {
		status = f.statuses[0]
		f.statuses = f.statuses[1:]
	}

	payload := map[string]any{
		"id":        "run_test",
		"object":    "thread.run",
		"thread_id": "thread_test",
		"status":    status,
	}
	if status == openai.RunStatusRequiresAction {
		payload["required_action"] = map[string]any{
			"type": "submit_tool_outputs",
			"submit_tool_outputs": map[string]any{
				"tool_calls": f.toolCalls,
			},
		}
	}
	if status == openai.RunStatusFailed {
		payload["last_error"] = map[string]any{"code": "server_error", "message": "boom"}
	}
	return payload
}

func (f *fakeOpenAI) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assistantCreates
}

func (f *fakeOpenAI) submittedOutputs() [][]openai.ToolOutput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"server_error"}}`, message)
}

// newFakeQuotes serves the Yahoo quote endpoint for the given symbols.
func newFakeQuotes(t *testing.T, bySymbol map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var results []string
		for _, symbol := range strings.Split(r.URL.Query().Get("symbols"), ",") {
			if body, ok := bySymbol[symbol]; ok {
				results = append(results, body)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"quoteResponse":{"result":[%s],"error":null}}`, strings.Join(results, ","))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestAssistantService(t *testing.T, f *fakeOpenAI, quotes *httptest.Server, db *store.SQLiteStore) *AssistantService {
	t.Helper()
	client := openai.NewClient(f.server.URL, "sk-test")
	market := marketdata.NewService(marketdata.NewClient(quotes.URL), time.Minute)
	return NewAssistantService(client, db, market, "gpt-4o", "gpt-4o-mini", 2*time.Millisecond, 5*time.Second)
}
