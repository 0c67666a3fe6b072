package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/abdullahkazmii/financial-chatbot/internal/marketdata"
	"github.com/abdullahkazmii/financial-chatbot/internal/openai"
	"github.com/abdullahkazmii/financial-chatbot/internal/store"
)

const (
	assistantIDSettingKey = "assistant_id"

	assistantName = "Financial Advisor Bot"

	assistantInstructions = "You are a knowledgeable financial advisor chatbot. You can help users with:\n" +
		"- Stock analysis and recommendations\n" +
		"- Market trends and insights\n" +
		"- Investment strategies\n" +
		"- Financial planning advice\n" +
		"- Real-time market data interpretation\n\n" +
		"Always provide accurate, helpful financial information while reminding users that this is not " +
		"personalized financial advice and they should consult with a licensed financial advisor for " +
		"investment decisions.\n\n" +
		"When users ask about specific stocks or market data, use the provided tools to give current information."

	titleSystemInstruction = "You are a helpful assistant that generates concise titles for chat conversations. " +
		"The title should be 3-5 words maximum. Just return the title itself, nothing else."

	toolGetStockData      = "get_stock_data"
	toolGetMarketOverview = "get_market_overview"
)

// AssistantService owns the hosted assistant: it provisions it once (the ID is
// persisted in the settings table), drives conversation runs and answers the
// assistant's tool calls with market data.
type AssistantService struct {
	client     *openai.Client
	dbStore    *store.SQLiteStore
	marketData *marketdata.Service

	assistantModel string
	titleModel     string
	pollInterval   time.Duration
	runTimeout     time.Duration

	mu          sync.Mutex
	assistantID string
}

func NewAssistantService(client *openai.Client, db *store.SQLiteStore, market *marketdata.Service, assistantModel, titleModel string, pollInterval, runTimeout time.Duration) *AssistantService {
	return &AssistantService{
		client:         client,
		dbStore:        db,
		marketData:     market,
		assistantModel: assistantModel,
		titleModel:     titleModel,
		pollInterval:   pollInterval,
		runTimeout:     runTimeout,
	}
}

func assistantTools() []openai.Tool {
	return []openai.Tool{
		{
			Type: "function",
			Function: &openai.FunctionDefinition{
				Name:        toolGetStockData,
				Description: "Get real-time stock data for a given symbol",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"symbol": map[string]any{
							"type":        "string",
							"description": "Stock symbol (e.g., AAPL, MSFT)",
						},
					},
					"required": []string{"symbol"},
				},
			},
		},
		{
			Type: "function",
			Function: &openai.FunctionDefinition{
				Name:        toolGetMarketOverview,
				Description: "Get overview of major market indices",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
					"required":   []string{},
				},
			},
		},
	}
}

// EnsureAssistant returns the provisioned assistant ID, creating the assistant
// on first use.
func (s *AssistantService) EnsureAssistant(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.assistantID != "" {
		return s.assistantID, nil
	}

	stored, err := s.dbStore.GetSetting(assistantIDSettingKey)
	if err != nil {
		return "", fmt.Errorf("failed to load assistant id: %w", err)
	}
	if stored != "" {
		s.assistantID = stored
		return stored, nil
	}

	assistant, err := s.client.CreateAssistant(ctx, &openai.CreateAssistantRequest{
		Name:         assistantName,
		Instructions: assistantInstructions,
		Model:        s.assistantModel,
		Tools:        assistantTools(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create assistant: %w", err)
	}

	if err := s.dbStore.PutSetting(assistantIDSettingKey, assistant.ID); err != nil {
		// The assistant exists remotely; losing the ID just means we create
		// another one after a restart.
		log.Warn().Err(err).Str("assistant_id", assistant.ID).Msg("Failed to persist assistant id")
	}

	log.Info().Str("assistant_id", assistant.ID).Str("model", s.assistantModel).Msg("Provisioned financial assistant")
	s.assistantID = assistant.ID
	return assistant.ID, nil
}

// NewThread creates a fresh conversation thread and returns its handle.
func (s *AssistantService) NewThread(ctx context.Context) (string, error) {
	thread, err := s.client.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return thread.ID, nil
}

// GenerateReply appends the user message to the thread, runs the assistant and
// returns the assistant's answer. Tool calls raised by the run are answered
// with market data before polling resumes.
func (s *AssistantService) GenerateReply(ctx context.Context, threadID, userContent string) (string, error) {
	assistantID, err := s.EnsureAssistant(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	if _, err := s.client.CreateThreadMessage(ctx, threadID, "user", userContent); err != nil {
		return "", fmt.Errorf("failed to add user message to thread: %w", err)
	}

	run, err := s.client.CreateRun(ctx, threadID, assistantID)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		switch run.Status {
		case openai.RunStatusCompleted:
			return s.latestAssistantMessage(ctx, threadID)

		case openai.RunStatusRequiresAction:
			outputs := s.executeToolCalls(ctx, run)
			run, err = s.client.SubmitToolOutputs(ctx, threadID, run.ID, outputs)
			if err != nil {
				return "", fmt.Errorf("failed to submit tool outputs: %w", err)
			}

		case openai.RunStatusQueued, openai.RunStatusInProgress:
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("run %s did not finish: %w", run.ID, ctx.Err())
			case <-ticker.C:
			}
			run, err = s.client.RetrieveRun(ctx, threadID, run.ID)
			if err != nil {
				return "", fmt.Errorf("failed to poll run: %w", err)
			}

		default:
			if run.LastError != nil {
				return "", fmt.Errorf("run %s ended with status %s: %s", run.ID, run.Status, run.LastError.Message)
			}
			return "", fmt.Errorf("run %s ended with status %s", run.ID, run.Status)
		}
	}
}

func (s *AssistantService) executeToolCalls(ctx context.Context, run *openai.Run) []openai.ToolOutput {
	if run.RequiredAction == nil || run.RequiredAction.SubmitToolOutputs == nil {
		return nil
	}

	toolCalls := run.RequiredAction.SubmitToolOutputs.ToolCalls
	outputs := make([]openai.ToolOutput, 0, len(toolCalls))
	for _, call := range toolCalls {
		output := s.dispatchToolCall(ctx, call.Function.Name, call.Function.Arguments)
		outputs = append(outputs, openai.ToolOutput{
			ToolCallID: call.ID,
			Output:     output,
		})
	}
	return outputs
}

// dispatchToolCall executes a single function call and returns its JSON
// output. Failures are reported back to the assistant as JSON errors so the
// run can still complete.
func (s *AssistantService) dispatchToolCall(ctx context.Context, name, arguments string) string {
	log.Debug().Str("tool", name).Str("arguments", arguments).Msg("Dispatching assistant tool call")

	switch name {
	case toolGetStockData:
		var args struct {
			Symbol string `json:"symbol"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return toolError(fmt.Sprintf("invalid arguments: %v", err))
		}
		data, err := s.marketData.StockData(ctx, args.Symbol)
		if err != nil {
			return toolError(err.Error())
		}
		return mustToolJSON(data)

	case toolGetMarketOverview:
		overview, err := s.marketData.MarketOverview(ctx)
		if err != nil {
			return toolError(err.Error())
		}
		return mustToolJSON(overview)

	default:
		return toolError("function not implemented")
	}
}

func (s *AssistantService) latestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	messages, err := s.client.ListThreadMessages(ctx, threadID, 1)
	if err != nil {
		return "", fmt.Errorf("failed to list thread messages: %w", err)
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("thread %s has no messages after completed run", threadID)
	}

	var text strings.Builder
	for _, part := range messages[0].Content {
		if part.Type == "text" && part.Text != nil {
			text.WriteString(part.Text.Value)
		}
	}
	if text.Len() == 0 {
		return "I received an empty or non-text response, please try rephrasing your question.", nil
	}
	return text.String(), nil
}

// GenerateTitleForChat asks the title model for a short conversation title.
func (s *AssistantService) GenerateTitleForChat(ctx context.Context, chatSummary string) (string, error) {
	temp := 0.3
	maxTokens := 20

	userPrompt := fmt.Sprintf("Generate a very concise title (3-5 words maximum) for a conversation that starts with or is about: %q.", chatSummary)

	completion, err := s.client.CreateChatCompletion(ctx, &openai.ChatCompletionRequest{
		Model: s.titleModel,
		Messages: []openai.ChatMessage{
			{Role: "system", Content: titleSystemInstruction},
			{Role: "user", Content: userPrompt},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("title generation request failed: %w", err)
	}

	title := strings.Trim(completion.Choices[0].Message.Content, "\"'\n\r\t .")
	if title == "" {
		return "", fmt.Errorf("title model generated an empty title")
	}
	return title, nil
}

func toolError(message string) string {
	return mustToolJSON(map[string]string{"error": message})
}

func mustToolJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}
