package openai

import (
	"context"
	"fmt"
)

// Run statuses as reported by the assistants API.
const (
	RunStatusQueued         = "queued"
	RunStatusInProgress     = "in_progress"
	RunStatusRequiresAction = "requires_action"
	RunStatusCompleted      = "completed"
	RunStatusFailed         = "failed"
	RunStatusCancelled      = "cancelled"
	RunStatusExpired        = "expired"
)

type Tool struct {
	Type     string              `json:"type"`
	Function *FunctionDefinition `json:"function,omitempty"`
}

type FunctionDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

type Assistant struct {
	ID           string `json:"id"`
	Object       string `json:"object"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
	Tools        []Tool `json:"tools"`
}

type CreateAssistantRequest struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Model        string `json:"model"`
	Tools        []Tool `json:"tools,omitempty"`
}

type Thread struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	CreatedAt int64  `json:"created_at"`
}

type MessageText struct {
	Value string `json:"value"`
}

type MessageContent struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

type ThreadMessage struct {
	ID        string           `json:"id"`
	Object    string           `json:"object"`
	ThreadID  string           `json:"thread_id"`
	Role      string           `json:"role"`
	Content   []MessageContent `json:"content"`
	CreatedAt int64            `json:"created_at"`
}

type threadMessageList struct {
	Object string          `json:"object"`
	Data   []ThreadMessage `json:"data"`
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

type SubmitToolOutputsAction struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}

type RequiredAction struct {
	Type              string                   `json:"type"`
	SubmitToolOutputs *SubmitToolOutputsAction `json:"submit_tool_outputs,omitempty"`
}

type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Run struct {
	ID             string          `json:"id"`
	Object         string          `json:"object"`
	ThreadID       string          `json:"thread_id"`
	AssistantID    string          `json:"assistant_id"`
	Status         string          `json:"status"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
	LastError      *RunError       `json:"last_error,omitempty"`
}

type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

func (c *Client) CreateAssistant(ctx context.Context, req *CreateAssistantRequest) (*Assistant, error) {
	var assistant Assistant
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("OpenAI-Beta", assistantsBetaHeader).
		SetBody(req).
		SetResult(&assistant).
		SetError(&apiErrorEnvelope{}).
		Post("/assistants")
	if err != nil {
		return nil, fmt.Errorf("create assistant request failed: %w", err)
	}
	if err := checkError(resp); err != nil {
		return nil, err
	}
	return &assistant, nil
}

func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var thread Thread
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("OpenAI-Beta", assistantsBetaHeader).
		SetBody(map[string]any{}).
		SetResult(&thread).
		SetError(&apiErrorEnvelope{}).
		Post("/threads")
	if err != nil {
		return nil, fmt.Errorf("create thread request failed: %w", err)
	}
	if err := checkError(resp); err != nil {
		return nil, err
	}
	return &thread, nil
}

func (c *Client) CreateThreadMessage(ctx context.Context, threadID, role, content string) (*ThreadMessage, error) {
	var message ThreadMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("OpenAI-Beta", assistantsBetaHeader).
		SetBody(map[string]any{"role": role, "content": content}).
		SetResult(&message).
		SetError(&apiErrorEnvelope{}).
		Post(fmt.Sprintf("/threads/%s/messages", threadID))
	if err != nil {
		return nil, fmt.Errorf("create thread message request failed: %w", err)
	}
	if err := checkError(resp); err != nil {
		return nil, err
	}
	return &message, nil
}

// ListThreadMessages returns up to limit messages, newest first.
func (c *Client) ListThreadMessages(ctx context.Context, threadID string, limit int) ([]ThreadMessage, error) {
	var list threadMessageList
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("OpenAI-Beta", assistantsBetaHeader).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetResult(&list).
		SetError(&apiErrorEnvelope{}).
		Get(fmt.Sprintf("/threads/%s/messages", threadID))
	if err != nil {
		return nil, fmt.Errorf("list thread messages request failed: %w", err)
	}
	if err := checkError(resp); err != nil {
		return nil, err
	}
	return list.Data, nil
}

func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	var run Run
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("OpenAI-Beta", assistantsBetaHeader).
		SetBody(map[string]any{"assistant_id": assistantID}).
		SetResult(&run).
		SetError(&apiErrorEnvelope{}).
		Post(fmt.Sprintf("/threads/%s/runs", threadID))
	if err != nil {
		return nil, fmt.Errorf("create run request failed: %w", err)
	}
	if err := checkError(resp); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var run Run
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("OpenAI-Beta", assistantsBetaHeader).
		SetResult(&run).
		SetError(&apiErrorEnvelope{}).
		Get(fmt.Sprintf("/threads/%s/runs/%s", threadID, runID))
	if err != nil {
		return nil, fmt.Errorf("retrieve run request failed: %w", err)
	}
	if err := checkError(resp); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error) {
	var run Run
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("OpenAI-Beta", assistantsBetaHeader).
		SetBody(map[string]any{"tool_outputs": outputs}).
		SetResult(&run).
		SetError(&apiErrorEnvelope{}).
		Post(fmt.Sprintf("/threads/%s/runs/%s/submit_tool_outputs", threadID, runID))
	if err != nil {
		return nil, fmt.Errorf("submit tool outputs request failed: %w", err)
	}
	if err := checkError(resp); err != nil {
		return nil, err
	}
	return &run, nil
}
