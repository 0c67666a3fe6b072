// Package openai is a minimal client for the parts of the OpenAI REST API the
// chatbot uses: assistants v2 (threads, messages, runs), chat completions and
// speech synthesis.
package openai

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const assistantsBetaHeader = "assistants=v2"

type Client struct {
	http *resty.Client
}

func NewClient(baseURL, apiKey string) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)

	return &Client{http: httpClient}
}

// APIError is the error object returned by the OpenAI API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: %s (status %d, type %s)", e.Message, e.StatusCode, e.Type)
}

type apiErrorEnvelope struct {
	Error *APIError `json:"error"`
}

// checkError converts a non-2xx resty response into an *APIError.
func checkError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	if envelope, ok := resp.Error().(*apiErrorEnvelope); ok && envelope.Error != nil {
		envelope.Error.StatusCode = resp.StatusCode()
		return envelope.Error
	}
	return &APIError{
		StatusCode: resp.StatusCode(),
		Message:    strings.TrimSpace(resp.String()),
		Type:       "unknown",
	}
}
