package openai

import (
	"context"
	"fmt"
)

type SpeechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// CreateSpeech synthesizes audio from text and returns the raw audio bytes
// (mp3 unless another response format is requested).
func (c *Client) CreateSpeech(ctx context.Context, req *SpeechRequest) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetError(&apiErrorEnvelope{}).
		Post("/audio/speech")
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	if err := checkError(resp); err != nil {
		return nil, err
	}
	if len(resp.Body()) == 0 {
		return nil, fmt.Errorf("speech response contained no audio data")
	}
	return resp.Body(), nil
}
