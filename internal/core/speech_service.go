package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abdullahkazmii/financial-chatbot/internal/openai"
)

// maxSpeechInputChars is the TTS input ceiling; longer texts are truncated
// with an ellipsis rather than rejected.
const maxSpeechInputChars = 4000

var ErrUnsupportedVoice = errors.New("unsupported voice")

var speechVoices = map[string]struct{}{
	"alloy":   {},
	"echo":    {},
	"fable":   {},
	"onyx":    {},
	"nova":    {},
	"shimmer": {},
}

// SpeechService converts assistant responses into mp3 audio.
type SpeechService struct {
	client       *openai.Client
	model        string
	defaultVoice string
}

func NewSpeechService(client *openai.Client, model, defaultVoice string) *SpeechService {
	return &SpeechService{
		client:       client,
		model:        model,
		defaultVoice: defaultVoice,
	}
}

// Synthesize returns mp3 audio for the given text. An empty voice selects the
// configured default.
func (s *SpeechService) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text is required for speech synthesis")
	}

	if voice == "" {
		voice = s.defaultVoice
	}
	if _, ok := speechVoices[voice]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVoice, voice)
	}

	if runes := []rune(text); len(runes) > maxSpeechInputChars {
		text = string(runes[:maxSpeechInputChars]) + "..."
	}

	audio, err := s.client.CreateSpeech(ctx, &openai.SpeechRequest{
		Model:          s.model,
		Voice:          voice,
		Input:          text,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	return audio, nil
}
