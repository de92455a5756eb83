package synth

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/narrata-labs/narrata-core/internal/wavcodec"
)

type openaiSynth struct {
	client *openai.Client
	model  openai.SpeechModel
	speed  float64
}

// NewOpenAISynth builds a synthesizer backed by the OpenAI speech endpoint.
// The provider responds with a WAV payload which is decoded to PCM here.
func NewOpenAISynth(apiKey, model string, speed float64) (Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	m := openai.TTSModel1
	if model != "" {
		m = openai.SpeechModel(model)
	}
	if speed <= 0 {
		speed = 1.0
	}
	return &openaiSynth{client: openai.NewClient(apiKey), model: m, speed: speed}, nil
}

func (s *openaiSynth) Synthesize(ctx context.Context, req Request) (wavcodec.Clip, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          req.Text,
		Voice:          openai.SpeechVoice(req.Voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          s.speed,
	})
	if err != nil {
		return wavcodec.Clip{}, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return wavcodec.Clip{}, fmt.Errorf("read speech response: %w", err)
	}
	if len(data) == 0 {
		return wavcodec.Clip{}, fmt.Errorf("speech provider returned no audio")
	}

	clip, err := wavcodec.Decode(data)
	if err != nil {
		return wavcodec.Clip{}, fmt.Errorf("decode speech response: %w", err)
	}
	if len(clip.Samples) == 0 {
		return wavcodec.Clip{}, fmt.Errorf("speech provider returned empty audio")
	}
	return clip, nil
}
