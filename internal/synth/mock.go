package synth

import (
	"context"
	"math"

	"github.com/narrata-labs/narrata-core/internal/wavcodec"
)

type mockSynth struct {
	sampleRate int
}

// NewMockSynth returns a synthesizer that produces a short deterministic
// tone sized to the input text. Useful for development and tests.
func NewMockSynth(sampleRate int) Synthesizer {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	return &mockSynth{sampleRate: sampleRate}
}

func (m *mockSynth) Synthesize(ctx context.Context, req Request) (wavcodec.Clip, error) {
	if err := ctx.Err(); err != nil {
		return wavcodec.Clip{}, err
	}

	// 5ms of audio per input rune, minimum 100ms.
	runes := len([]rune(req.Text))
	n := m.sampleRate * runes * 5 / 1000
	if min := m.sampleRate / 10; n < min {
		n = min
	}

	samples := make([]int, n)
	freq := 220.0 + float64(len(req.Voice))*20
	for i := range samples {
		phase := 2 * math.Pi * freq * float64(i) / float64(m.sampleRate)
		samples[i] = int(math.Sin(phase) * 8000)
	}
	return wavcodec.Clip{Samples: samples, SampleRate: m.sampleRate}, nil
}
