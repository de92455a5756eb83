package synth

import (
	"context"
	"fmt"

	"github.com/narrata-labs/narrata-core/internal/wavcodec"
)

// Request contains parameters to synthesize speech.
type Request struct {
	Text  string
	Voice Voice
}

// Synthesizer is the contract for producing decoded audio from text.
// Implementations do not retry; failures propagate to the caller unmodified.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (wavcodec.Clip, error)
}

// Voice selects a synthesis persona from the provider's fixed set.
type Voice string

const (
	VoiceAlloy   Voice = "alloy"
	VoiceEcho    Voice = "echo"
	VoiceFable   Voice = "fable"
	VoiceOnyx    Voice = "onyx"
	VoiceNova    Voice = "nova"
	VoiceShimmer Voice = "shimmer"
)

// Voices lists every selectable voice.
var Voices = []Voice{VoiceAlloy, VoiceEcho, VoiceFable, VoiceOnyx, VoiceNova, VoiceShimmer}

// ParseVoice validates a voice identifier against the fixed set.
func ParseVoice(s string) (Voice, error) {
	for _, v := range Voices {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown voice %q", s)
}

// Valid reports whether v is part of the fixed voice set.
func (v Voice) Valid() bool {
	_, err := ParseVoice(string(v))
	return err == nil
}
