package synth

import (
	"context"
	"testing"
)

func TestParseVoice(t *testing.T) {
	for _, v := range Voices {
		got, err := ParseVoice(string(v))
		if err != nil {
			t.Fatalf("ParseVoice(%q): %v", v, err)
		}
		if got != v {
			t.Fatalf("ParseVoice(%q) = %q", v, got)
		}
	}
	for _, bad := range []string{"", "Alloy", "baritone", "alloy "} {
		if _, err := ParseVoice(bad); err == nil {
			t.Fatalf("ParseVoice(%q) should fail", bad)
		}
	}
}

func TestMockSynthDeterministic(t *testing.T) {
	s := NewMockSynth(8000)
	req := Request{Text: "hello world", Voice: VoiceNova}

	a, err := s.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	b, err := s.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(a.Samples) != len(b.Samples) {
		t.Fatalf("lengths differ: %d vs %d", len(a.Samples), len(b.Samples))
	}
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			t.Fatalf("sample %d differs between runs", i)
		}
	}
}

func TestMockSynthScalesWithText(t *testing.T) {
	s := NewMockSynth(8000)
	short, err := s.Synthesize(context.Background(), Request{Text: "hi", Voice: VoiceAlloy})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	// 2 runes is below the 100ms floor.
	if len(short.Samples) != 800 {
		t.Fatalf("expected 100ms floor (800 samples), got %d", len(short.Samples))
	}

	long, err := s.Synthesize(context.Background(), Request{Text: string(make([]rune, 500)), Voice: VoiceAlloy})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	// 500 runes at 5ms each is 2.5s.
	if len(long.Samples) != 20000 {
		t.Fatalf("expected 20000 samples, got %d", len(long.Samples))
	}
}

func TestMockSynthHonorsCancelledContext(t *testing.T) {
	s := NewMockSynth(8000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Synthesize(ctx, Request{Text: "hi", Voice: VoiceAlloy}); err == nil {
		t.Fatal("expected context error")
	}
}
