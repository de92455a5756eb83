package wavcodec

import (
	"testing"
	"time"
)

func rampClip(n, rate, step int) Clip {
	samples := make([]int, n)
	for i := range samples {
		samples[i] = (i * step) % 30000
	}
	return Clip{Samples: samples, SampleRate: rate}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	clip := rampClip(4000, 8000, 7)
	data, err := Encode(clip)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SampleRate != clip.SampleRate {
		t.Fatalf("sample rate %d, want %d", decoded.SampleRate, clip.SampleRate)
	}
	if len(decoded.Samples) != len(clip.Samples) {
		t.Fatalf("got %d samples, want %d", len(decoded.Samples), len(clip.Samples))
	}
	for i := range clip.Samples {
		if decoded.Samples[i] != clip.Samples[i] {
			t.Fatalf("sample %d: got %d, want %d", i, decoded.Samples[i], clip.Samples[i])
		}
	}
}

func TestEncodeRejectsInvalidRate(t *testing.T) {
	if _, err := Encode(Clip{Samples: []int{1, 2, 3}}); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestMergeConcatenatesInOrder(t *testing.T) {
	b1 := rampClip(100, 8000, 3)
	b2 := rampClip(200, 8000, 5)
	b3 := rampClip(300, 8000, 11)

	merged, err := Merge([]Clip{b1, b2, b3})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.SampleRate != 8000 {
		t.Fatalf("sample rate %d, want 8000", merged.SampleRate)
	}
	if len(merged.Samples) != 600 {
		t.Fatalf("got %d samples, want 600", len(merged.Samples))
	}
	for i, want := range b1.Samples {
		if merged.Samples[i] != want {
			t.Fatalf("b1 sample %d misplaced", i)
		}
	}
	for i, want := range b2.Samples {
		if merged.Samples[100+i] != want {
			t.Fatalf("b2 sample %d misplaced", i)
		}
	}
	for i, want := range b3.Samples {
		if merged.Samples[300+i] != want {
			t.Fatalf("b3 sample %d misplaced", i)
		}
	}
}

func TestMergeResamplesToFirstRate(t *testing.T) {
	b1 := rampClip(100, 8000, 3)
	b2 := rampClip(100, 16000, 5) // half duration at twice the rate

	merged, err := Merge([]Clip{b1, b2})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.SampleRate != 8000 {
		t.Fatalf("sample rate %d, want 8000", merged.SampleRate)
	}
	if len(merged.Samples) != 150 {
		t.Fatalf("got %d samples, want 150", len(merged.Samples))
	}
}

func TestMergeEmptyFails(t *testing.T) {
	if _, err := Merge(nil); err == nil {
		t.Fatal("expected error for empty merge")
	}
}

func TestDuration(t *testing.T) {
	clip := rampClip(12000, 8000, 1)
	if got := clip.Duration(); got != 1500*time.Millisecond {
		t.Fatalf("duration %v, want 1.5s", got)
	}
}
