// Package wavcodec converts between mono 16-bit PCM sample slices and WAV
// byte payloads, and concatenates decoded clips.
package wavcodec

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// BitDepth is the PCM bit depth of every encoded artifact.
	BitDepth = 16

	numChannels = 1
)

// Clip holds decoded single-channel PCM audio.
type Clip struct {
	Samples    []int
	SampleRate int
}

// Duration reports the clip's playback length.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Encode renders the clip as a self-contained mono 16-bit WAV payload.
func Encode(clip Clip) ([]byte, error) {
	if clip.SampleRate <= 0 {
		return nil, fmt.Errorf("encode wav: sample rate must be positive")
	}

	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, clip.SampleRate, BitDepth, numChannels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChannels, SampleRate: clip.SampleRate},
		Data:           clip.Samples,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}
	return ws.Bytes(), nil
}

// Decode parses a WAV payload back into a clip. Multi-channel input is
// downmixed to mono by averaging the channels.
func Decode(data []byte) (Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return Clip{}, fmt.Errorf("decode wav: missing pcm data")
	}

	samples := buf.Data
	if buf.Format.NumChannels > 1 {
		samples = downmix(buf.Data, buf.Format.NumChannels)
	}
	return Clip{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

// Merge concatenates clips in the given order into one clip at the first
// clip's sample rate. Clips recorded at a different rate are resampled with
// nearest-neighbor interpolation. Callers that care about chronology must
// order the input by creation time before calling.
func Merge(clips []Clip) (Clip, error) {
	if len(clips) == 0 {
		return Clip{}, fmt.Errorf("merge: no clips")
	}
	rate := clips[0].SampleRate
	if rate <= 0 {
		return Clip{}, fmt.Errorf("merge: first clip has invalid sample rate %d", rate)
	}

	total := 0
	for _, c := range clips {
		total += len(c.Samples)
	}
	out := make([]int, 0, total)
	for _, c := range clips {
		if c.SampleRate == rate || c.SampleRate <= 0 {
			out = append(out, c.Samples...)
			continue
		}
		out = append(out, resample(c.Samples, c.SampleRate, rate)...)
	}
	return Clip{Samples: out, SampleRate: rate}, nil
}

func resample(samples []int, from, to int) []int {
	if from == to || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n == 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		src := int(int64(i) * int64(from) / int64(to))
		if src >= len(samples) {
			src = len(samples) - 1
		}
		out[i] = samples[src]
	}
	return out
}

func downmix(interleaved []int, channels int) []int {
	frames := len(interleaved) / channels
	out := make([]int, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		out[i] = sum / channels
	}
	return out
}

// memWriteSeeker adapts an in-memory buffer to the io.WriteSeeker the wav
// encoder needs for header back-patching.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.buf) {
		grown := make([]byte, need)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("seek: negative position")
	}
	m.pos = int(next)
	return next, nil
}

func (m *memWriteSeeker) Bytes() []byte { return m.buf }
