package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/narrata-labs/narrata-core/internal/wavcodec"
)

type execSynth struct {
	cmd        []string
	sampleRate int
	mu         sync.Mutex
}

type execRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type execResponse struct {
	PCMBase64  string `json:"pcm_base64"`
	SampleRate int    `json:"sample_rate"`
}

// NewExecSynth builds a synthesizer that shells out to an external command.
// The command receives a JSON request on stdin and must print one JSON
// object with base64 little-endian 16-bit mono PCM on stdout.
func NewExecSynth(command string, sampleRate int) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synth command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synth command empty")
	}
	return &execSynth{cmd: args, sampleRate: sampleRate}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req Request) (wavcodec.Clip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := json.Marshal(execRequest{
		Text:       req.Text,
		Voice:      string(req.Voice),
		SampleRate: e.sampleRate,
		Channels:   1,
	})
	if err != nil {
		return wavcodec.Clip{}, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return wavcodec.Clip{}, fmt.Errorf("synth command failed: %w: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return wavcodec.Clip{}, fmt.Errorf("decode synth response: %w", err)
	}
	pcm, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
	if err != nil {
		return wavcodec.Clip{}, fmt.Errorf("decode synth pcm: %w", err)
	}
	if len(pcm) == 0 {
		return wavcodec.Clip{}, fmt.Errorf("synth command returned no audio")
	}
	if len(pcm)%2 != 0 {
		return wavcodec.Clip{}, fmt.Errorf("synth pcm payload not aligned")
	}

	rate := resp.SampleRate
	if rate <= 0 {
		rate = e.sampleRate
	}
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return wavcodec.Clip{Samples: samples, SampleRate: rate}, nil
}
