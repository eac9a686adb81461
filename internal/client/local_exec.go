package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/redubline/api/internal/classify"
	"github.com/redubline/api/internal/model"
)

// LocalSTT shells out to a faster-whisper-style CLI binary, grounded
// on original_source/src/core/stt.py's local engine path.
type LocalSTT struct {
	binary string
}

// NewLocalSTT builds a local speech-recognition adapter around a CLI
// binary that accepts (--audio, --language, --output-format json) and prints
// verbose_json-shaped output to stdout.
func NewLocalSTT(binary string) *LocalSTT {
	if binary == "" {
		binary = "whisper-cli"
	}
	return &LocalSTT{binary: binary}
}

// Available reports whether the local binary is on PATH.
func (l *LocalSTT) Available() bool {
	_, err := exec.LookPath(l.binary)
	return err == nil
}

func (l *LocalSTT) Transcribe(ctx context.Context, audioPath, lang string) (model.Transcript, error) {
	if err := ValidatePathArg(audioPath); err != nil {
		return model.Transcript{}, err
	}

	out, err := runSubprocess(ctx, 300*time.Second, l.binary, "--audio", audioPath, "--language", lang, "--output-format", "json")
	if err != nil {
		return model.Transcript{}, err
	}

	var parsed sttResponse
	if jsonErr := json.Unmarshal(out, &parsed); jsonErr != nil {
		return model.Transcript{}, classify.New(classify.KindMalformedResponse, "local_exec.Transcribe", jsonErr)
	}

	transcript := model.Transcript{Language: parsed.Language}
	if transcript.Language == "" {
		transcript.Language = lang
	}
	for _, s := range parsed.Segments {
		transcript.Segments = append(transcript.Segments, model.Segment{
			StartSeconds: s.Start,
			EndSeconds:   s.End,
			Text:         s.Text,
		})
	}
	return transcript, nil
}

// LocalTTS shells out to a local text-to-speech CLI binary that writes
// raw 16-bit PCM to a given output path.
type LocalTTS struct {
	binary     string
	sampleRate int
}

// NewLocalTTS builds a local TTS adapter around a CLI binary that
// accepts (--text, --voice, --out, --sample-rate).
func NewLocalTTS(binary string, sampleRate int) *LocalTTS {
	if binary == "" {
		binary = "tts-cli"
	}
	if sampleRate == 0 {
		sampleRate = 22050
	}
	return &LocalTTS{binary: binary, sampleRate: sampleRate}
}

func (l *LocalTTS) Available() bool {
	_, err := exec.LookPath(l.binary)
	return err == nil
}

func (l *LocalTTS) Synthesize(ctx context.Context, text, voice string, outPath string) (model.SynthesizedSegment, error) {
	if err := ValidatePathArg(outPath); err != nil {
		return model.SynthesizedSegment{}, err
	}

	if _, err := runSubprocess(ctx, 120*time.Second, l.binary,
		"--text", text, "--voice", voice, "--out", outPath, "--sample-rate", fmt.Sprint(l.sampleRate)); err != nil {
		return model.SynthesizedSegment{}, err
	}

	raw, err := readWAVData(outPath)
	if err != nil {
		return model.SynthesizedSegment{}, classify.New(classify.KindFatalSubprocess, "local_exec.Synthesize", err)
	}

	return model.SynthesizedSegment{
		AudioBytes:      raw,
		SampleRate:      l.sampleRate,
		Channels:        1,
		DurationSeconds: float64(len(raw)/2) / float64(l.sampleRate),
	}, nil
}
