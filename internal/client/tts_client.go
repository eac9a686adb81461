package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/redubline/api/internal/classify"
	"github.com/redubline/api/internal/model"
)

// TTSClient is a remote text-to-speech adapter, structured after
// SunoClient's post/get/doRequest helpers and structured request/
// response logging.
type TTSClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	sampleRate int
}

// TTSConfig configures a remote TTSClient.
type TTSConfig struct {
	BaseURL    string
	APIKey     string
	SampleRate int
	Timeout    time.Duration
}

// NewTTSClient builds a remote TTS adapter.
func NewTTSClient(cfg TTSConfig) *TTSClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 22050
	}
	return &TTSClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		sampleRate: sampleRate,
	}
}

func (c *TTSClient) IsConfigured() bool { return c.apiKey != "" }

type ttsRequest struct {
	Text         string `json:"text"`
	Voice        string `json:"voice"`
	CloneVoice   bool   `json:"cloneVoice,omitempty"`
	SampleRateHz int    `json:"sampleRateHz"`
}

// Synthesize requests target-language speech for text in the given
// voice, returning raw 16-bit PCM audio. cloneVoice signals the
// provider to use its voice-cloning path when the engine supports it.
func (c *TTSClient) Synthesize(ctx context.Context, text, voice string, cloneVoice bool) (model.SynthesizedSegment, error) {
	reqBody, err := json.Marshal(ttsRequest{Text: text, Voice: voice, CloneVoice: cloneVoice, SampleRateHz: c.sampleRate})
	if err != nil {
		return model.SynthesizedSegment{}, fmt.Errorf("tts client: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(reqBody))
	if err != nil {
		return model.SynthesizedSegment{}, fmt.Errorf("tts client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[TTS API] -> POST %s (voice=%s, clone=%v)", req.URL.Path, voice, cloneVoice)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.SynthesizedSegment{}, classify.New(classify.KindTransientRemote, "tts_client.Synthesize", err)
	}
	defer resp.Body.Close()

	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SynthesizedSegment{}, classify.New(classify.KindTransientRemote, "tts_client.Synthesize", err)
	}
	log.Printf("[TTS API] <- %d (%d bytes)", resp.StatusCode, len(audioBytes))

	if err := classifyStatus("tts_client.Synthesize", resp.StatusCode, audioBytes); err != nil {
		return model.SynthesizedSegment{}, err
	}

	return model.SynthesizedSegment{
		AudioBytes:      audioBytes,
		SampleRate:      c.sampleRate,
		Channels:        1,
		DurationSeconds: float64(len(audioBytes)/2) / float64(c.sampleRate),
	}, nil
}

// readWAVData reads a WAV file written by a local CLI tool and returns
// only its raw PCM data, skipping the canonical 44-byte header.
func readWAVData(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < 44 {
		return nil, fmt.Errorf("client: %q too short to be a WAV file", path)
	}
	return raw[44:], nil
}
