package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/redubline/api/internal/classify"
	"github.com/redubline/api/internal/model"
)

// STTClient is a remote adapter for an OpenAI-Whisper-compatible
// transcription endpoint, structured after SunoClient's
// post/doRequest/structured-logging shape.
type STTClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// STTConfig configures a remote STTClient.
type STTConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewSTTClient builds a remote speech-recognition adapter.
func NewSTTClient(cfg STTConfig) *STTClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 180 * time.Second
	}
	return &STTClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

func (c *STTClient) IsConfigured() bool { return c.apiKey != "" }

type sttSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type sttResponse struct {
	Language string       `json:"language"`
	Segments []sttSegment `json:"segments"`
}

// Transcribe uploads the audio file at audioPath and returns a
// Transcript with segment-level start/end timestamps.
func (c *STTClient) Transcribe(ctx context.Context, audioPath, lang string) (model.Transcript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return model.Transcript{}, fmt.Errorf("stt client: open audio: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", audioPath)
	if err != nil {
		return model.Transcript{}, fmt.Errorf("stt client: build form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return model.Transcript{}, fmt.Errorf("stt client: copy audio: %w", err)
	}
	_ = writer.WriteField("model", c.model)
	_ = writer.WriteField("language", lang)
	_ = writer.WriteField("response_format", "verbose_json")
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return model.Transcript{}, fmt.Errorf("stt client: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[STT API] -> POST %s (lang=%s)", req.URL.Path, lang)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Transcript{}, classify.New(classify.KindTransientRemote, "stt_client.Transcribe", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Transcript{}, classify.New(classify.KindTransientRemote, "stt_client.Transcribe", err)
	}
	log.Printf("[STT API] <- %d (%d bytes)", resp.StatusCode, len(respBody))

	if err := classifyStatus("stt_client.Transcribe", resp.StatusCode, respBody); err != nil {
		return model.Transcript{}, err
	}

	var parsed sttResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return model.Transcript{}, classify.New(classify.KindMalformedResponse, "stt_client.Transcribe", err)
	}

	transcript := model.Transcript{Language: parsed.Language}
	for _, s := range parsed.Segments {
		transcript.Segments = append(transcript.Segments, model.Segment{
			StartSeconds: s.Start,
			EndSeconds:   s.End,
			Text:         s.Text,
		})
	}
	if transcript.Language == "" {
		transcript.Language = lang
	}
	return transcript, nil
}
