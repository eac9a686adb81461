// Package pipeline drives a single job through every stage of the
// redub pipeline (extract, transcribe, translate, verify/refine,
// synthesize, merge), per spec.md §4.2. It owns no state of its own --
// every read/write to a Job goes through jobmanager.Manager.
package pipeline

import (
	"context"
	"io"

	"github.com/redubline/api/internal/model"
)

// SpeechRecognizer transcribes an audio file into a timed transcript.
// Both the remote (client.STTClient) and local (client.LocalSTT)
// adapters satisfy this.
type SpeechRecognizer interface {
	Transcribe(ctx context.Context, audioPath, lang string) (model.Transcript, error)
}

// Synthesizer renders one line of target-language text as speech and
// returns raw audio bytes, satisfied by client.TTSClient.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, cloneVoice bool) (model.SynthesizedSegment, error)
}

// LocalSynthesizer is the on-host CLI-backed shape (client.LocalTTS),
// which writes to an explicit output path rather than returning bytes
// over HTTP.
type LocalSynthesizer interface {
	Synthesize(ctx context.Context, text, voice, outPath string) (model.SynthesizedSegment, error)
}

// Extractor pulls the audio track out of a source video and probes its
// duration, satisfied by client.Muxer.
type Extractor interface {
	Extract(ctx context.Context, videoPath, outputPath string, sampleRate int) (string, error)
	Probe(ctx context.Context, videoPath string) (float64, error)
}

// MediaMuxer merges the assembled dub track back into the source
// video, satisfied by client.Muxer.
type MediaMuxer interface {
	Merge(ctx context.Context, videoPath, audioPath, outputPath string, stretchFactor float64) (string, error)
}

// StorageBackend is the optional best-effort output mirror, satisfied
// by client.R2Client's Upload method.
type StorageBackend interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}
