package client

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/redubline/api/internal/audio"
)

// MuxerTimeout bounds an ffmpeg invocation, per spec.md §5's 600s
// media-processing subprocess deadline.
const MuxerTimeout = 600 * time.Second

// Muxer wraps an external ffmpeg-compatible binary invoked with an
// explicit argument vector, never a shell string.
type Muxer struct {
	binary string
}

// NewMuxer builds a Muxer around the named binary (normally "ffmpeg"
// resolved from PATH, overridable for testing/alternate installs).
func NewMuxer(binary string) *Muxer {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Muxer{binary: binary}
}

// Available reports whether the configured binary can be found, used
// by the system-status endpoint to report muxer availability without
// attempting a merge.
func (m *Muxer) Available() bool {
	_, err := exec.LookPath(m.binary)
	return err == nil
}

// Merge combines the original video's stream with the assembled dub
// track, replacing its audio. When stretchFactor != 1.0 (video_stretch
// sync mode) the video stream is stretched by that factor via
// ffmpeg's setpts filter so it matches the dub track's duration.
func (m *Muxer) Merge(ctx context.Context, videoPath, audioPath, outputPath string, stretchFactor float64) (string, error) {
	for _, p := range []string{videoPath, audioPath, outputPath} {
		if err := ValidatePathArg(p); err != nil {
			return "", err
		}
	}

	args := []string{"-y", "-i", videoPath, "-i", audioPath}
	if stretchFactor != 0 && stretchFactor != 1.0 {
		args = append(args, "-filter:v", fmt.Sprintf("setpts=%.6f*PTS", stretchFactor))
	}
	args = append(args,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "libx264", "-c:a", "aac",
		"-shortest", outputPath,
	)

	if _, err := runSubprocess(ctx, MuxerTimeout, m.binary, args...); err != nil {
		return "", err
	}
	return outputPath, nil
}

// Extract pulls the audio track out of a source video as 16-bit PCM
// WAV at sampleRate, the first step of every job (spec.md §4's extract
// stage), via the same subprocess boundary as Merge.
func (m *Muxer) Extract(ctx context.Context, videoPath, outputPath string, sampleRate int) (string, error) {
	for _, p := range []string{videoPath, outputPath} {
		if err := ValidatePathArg(p); err != nil {
			return "", err
		}
	}

	args := []string{
		"-y", "-i", videoPath,
		"-vn", "-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(sampleRate), "-ac", "1",
		outputPath,
	}
	if _, err := runSubprocess(ctx, MuxerTimeout, m.binary, args...); err != nil {
		return "", err
	}
	return outputPath, nil
}

// Probe returns a source video's duration in seconds via ffprobe, used
// to size the video_stretch sync mode's stretch factor.
func (m *Muxer) Probe(ctx context.Context, videoPath string) (float64, error) {
	if err := ValidatePathArg(videoPath); err != nil {
		return 0, err
	}
	out, err := runSubprocess(ctx, 30*time.Second, "ffprobe",
		"-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", videoPath)
	if err != nil {
		return 0, err
	}
	var seconds float64
	if _, err := fmt.Sscanf(string(out), "%f", &seconds); err != nil {
		return 0, fmt.Errorf("muxer: parse ffprobe duration: %w", err)
	}
	return seconds, nil
}

// TempoAdjust implements audio.TempoAdjuster via ffmpeg's atempo
// filter, feeding and reading raw 16-bit PCM through temp files so no
// audio DSP is hand-rolled in Go for genuine time-stretching.
type TempoAdjust struct {
	binary  string
	tempDir string
}

// NewTempoAdjust builds an audio.TempoAdjuster backed by ffmpeg.
func NewTempoAdjust(binary, tempDir string) *TempoAdjust {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &TempoAdjust{binary: binary, tempDir: tempDir}
}

var _ audio.TempoAdjuster = (*TempoAdjust)(nil)

// Adjust compresses p by factor (>1.0 speeds up / shortens) using
// atempo, chained across multiple filter stages since atempo alone
// only supports 0.5-2.0 per stage.
func (t *TempoAdjust) Adjust(ctx context.Context, p audio.PCM, factor float64) (audio.PCM, error) {
	inFile, err := os.CreateTemp(t.tempDir, "tempo-in-*.wav")
	if err != nil {
		return audio.PCM{}, fmt.Errorf("tempo adjust: create temp input: %w", err)
	}
	defer os.Remove(inFile.Name())
	if _, err := inFile.Write(audio.EncodeWAV(p)); err != nil {
		inFile.Close()
		return audio.PCM{}, fmt.Errorf("tempo adjust: write temp input: %w", err)
	}
	inFile.Close()

	outPath := inFile.Name() + ".out.wav"
	defer os.Remove(outPath)

	if err := ValidatePathArg(inFile.Name()); err != nil {
		return audio.PCM{}, err
	}
	if err := ValidatePathArg(outPath); err != nil {
		return audio.PCM{}, err
	}

	filter := atempoChain(factor)
	if _, err := runSubprocess(ctx, 60*time.Second, t.binary,
		"-y", "-i", inFile.Name(), "-filter:a", filter, outPath); err != nil {
		return audio.PCM{}, err
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("tempo adjust: read output: %w", err)
	}
	if len(raw) < 44 {
		return audio.PCM{}, fmt.Errorf("tempo adjust: output too short to be a WAV file")
	}
	return audio.DecodePCM16(p.SampleRate, raw[44:]), nil
}

// atempoChain builds a chain of atempo filters, each within ffmpeg's
// supported 0.5-2.0 range, whose product equals factor.
func atempoChain(factor float64) string {
	if factor <= 0 {
		factor = 1.0
	}
	var stages []string
	for factor > 2.0 {
		stages = append(stages, "atempo=2.0")
		factor /= 2.0
	}
	for factor < 0.5 {
		stages = append(stages, "atempo=0.5")
		factor /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%.4f", factor))

	out := stages[0]
	for _, s := range stages[1:] {
		out += "," + s
	}
	return out
}
