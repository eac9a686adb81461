package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redubline/api/internal/audio"
	"github.com/redubline/api/internal/classify"
	"github.com/redubline/api/internal/dispatcher"
	"github.com/redubline/api/internal/jobmanager"
	"github.com/redubline/api/internal/model"
	"github.com/redubline/api/internal/quality"
	"github.com/redubline/api/internal/resource"
	"github.com/redubline/api/internal/translate"
)

// sttSampleRate is the extraction target for speech recognition input;
// ttsSampleRate is what every configured synthesizer is expected to
// return, since the Assembler concatenates raw PCM at one fixed rate.
const (
	sttSampleRate = 16000
	ttsSampleRate = 22050
)

// ChatClients names an LLM-backed client (translate.ChatClient and
// quality.ChatClient share this exact shape) by dispatcher engine ID.
type ChatClients map[string]translate.ChatClient

// Orchestrator walks one job through every pipeline stage end to end:
// one worker owns one job through extract, transcribe, translate,
// optional verify/refine, synthesize, and merge.
type Orchestrator struct {
	jobs       *jobmanager.Manager
	dispatch   *dispatcher.Dispatcher
	translator *translate.Translator
	extractor  Extractor
	muxer      MediaMuxer
	storage    StorageBackend

	sttClients    map[string]SpeechRecognizer
	localSTT      SpeechRecognizer
	ttsClients    map[string]Synthesizer
	localTTS      LocalSynthesizer
	chatClients   ChatClients
	evalClients   ChatClients
	tempoAdjuster audio.TempoAdjuster

	creds   dispatcher.CredentialSet
	gate    *resource.Gate
	workDir string
}

// Config bundles every adapter and credential set the orchestrator
// needs, so main.go can build one value and hand it over.
type Config struct {
	Jobs        *jobmanager.Manager
	Dispatch    *dispatcher.Dispatcher
	Translator  *translate.Translator
	Extractor   Extractor
	Muxer       MediaMuxer
	Storage     StorageBackend
	STTClients  map[string]SpeechRecognizer
	LocalSTT    SpeechRecognizer
	TTSClients  map[string]Synthesizer
	LocalTTS    LocalSynthesizer
	ChatClients ChatClients
	// EvalClients backs the quality evaluator specifically, so dual
	// evaluation can run at its own low, deterministic temperature
	// instead of whatever the translation clients were built with.
	EvalClients   ChatClients
	TempoAdjuster audio.TempoAdjuster
	Credentials   dispatcher.CredentialSet
	Gate          *resource.Gate
	WorkDir       string
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		jobs:          cfg.Jobs,
		dispatch:      cfg.Dispatch,
		translator:    cfg.Translator,
		extractor:     cfg.Extractor,
		muxer:         cfg.Muxer,
		storage:       cfg.Storage,
		sttClients:    cfg.STTClients,
		localSTT:      cfg.LocalSTT,
		ttsClients:    cfg.TTSClients,
		localTTS:      cfg.LocalTTS,
		chatClients:   cfg.ChatClients,
		evalClients:   cfg.EvalClients,
		tempoAdjuster: cfg.TempoAdjuster,
		creds:         cfg.Credentials,
		gate:          cfg.Gate,
		workDir:       cfg.WorkDir,
	}
}

// jobState carries the intermediate artifacts one Run call threads
// through its stages. Nothing here is visible outside the pipeline
// package; the only externally observable state is what's written back
// through m.jobs.
type jobState struct {
	jobID           string
	settings        model.Settings
	videoPath       string
	audioPath       string
	videoDuration   float64
	transcript      model.Transcript
	chunks          []model.TranslationChunk
	translatedText  []string
	quality         *model.QualityReport
	synthesized     []model.SynthesizedSegment
	outputPath      string
}

// Run drives jobID through the full pipeline. It never returns an
// error to the caller by design (a worker loop calls this and moves on
// to the next queued job) -- all failure is recorded on the job itself
// via m.jobs.SetStatus/AppendLog.
func (o *Orchestrator) Run(ctx context.Context, jobID string) {
	settings, err := o.jobs.Settings(jobID)
	if err != nil {
		return
	}
	artifacts, err := o.jobs.Artifacts(jobID)
	if err != nil {
		return
	}

	o.jobs.SetStatus(jobID, model.JobStatusProcessing)
	st := &jobState{jobID: jobID, settings: settings, videoPath: artifacts.InputPath}
	weights := (&model.Job{Settings: settings}).ProgressWeights()

	stages := []struct {
		stage model.Stage
		run   func(context.Context, *jobState) error
	}{
		{model.StageExtract, o.runExtract},
		{model.StageTranscribe, o.runTranscribe},
		{model.StageTranslate, o.runTranslate},
		{model.StageSynthesize, o.runSynthesize},
		{model.StageMerge, o.runMerge},
	}

	cumulative := 0
	for _, s := range stages {
		if o.jobs.IsCancelled(jobID) {
			o.jobs.AppendLog(jobID, s.stage, "cancellation observed, stopping")
			o.jobs.FinishCancelled(jobID)
			return
		}

		o.jobs.UpdateStage(jobID, s.stage)
		if err := s.run(ctx, st); err != nil {
			if classify.KindOf(err) == classify.KindCancelled {
				o.jobs.FinishCancelled(jobID)
				return
			}
			o.jobs.AppendLog(jobID, s.stage, fmt.Sprintf("failed: %v", err))
			o.jobs.SetStatus(jobID, model.JobStatusFailed)
			return
		}
		cumulative += weights[s.stage]
		if s.stage == model.StageTranslate && settings.VerifyTranslation {
			// runTranslate folds the verify/refine loop into itself
			// rather than running it as a separate Run stage, so its
			// weight is credited alongside translate's, not skipped.
			cumulative += weights[model.StageVerify]
		}
		o.jobs.SetProgress(jobID, cumulative)
	}

	if st.quality != nil {
		o.jobs.SetQuality(jobID, *st.quality)
	}
	o.jobs.SetOutput(jobID, st.outputPath)
	o.mirrorToStorage(ctx, jobID, st.outputPath)
	o.jobs.SetProgress(jobID, 100)
	o.jobs.SetStatus(jobID, model.JobStatusCompleted)
}

func (o *Orchestrator) runExtract(ctx context.Context, st *jobState) error {
	jobDir := filepath.Join(o.workDir, st.jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return fmt.Errorf("pipeline: create job dir: %w", err)
	}

	audioPath := filepath.Join(jobDir, "source.wav")
	if _, err := o.extractor.Extract(ctx, st.videoPath, audioPath, sttSampleRate); err != nil {
		return err
	}
	duration, err := o.extractor.Probe(ctx, st.videoPath)
	if err != nil {
		return err
	}
	st.audioPath = audioPath
	st.videoDuration = duration
	o.jobs.AppendLog(st.jobID, model.StageExtract, "extracted source audio")
	return nil
}

func (o *Orchestrator) runTranscribe(ctx context.Context, st *jobState) error {
	chain, err := o.dispatch.Resolve(model.EngineStageSTT, st.settings, o.creds)
	if err != nil {
		return err
	}

	var lastErr error
	for _, engine := range chain {
		if o.jobs.IsCancelled(st.jobID) {
			return classify.Cancelled("pipeline.runTranscribe")
		}

		recognizer, guard, ok := o.sttRecognizer(ctx, engine)
		if !ok {
			continue
		}
		transcript, err := recognizer.Transcribe(ctx, st.audioPath, st.settings.SourceLang)
		if guard != nil {
			guard.Release()
		}
		if err != nil {
			lastErr = err
			if classify.AdvancesFallback(classify.KindOf(err)) {
				continue
			}
			return err
		}
		if err := transcript.Validate(); err != nil {
			lastErr = err
			continue
		}
		st.transcript = transcript
		o.jobs.AppendLog(st.jobID, model.StageTranscribe, fmt.Sprintf("transcribed %d segments via %s", len(transcript.Segments), engine.ID))
		return nil
	}
	return classify.New(classify.KindInputExhaustion, "pipeline.runTranscribe", fmt.Errorf("no STT engine succeeded: %w", lastErr))
}

// sttRecognizer resolves the concrete recognizer for engine, acquiring
// the resource gate for local (GPU-resident) engines. The returned
// guard, if non-nil, must be released by the caller once the call
// completes.
func (o *Orchestrator) sttRecognizer(ctx context.Context, engine model.EngineSpec) (SpeechRecognizer, *resource.Guard, bool) {
	if engine.Locality == model.LocalityLocal {
		if o.localSTT == nil {
			return nil, nil, false
		}
		guard, err := o.gate.Acquire(ctx, func() {})
		if err != nil {
			return nil, nil, false
		}
		return o.localSTT, guard, true
	}
	c, ok := o.sttClients[engine.ID]
	return c, nil, ok
}

func (o *Orchestrator) runTranslate(ctx context.Context, st *jobState) error {
	chain, err := o.dispatch.Resolve(model.EngineStageTranslate, st.settings, o.creds)
	if err != nil {
		return err
	}

	var evalChain []model.EngineSpec
	var evaluator translate.Evaluator
	if st.settings.VerifyTranslation {
		evalChain, err = o.dispatch.Resolve(model.EngineStageEvaluate, st.settings, o.creds)
		if err != nil {
			return err
		}
		evalClients := o.evalClients
		if evalClients == nil {
			evalClients = o.chatClients
		}
		evaluator = quality.NewEvaluator(evalChain, castChatClients(evalClients))
	}

	st.chunks = translate.Chunk(st.transcript.Segments)
	translatedBySegment := make([]string, len(st.transcript.Segments))

	var aggReport *model.QualityReport
	needsReview := false

	for i, chunk := range st.chunks {
		if o.jobs.IsCancelled(st.jobID) {
			return classify.Cancelled("pipeline.runTranslate")
		}

		translated, err := o.translator.TranslateChunk(ctx, chunk, st.settings.SourceLang, st.settings.TargetLang, chain)
		if err != nil {
			return err
		}

		if st.settings.VerifyTranslation && evaluator != nil {
			refined, report, err := o.translator.Refine(ctx, translated, st.settings.SourceLang, st.settings.TargetLang, chain, evaluator)
			if err == nil {
				translated = refined
				aggReport = mergeQuality(aggReport, report)
			}
			if translated.NeedsReview {
				needsReview = true
			}
		}

		for j, idx := range translated.SegmentIndices {
			if j < len(translated.TranslatedTexts) {
				translatedBySegment[idx] = translated.TranslatedTexts[j]
			}
		}
		st.chunks[i] = translated
	}

	st.translatedText = translatedBySegment
	if aggReport != nil {
		if needsReview && aggReport.Recommendation == model.RecommendationApproved {
			aggReport.Recommendation = model.RecommendationReviewNeeded
		}
		st.quality = aggReport
	}
	o.jobs.AppendLog(st.jobID, model.StageTranslate, fmt.Sprintf("translated %d chunks", len(st.chunks)))
	return nil
}

func (o *Orchestrator) runSynthesize(ctx context.Context, st *jobState) error {
	chain, err := o.dispatch.Resolve(model.EngineStageTTS, st.settings, o.creds)
	if err != nil {
		return err
	}
	if len(chain) == 0 {
		return classify.New(classify.KindInputExhaustion, "pipeline.runSynthesize", fmt.Errorf("no TTS engine configured"))
	}

	segments := make([]model.SynthesizedSegment, len(st.transcript.Segments))
	jobDir := filepath.Join(o.workDir, st.jobID)

	for i, text := range st.translatedText {
		if o.jobs.IsCancelled(st.jobID) {
			return classify.Cancelled("pipeline.runSynthesize")
		}
		voice := st.transcript.Segments[i].SpeakerLabel
		if voice == "" {
			voice = "default"
		}

		seg, err := o.synthesizeWithChain(ctx, chain, text, voice, st.settings.CloneVoice, filepath.Join(jobDir, fmt.Sprintf("seg-%04d.wav", i)))
		if err != nil {
			return err
		}
		seg.SegmentIndex = i
		segments[i] = seg
	}

	st.synthesized = segments
	o.jobs.AppendLog(st.jobID, model.StageSynthesize, fmt.Sprintf("synthesized %d segments", len(segments)))
	return nil
}

func (o *Orchestrator) synthesizeWithChain(ctx context.Context, chain []model.EngineSpec, text, voice string, cloneVoice bool, localOutPath string) (model.SynthesizedSegment, error) {
	var lastErr error
	for _, engine := range chain {
		if engine.Locality == model.LocalityLocal {
			if o.localTTS == nil {
				continue
			}
			guard, err := o.gate.Acquire(ctx, func() {})
			if err != nil {
				return model.SynthesizedSegment{}, classify.Cancelled("pipeline.synthesizeWithChain")
			}
			seg, err := o.localTTS.Synthesize(ctx, text, voice, localOutPath)
			guard.Release()
			if err != nil {
				lastErr = err
				if classify.AdvancesFallback(classify.KindOf(err)) {
					continue
				}
				return model.SynthesizedSegment{}, err
			}
			return seg, nil
		}

		client, ok := o.ttsClients[engine.ID]
		if !ok {
			continue
		}
		seg, err := client.Synthesize(ctx, text, voice, cloneVoice)
		if err != nil {
			lastErr = err
			if classify.AdvancesFallback(classify.KindOf(err)) {
				continue
			}
			return model.SynthesizedSegment{}, err
		}
		return seg, nil
	}
	return model.SynthesizedSegment{}, classify.New(classify.KindInputExhaustion, "pipeline.synthesizeWithChain", fmt.Errorf("all TTS engines exhausted: %w", lastErr))
}

func (o *Orchestrator) runMerge(ctx context.Context, st *jobState) error {
	starts := make([]float64, len(st.transcript.Segments))
	ends := make([]float64, len(st.transcript.Segments))
	for i, seg := range st.transcript.Segments {
		starts[i] = seg.StartSeconds
		ends[i] = seg.EndSeconds
	}

	assembler := audio.NewAssembler(o.tempoAdjuster)
	wavBytes, stretchFactor, err := assembler.Assemble(ctx, st.synthesized, starts, ends, st.settings.SyncMode, int(st.videoDuration), ttsSampleRate)
	if err != nil {
		return err
	}

	jobDir := filepath.Join(o.workDir, st.jobID)
	dubTrackPath := filepath.Join(jobDir, "dub.wav")
	if err := os.WriteFile(dubTrackPath, wavBytes, 0o644); err != nil {
		return fmt.Errorf("pipeline: write dub track: %w", err)
	}

	outputPath := filepath.Join(jobDir, "output.mp4")
	if _, err := o.muxer.Merge(ctx, st.videoPath, dubTrackPath, outputPath, stretchFactor); err != nil {
		return err
	}
	st.outputPath = outputPath
	o.jobs.AppendLog(st.jobID, model.StageMerge, "merged dub track into output")
	return nil
}

func (o *Orchestrator) mirrorToStorage(ctx context.Context, jobID, outputPath string) {
	if o.storage == nil {
		return
	}
	f, err := os.Open(outputPath)
	if err != nil {
		return
	}
	defer f.Close()

	key := fmt.Sprintf("dubs/%s/%s", jobID, filepath.Base(outputPath))
	url, err := o.storage.Upload(ctx, key, f, "video/mp4")
	if err != nil {
		o.jobs.AppendLog(jobID, "", fmt.Sprintf("remote mirror upload failed (non-fatal): %v", err))
		return
	}
	o.jobs.SetRemoteURL(jobID, url)
}

// castChatClients adapts a ChatClients map (translate.ChatClient
// values) to a quality.ChatClient map. Both interfaces have the exact
// same method set, so every value already satisfies both -- this just
// rebuilds the map with the other interface's static type.
func castChatClients(clients ChatClients) map[string]quality.ChatClient {
	out := make(map[string]quality.ChatClient, len(clients))
	for id, c := range clients {
		out[id] = c
	}
	return out
}

func mergeQuality(agg *model.QualityReport, report model.QualityReport) *model.QualityReport {
	if agg == nil {
		r := report
		return &r
	}

	wasRejected := agg.Recommendation == model.RecommendationReject
	agg.OverallScore = (agg.OverallScore + report.OverallScore) / 2
	agg.Issues = append(agg.Issues, report.Issues...)
	if report.Unavailable {
		agg.Unavailable = true
	}
	if report.TermPreservation.Score < agg.TermPreservation.Score {
		agg.TermPreservation = report.TermPreservation
	}

	switch {
	case agg.OverallScore < model.ReviewThresholdScore:
		agg.Recommendation = model.RecommendationReject
	case agg.OverallScore < model.RefineAcceptScore:
		agg.Recommendation = model.RecommendationReviewNeeded
	default:
		agg.Recommendation = model.RecommendationApproved
	}

	// A term-preservation floor breach is sticky across chunks: once
	// any chunk trips it, the job-level recommendation stays REJECT
	// even if later chunks pull the averaged score back up.
	if wasRejected || report.Recommendation == model.RecommendationReject || agg.TermPreservation.Score < model.TermPreservationRejectFloor {
		agg.Recommendation = model.RecommendationReject
	}
	return agg
}
