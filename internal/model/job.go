package model

import "time"

// JobStatus is the top-level lifecycle state of a job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Stage is the current pipeline stage of a processing job.
type Stage string

const (
	StageNone       Stage = ""
	StageExtract    Stage = "extract"
	StageTranscribe Stage = "transcribe"
	StageTranslate  Stage = "translate"
	StageVerify     Stage = "verify"
	StageSynthesize Stage = "synthesize"
	StageMerge      Stage = "merge"
)

// SyncMode governs how synthesized audio is reconciled with the video timeline.
type SyncMode string

const (
	SyncModeNatural      SyncMode = "natural"
	SyncModeSpeedSync    SyncMode = "speed_sync"
	SyncModeVideoStretch SyncMode = "video_stretch"
)

// EngineChoice selects an auto-resolved engine or a pinned one per stage.
type EngineChoice string

const EngineAuto EngineChoice = "auto"

// Settings are the user-supplied parameters fixed at job creation.
type Settings struct {
	SourceLang        string       `json:"sourceLang" validate:"required,alpha,min=2,max=8"`
	TargetLang        string       `json:"targetLang" validate:"required,alpha,min=2,max=8"`
	CloneVoice        bool         `json:"cloneVoice"`
	VerifyTranslation bool         `json:"verifyTranslation"`
	SyncMode          SyncMode     `json:"syncMode" validate:"required,oneof=natural speed_sync video_stretch"`
	TranslationEngine EngineChoice `json:"translationEngine"`
	TTSEngine         EngineChoice `json:"ttsEngine"`
	STTEngine         EngineChoice `json:"sttEngine"`
}

// LogEntry is one bounded, timestamped message in a job's log buffer.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     Stage     `json:"stage,omitempty"`
	Message   string    `json:"message"`
}

const (
	MaxLogEntries    = 1000
	LogTrimBatch     = 100
	MaxLogMessageLen = 500
	logTruncateMark  = "..."
)

// Artifacts records the file paths a job owns on disk.
type Artifacts struct {
	InputPath  string `json:"-"`
	OutputPath string `json:"-"`
	RemoteURL  string `json:"remoteUrl,omitempty"`
}

// Job is the primary in-memory entity tracked by the JobManager.
type Job struct {
	ID          string
	Settings    Settings
	Status      JobStatus
	Stage       Stage
	Progress    int
	Logs        []LogEntry
	Artifacts   Artifacts
	CreatedAt   time.Time
	CompletedAt *time.Time
	Quality     *QualityReport
}

// JobView is the read-only, deep-copied snapshot handed back to callers.
type JobView struct {
	ID          string         `json:"jobId"`
	Status      JobStatus      `json:"status"`
	CurrentStep Stage          `json:"currentStep"`
	Progress    int            `json:"progress"`
	Logs        []LogEntry     `json:"logs"`
	OutputFile  string         `json:"outputFile,omitempty"`
	DownloadURL string         `json:"downloadUrl,omitempty"`
	Quality     *QualityReport `json:"qualityResult,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// StageWeights assigns each stage's share of the 0-100 progress scale.
// Rescaled to 100 when verify is disabled (see Job.ProgressWeights).
var StageWeights = map[Stage]int{
	StageExtract:    5,
	StageTranscribe: 15,
	StageTranslate:  25,
	StageVerify:     15,
	StageSynthesize: 25,
	StageMerge:      15,
}

// ProgressWeights returns the stage weights for this job's settings,
// rescaled to sum to 100 when verify is disabled.
func (j *Job) ProgressWeights() map[Stage]int {
	if j.Settings.VerifyTranslation {
		out := make(map[Stage]int, len(StageWeights))
		for k, v := range StageWeights {
			out[k] = v
		}
		return out
	}
	out := make(map[Stage]int, len(StageWeights))
	total := 0
	for k, v := range StageWeights {
		if k == StageVerify {
			continue
		}
		total += v
	}
	sum := 0
	for k, v := range StageWeights {
		if k == StageVerify {
			out[k] = 0
			continue
		}
		out[k] = v * 100 / total
		sum += out[k]
	}
	// Integer division leaves a remainder; credit it to the last stage
	// so the weights sum to exactly 100.
	out[StageMerge] += 100 - sum
	return out
}
