package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Groq      GroqConfig
	Gemini    GeminiConfig
	R2        R2Config
	STT       STTConfig
	TTS       TTSConfig
	LocalExec LocalExecConfig
	Pipeline  PipelineConfig
}

type ServerConfig struct {
	Host     string
	Port     string
	Env      string
	LogLevel string
	CORS     []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig gates the API-key middleware and signs download tokens.
// Key values are never logged.
type AuthConfig struct {
	Enabled       bool
	APIKeys       []string
	DownloadToken DownloadTokenConfig
}

type DownloadTokenConfig struct {
	Secret     string
	ExpiryMins int
}

type RateLimitConfig struct {
	JobsPerMinute int
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type STTConfig struct {
	GroqAPIKey    string
	GroqBaseURL   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
}

type TTSConfig struct {
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	NaverAPIKey       string
	NaverBaseURL      string
	YandexAPIKey      string
	YandexBaseURL     string
}

// LocalExecConfig names the on-host binaries used for GPU-resident
// fallback engines and media subprocess boundary calls.
type LocalExecConfig struct {
	WhisperBinary    string
	TTSBinary        string
	FFmpegBinary     string
	MinVRAMGB        float64
	SubtitleBatchPct int
}

type PipelineConfig struct {
	WorkerPoolSize int
	MaxUploadBytes int64
	WorkDir        string
	SyncMode       string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("GROQ_API_KEY")
	readSecret("GEMINI_API_KEY")
	readSecret("OPENAI_API_KEY")
	readSecret("ELEVENLABS_API_KEY")
	readSecret("NAVER_API_KEY")
	readSecret("YANDEX_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("DOWNLOAD_TOKEN_SECRET")
	readSecret("API_KEYS")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.host", "SERVER_HOST")
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.cors", "CORS_ORIGINS")

	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")

	_ = viper.BindEnv("auth.enabled", "AUTH_ENABLED")
	_ = viper.BindEnv("auth.api_keys", "API_KEYS")
	_ = viper.BindEnv("auth.download_token.secret", "DOWNLOAD_TOKEN_SECRET")
	_ = viper.BindEnv("auth.download_token.expiry_mins", "DOWNLOAD_TOKEN_EXPIRY_MINS")

	_ = viper.BindEnv("ratelimit.jobs_per_minute", "RATE_LIMIT_JOBS_PER_MIN")

	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("groq.model", "GROQ_MODEL")

	_ = viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = viper.BindEnv("gemini.base_url", "GEMINI_BASE_URL")
	_ = viper.BindEnv("gemini.model", "GEMINI_MODEL")

	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")

	_ = viper.BindEnv("stt.groq_api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("stt.groq_base_url", "GROQ_STT_BASE_URL")
	_ = viper.BindEnv("stt.openai_api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("stt.openai_base_url", "OPENAI_BASE_URL")
	_ = viper.BindEnv("stt.model", "STT_MODEL")

	_ = viper.BindEnv("tts.elevenlabs_api_key", "ELEVENLABS_API_KEY")
	_ = viper.BindEnv("tts.elevenlabs_base_url", "ELEVENLABS_BASE_URL")
	_ = viper.BindEnv("tts.naver_api_key", "NAVER_API_KEY")
	_ = viper.BindEnv("tts.naver_base_url", "NAVER_BASE_URL")
	_ = viper.BindEnv("tts.yandex_api_key", "YANDEX_API_KEY")
	_ = viper.BindEnv("tts.yandex_base_url", "YANDEX_BASE_URL")

	_ = viper.BindEnv("localexec.whisper_binary", "LOCAL_WHISPER_BINARY")
	_ = viper.BindEnv("localexec.tts_binary", "LOCAL_TTS_BINARY")
	_ = viper.BindEnv("localexec.ffmpeg_binary", "FFMPEG_BINARY")
	_ = viper.BindEnv("localexec.min_vram_gb", "MIN_VRAM_GB")
	_ = viper.BindEnv("localexec.subtitle_batch_pct", "SUBTITLE_BATCH_THRESHOLD_PCT")

	_ = viper.BindEnv("pipeline.worker_pool_size", "WORKER_POOL_SIZE")
	_ = viper.BindEnv("pipeline.max_upload_bytes", "MAX_UPLOAD_BYTES")
	_ = viper.BindEnv("pipeline.work_dir", "WORK_DIR")
	_ = viper.BindEnv("pipeline.sync_mode", "DEFAULT_SYNC_MODE")

	// Defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.cors", "*")

	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("auth.enabled", true)
	viper.SetDefault("auth.download_token.expiry_mins", 15)

	viper.SetDefault("ratelimit.jobs_per_minute", 10)

	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "llama-3.3-70b-versatile")

	viper.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta/openai")
	viper.SetDefault("gemini.model", "gemini-2.0-flash")

	viper.SetDefault("stt.groq_base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("stt.openai_base_url", "https://api.openai.com/v1")
	viper.SetDefault("stt.model", "whisper-large-v3")

	viper.SetDefault("tts.elevenlabs_base_url", "https://api.elevenlabs.io/v1")
	viper.SetDefault("tts.naver_base_url", "https://naveropenapi.apigw.ntruss.com")
	viper.SetDefault("tts.yandex_base_url", "https://tts.api.cloud.yandex.net")

	viper.SetDefault("localexec.whisper_binary", "whisper-cli")
	viper.SetDefault("localexec.tts_binary", "tts-cli")
	viper.SetDefault("localexec.ffmpeg_binary", "ffmpeg")
	viper.SetDefault("localexec.min_vram_gb", 4.0)
	viper.SetDefault("localexec.subtitle_batch_pct", 80)

	viper.SetDefault("pipeline.worker_pool_size", 0) // 0 => runtime.NumCPU(), see main.go
	viper.SetDefault("pipeline.max_upload_bytes", 2*1024*1024*1024)
	viper.SetDefault("pipeline.work_dir", "./data/jobs")
	viper.SetDefault("pipeline.sync_mode", "natural")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Host:     viper.GetString("server.host"),
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
			CORS:     splitCSV(viper.GetString("server.cors")),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			Enabled: viper.GetBool("auth.enabled"),
			APIKeys: splitCSV(viper.GetString("auth.api_keys")),
			DownloadToken: DownloadTokenConfig{
				Secret:     viper.GetString("auth.download_token.secret"),
				ExpiryMins: viper.GetInt("auth.download_token.expiry_mins"),
			},
		},
		RateLimit: RateLimitConfig{
			JobsPerMinute: viper.GetInt("ratelimit.jobs_per_minute"),
		},
		Groq: GroqConfig{
			APIKey:  viper.GetString("groq.api_key"),
			BaseURL: viper.GetString("groq.base_url"),
			Model:   viper.GetString("groq.model"),
		},
		Gemini: GeminiConfig{
			APIKey:  viper.GetString("gemini.api_key"),
			BaseURL: viper.GetString("gemini.base_url"),
			Model:   viper.GetString("gemini.model"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		STT: STTConfig{
			GroqAPIKey:    viper.GetString("stt.groq_api_key"),
			GroqBaseURL:   viper.GetString("stt.groq_base_url"),
			OpenAIAPIKey:  viper.GetString("stt.openai_api_key"),
			OpenAIBaseURL: viper.GetString("stt.openai_base_url"),
			Model:         viper.GetString("stt.model"),
		},
		TTS: TTSConfig{
			ElevenLabsAPIKey:  viper.GetString("tts.elevenlabs_api_key"),
			ElevenLabsBaseURL: viper.GetString("tts.elevenlabs_base_url"),
			NaverAPIKey:       viper.GetString("tts.naver_api_key"),
			NaverBaseURL:      viper.GetString("tts.naver_base_url"),
			YandexAPIKey:      viper.GetString("tts.yandex_api_key"),
			YandexBaseURL:     viper.GetString("tts.yandex_base_url"),
		},
		LocalExec: LocalExecConfig{
			WhisperBinary:    viper.GetString("localexec.whisper_binary"),
			TTSBinary:        viper.GetString("localexec.tts_binary"),
			FFmpegBinary:     viper.GetString("localexec.ffmpeg_binary"),
			MinVRAMGB:        viper.GetFloat64("localexec.min_vram_gb"),
			SubtitleBatchPct: viper.GetInt("localexec.subtitle_batch_pct"),
		},
		Pipeline: PipelineConfig{
			WorkerPoolSize: viper.GetInt("pipeline.worker_pool_size"),
			MaxUploadBytes: viper.GetInt64("pipeline.max_upload_bytes"),
			WorkDir:        viper.GetString("pipeline.work_dir"),
			SyncMode:       viper.GetString("pipeline.sync_mode"),
		},
	}

	return cfg, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CredentialPresence reports which named credentials are configured,
// for the system-status endpoint. Values are
// never included, only presence booleans, per spec.md §6.
func (c *Config) CredentialPresence() map[string]bool {
	return map[string]bool{
		"groq":        c.Groq.APIKey != "",
		"gemini":      c.Gemini.APIKey != "",
		"openai_stt":  c.STT.OpenAIAPIKey != "",
		"elevenlabs":  c.TTS.ElevenLabsAPIKey != "",
		"naver_tts":   c.TTS.NaverAPIKey != "",
		"yandex_tts":  c.TTS.YandexAPIKey != "",
		"r2_storage":  c.R2.AccountID != "" && c.R2.AccessKeyID != "",
		"redis":       c.Redis.Addr != "",
	}
}
