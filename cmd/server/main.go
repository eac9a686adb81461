package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/redubline/api/internal/auditlog"
	"github.com/redubline/api/internal/client"
	"github.com/redubline/api/internal/config"
	"github.com/redubline/api/internal/dispatcher"
	"github.com/redubline/api/internal/downloadtoken"
	"github.com/redubline/api/internal/handler"
	"github.com/redubline/api/internal/jobmanager"
	"github.com/redubline/api/internal/middleware"
	"github.com/redubline/api/internal/pipeline"
	"github.com/redubline/api/internal/resource"
	"github.com/redubline/api/internal/translate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// Redis is optional: rate limiting falls back to an in-memory
	// window when it's unset or unreachable at startup.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Redis not available, rate limiting will use in-memory windows: %v", err)
			redisClient = nil
		}
	}

	validate := validator.New()

	auditPath := cfg.Pipeline.WorkDir + "/audit.db"
	auditLog, err := auditlog.Open(auditPath)
	if err != nil {
		log.Printf("Warning: audit log not initialized: %v", err)
		auditLog = nil
	}
	defer auditLog.Close()

	jobs := jobmanager.NewWithAudit(auditLog)

	dispatch, err := dispatcher.New()
	if err != nil {
		log.Fatalf("Failed to load dispatcher rules: %v", err)
	}

	// CredentialSet is keyed by the CredentialsRequired name of each
	// engine in the dispatcher's registry (the env-var name for most
	// engines; Naver and Yandex use their own names), which is a different
	// keyspace than CredentialPresence's human-facing names for
	// /api/system/status.
	creds := dispatcher.CredentialSet{
		"GROQ_API_KEY":       cfg.Groq.APIKey != "",
		"OPENAI_API_KEY":     cfg.STT.OpenAIAPIKey != "",
		"GEMINI_API_KEY":     cfg.Gemini.APIKey != "",
		"ELEVENLABS_API_KEY": cfg.TTS.ElevenLabsAPIKey != "",
		"NAVER_CLOVA_KEY":    cfg.TTS.NaverAPIKey != "",
		"YANDEX_TTS_KEY":     cfg.TTS.YandexAPIKey != "",
	}

	chatClients := pipeline.ChatClients{
		"groq_translate":   client.NewLLMClient(client.LLMConfig{BaseURL: cfg.Groq.BaseURL, APIKey: cfg.Groq.APIKey, Model: cfg.Groq.Model, Temperature: 0.7}),
		"gemini_translate": client.NewLLMClient(client.LLMConfig{BaseURL: cfg.Gemini.BaseURL, APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model, Temperature: 0.7}),
	}

	// Dual-model quality evaluation needs low-temperature, deterministic
	// scoring, so evaluation gets its own clients rather than sharing the
	// translation clients' temperature.
	evalClients := pipeline.ChatClients{
		"groq_translate":   client.NewLLMClient(client.LLMConfig{BaseURL: cfg.Groq.BaseURL, APIKey: cfg.Groq.APIKey, Model: cfg.Groq.Model, Temperature: 0.1}),
		"gemini_translate": client.NewLLMClient(client.LLMConfig{BaseURL: cfg.Gemini.BaseURL, APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model, Temperature: 0.1}),
	}

	translator := translate.NewTranslator(chatClients)

	sttClients := map[string]pipeline.SpeechRecognizer{
		"groq_stt":   client.NewSTTClient(client.STTConfig{BaseURL: cfg.STT.GroqBaseURL, APIKey: cfg.STT.GroqAPIKey, Model: cfg.STT.Model}),
		"openai_stt": client.NewSTTClient(client.STTConfig{BaseURL: cfg.STT.OpenAIBaseURL, APIKey: cfg.STT.OpenAIAPIKey, Model: cfg.STT.Model}),
	}
	localSTT := client.NewLocalSTT(cfg.LocalExec.WhisperBinary)

	ttsClients := map[string]pipeline.Synthesizer{
		"elevenlabs_tts":  client.NewTTSClient(client.TTSConfig{BaseURL: cfg.TTS.ElevenLabsBaseURL, APIKey: cfg.TTS.ElevenLabsAPIKey, SampleRate: 22050}),
		"naver_clova_tts": client.NewTTSClient(client.TTSConfig{BaseURL: cfg.TTS.NaverBaseURL, APIKey: cfg.TTS.NaverAPIKey, SampleRate: 22050}),
		"yandex_tts":      client.NewTTSClient(client.TTSConfig{BaseURL: cfg.TTS.YandexBaseURL, APIKey: cfg.TTS.YandexAPIKey, SampleRate: 22050}),
	}
	localTTS := client.NewLocalTTS(cfg.LocalExec.TTSBinary, 22050)

	muxer := client.NewMuxer(cfg.LocalExec.FFmpegBinary)
	tempoAdjust := client.NewTempoAdjust(cfg.LocalExec.FFmpegBinary, cfg.Pipeline.WorkDir)

	var storage pipeline.StorageBackend
	if cfg.R2.AccountID != "" && cfg.R2.AccessKeyID != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			storage = r2Client
		}
	} else {
		log.Println("Info: R2 storage not configured, output artifacts stay local-only")
	}

	orchestrator := pipeline.New(pipeline.Config{
		Jobs:          jobs,
		Dispatch:      dispatch,
		Translator:    translator,
		Extractor:     muxer,
		Muxer:         muxer,
		Storage:       storage,
		STTClients:    sttClients,
		LocalSTT:      localSTT,
		TTSClients:    ttsClients,
		LocalTTS:      localTTS,
		ChatClients:   chatClients,
		EvalClients:   evalClients,
		TempoAdjuster: tempoAdjust,
		Credentials:   creds,
		Gate:          resource.NewGate(),
		WorkDir:       cfg.Pipeline.WorkDir,
	})

	poolSize := cfg.Pipeline.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
	}
	queue := make(chan string, 256)
	for i := 0; i < poolSize; i++ {
		go func() {
			for jobID := range queue {
				orchestrator.Run(ctx, jobID)
			}
		}()
	}
	log.Printf("Info: worker pool started with %d workers", poolSize)

	apiKeyAuth := middleware.NewAPIKeyAuth(cfg.Auth.Enabled, cfg.Auth.APIKeys)
	rateLimiter := middleware.NewRateLimiter(redisClient)
	tokens := downloadtoken.NewSigner(cfg.Auth.DownloadToken.Secret, cfg.Auth.DownloadToken.ExpiryMins)

	jobHandler := handler.NewJobHandler(jobs, queue, validate, cfg.Pipeline.WorkDir+"/uploads", cfg.Pipeline.MaxUploadBytes, tokens)
	systemHandler := handler.NewSystemHandler(jobs, cfg.CredentialPresence(), muxer.Available)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.Pipeline.MaxUploadBytes) + (1 << 20),
	})

	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams}\n"
	}
	app.Use(logger.New(logger.Config{Format: logFormat}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.CORS, ","),
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-API-Key,Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "timestamp": time.Now().Unix()})
	})

	api := app.Group("/api", apiKeyAuth.Require())

	jobsGroup := api.Group("/jobs")
	jobsGroup.Post("/", rateLimiter.JobsLimit(cfg.RateLimit.JobsPerMinute), jobHandler.Create)
	jobsGroup.Get("/", jobHandler.List)
	jobsGroup.Get("/:id", jobHandler.Get)
	jobsGroup.Post("/:id/cancel", jobHandler.Cancel)

	api.Get("/system/status", systemHandler.Status)

	// Download accepts either the standard API key or a signed,
	// job-scoped token in the query string, per SPEC_FULL.md §6.3, so it
	// sits outside the api-key-required group and enforces its own gate.
	app.Get("/api/jobs/:id/download", func(c *fiber.Ctx) error {
		if c.Query("token") != "" {
			return c.Next()
		}
		return apiKeyAuth.Require()(c)
	}, jobHandler.Download)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		close(queue)
	}()

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
