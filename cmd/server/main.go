package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/tanya-ai-go/internal/api"
	"github.com/irfndi/tanya-ai-go/internal/api/handlers"
	"github.com/irfndi/tanya-ai-go/internal/assistant"
	"github.com/irfndi/tanya-ai-go/internal/config"
	"github.com/irfndi/tanya-ai-go/internal/database"
	"github.com/irfndi/tanya-ai-go/internal/livekit"
	"github.com/irfndi/tanya-ai-go/internal/logging"
	"github.com/irfndi/tanya-ai-go/internal/middleware"
	"github.com/irfndi/tanya-ai-go/internal/models"
	"github.com/irfndi/tanya-ai-go/internal/ppg"
	"github.com/irfndi/tanya-ai-go/internal/services"
	"github.com/irfndi/tanya-ai-go/internal/session"
	"github.com/irfndi/tanya-ai-go/internal/stream"
	"github.com/irfndi/tanya-ai-go/internal/telemetry"
)

const serviceName = "tanya-ai"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	fs := config.Flags()
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	cfg, err := config.LoadWithFlags(fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	stdLogger := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
	if cfg.Telemetry.OTLPLogs {
		var otlpLogger *logging.OTLPLogger
		stdLogger, otlpLogger = logging.NewStandardOTLPLogger(logging.OTLPConfig{
			Enabled:        true,
			Endpoint:       cfg.Telemetry.OTLPEndpoint,
			ServiceName:    serviceName,
			ServiceVersion: telemetry.ServiceVersion,
			Environment:    cfg.Environment,
			LogLevel:       cfg.LogLevel,
		})
		if otlpLogger != nil {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = otlpLogger.Shutdown(ctx)
			}()
		}
	}
	logger := logging.NewLogrus(cfg.LogLevel, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telCfg := telemetry.DefaultConfig()
	telCfg.Enabled = cfg.Telemetry.Enabled
	telCfg.Exporter = cfg.Telemetry.Exporter
	telCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	telCfg.ServiceName = serviceName
	telCfg.Environment = cfg.Environment
	telCfg.SampleRate = cfg.Telemetry.SampleRate
	telCfg.LogLevel = cfg.LogLevel
	provider, err := telemetry.InitTelemetryWithProvider(ctx, telCfg, stdLogger.Logger())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			stdLogger.WithError(err).Warn("Failed to shut down telemetry")
		}
	}()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := buildApp(ctx, cfg, stdLogger, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	stdLogger.LogBusinessEvent("backends_configured", map[string]interface{}{
		"database":        cfg.Database.Enabled,
		"session_backend": cfg.Session.Backend,
		"result_stream":   cfg.Stream.NATSURL != "",
		"telemetry":       cfg.Telemetry.Enabled,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		stdLogger.LogStartup(serviceName, telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		stdLogger.LogShutdown(serviceName, "signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	stdLogger.WithComponent("http").Info("Server exited")
	return nil
}

// application is the wired HTTP surface plus whatever must be released on exit.
type application struct {
	router  *gin.Engine
	closers []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func ppgOptions(c config.PPGConfig) ppg.Options {
	return ppg.Options{
		DefaultDurationSeconds: c.DefaultDuration,
		DefaultSamplingRate:    c.DefaultSamplingRate,
		DefaultROI: models.ROI{
			X:      c.DefaultROI.X,
			Y:      c.DefaultROI.Y,
			Width:  c.DefaultROI.Width,
			Height: c.DefaultROI.Height,
		},
		MinDurationSeconds: c.MinDurationSeconds,
		LowCutHz:           c.LowCutHz,
		HighCutHz:          c.HighCutHz,
		DetrendOrder:       c.DetrendOrder,
		ReferenceBPM:       c.ReferenceBPM,
		ReferenceJitterBPM: c.ReferenceJitterBPM,
		MaxDurationSeconds: c.MaxDurationSeconds,
		MaxSamplingRate:    c.MaxSamplingRate,
	}
}

// buildApp connects the optional backends and mounts every handler. On error
// anything already opened is released.
func buildApp(ctx context.Context, cfg *config.Config, stdLogger *logging.StandardLogger, logger *logrus.Logger) (app *application, err error) {
	app = &application{}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	// Interface-typed so an absent backend stays a true nil.
	var (
		dbHealth    handlers.HealthChecker
		redisHealth handlers.HealthChecker
		clinicStore services.ClinicStore
		reports     assistant.InjuryReportSink
		cleanupH    *handlers.CleanupHandler
	)

	if cfg.Database.Enabled {
		db, err := database.NewPostgresConnection(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.closers = append(app.closers, db.Close)
		if err := database.Migrate(ctx, db.Pool); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		repo := database.NewClinicRepository(database.NewTracedPool(db.Pool))
		dbHealth, clinicStore, reports = db, repo, repo

		cleanup := services.NewCleanupService(repo, cfg.Database.InjuryReportRetention, cfg.Database.CleanupInterval, logger)
		cleanup.Start()
		app.closers = append(app.closers, cleanup.Stop)
		cleanupH = handlers.NewCleanupHandler(cleanup)
	} else {
		logger.Warn("Database disabled: clinic tools and injury report persistence are off")
	}

	var store session.Store
	switch cfg.Session.Backend {
	case "redis":
		rc, err := database.NewRedisConnection(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		app.closers = append(app.closers, rc.Close)
		redisHealth = rc
		store = session.NewRedisStore(rc.Client, cfg.Session.KeyPrefix, cfg.Session.TTL)
	default:
		store = session.NewMemoryStore(cfg.Session.TTL)
	}

	var publisher ppg.ResultPublisher
	if cfg.Stream.NATSURL != "" {
		nc, natsErr := stream.Connect(cfg.Stream.NATSURL)
		if natsErr != nil {
			logger.WithError(natsErr).Warn("NATS unavailable, PPG results will not be published")
		} else {
			app.closers = append(app.closers, nc.Close)
			publisher = stream.NewResultPublisher(nc, cfg.Stream.Subject, logger)
		}
	}

	opts := ppgOptions(cfg.PPG)
	simulator := ppg.NewReferenceSimulator(opts, nil)
	if cfg.PPG.SimulatorSeed != 0 {
		simulator = ppg.NewSeededSimulator(opts, cfg.PPG.SimulatorSeed)
	}
	analyzer := ppg.NewAnalyzer(opts, simulator, publisher, logger)

	breakers := services.NewBreakerRegistry(services.BreakerConfig{}, logger)
	llm := services.NewGuardedLLM(
		assistant.NewOpenAIClient(cfg.Assistant.BaseURL, cfg.Assistant.APIKey, cfg.Assistant.TranscriptionModel, cfg.Assistant.RequestTimeout),
		breakers.Get("llm"),
	)
	calls := services.NewGuardedCallCreator(
		assistant.NewUltravoxClient(cfg.Ultravox.APIURL, cfg.Ultravox.APIKey, cfg.Ultravox.Model, cfg.Ultravox.Voice, cfg.Ultravox.Temperature, nil),
		breakers.Get("ultravox"),
	)

	prompts, err := assistant.LoadPrompts(cfg.Assistant.TextPromptFile, cfg.Assistant.VisionPromptFile, cfg.Assistant.VoicePromptFile)
	if err != nil {
		return nil, err
	}

	notifier := services.NewStaffNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	var mailer services.Mailer
	if cfg.Email.Sender != "" {
		mailer = services.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.Sender, cfg.Email.Password)
	}

	bridge := assistant.NewBridge(assistant.BridgeConfig{
		ChatModel:     cfg.Assistant.ChatModel,
		VisionModel:   cfg.Assistant.VisionModel,
		HistoryLimit:  cfg.Session.HistoryLimit,
		HospitalPhone: cfg.Assistant.HospitalPhone,
	}, llm, assistant.NewTwilioMediaFetcher(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, nil),
		store, prompts, reports, notifier, logger)
	voice := assistant.NewVoiceGateway(calls, prompts, logger)

	issuer := livekit.NewTokenIssuer(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.TokenTTL)
	rooms := livekit.NewService(issuer, livekit.NewRoomClient(cfg.LiveKit.URL, issuer, nil), logger)

	h := api.Handlers{
		Health:   handlers.NewHealthHandler(dbHealth, redisHealth, breakers, telemetry.ServiceVersion),
		PPG:      handlers.NewPPGHandler(analyzer, logger),
		WhatsApp: handlers.NewWhatsAppHandler(bridge, store, logger),
		Voice:    handlers.NewVoiceHandler(voice, rooms, logger),
		Cleanup:  cleanupH,
	}
	if clinicStore != nil {
		h.Tools = handlers.NewToolsHandler(services.NewClinicService(clinicStore, mailer, notifier, logger), logger)
	}

	app.router = api.NewRouter(serviceName, cfg.Server.AllowedOrigins, stdLogger)
	api.SetupRoutes(app.router, h, middleware.NewAdminMiddleware(cfg.Security.AdminAPIKey))
	return app, nil
}
