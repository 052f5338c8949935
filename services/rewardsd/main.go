package rewardsd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"eventpool/core/events"
	"eventpool/core/types"
	"eventpool/native/rewards"
	"eventpool/observability/logging"
	telemetry "eventpool/observability/otel"
	"eventpool/oracle"
	"eventpool/rpc"
	"eventpool/state"
	"eventpool/storage"
	"eventpool/transfer"
)

// Main initialises and runs the reward ledger daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/rewardsd/config.yaml", "path to rewardsd configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("EVENTPOOL_ENV"))
	logger := logging.Setup("rewardsd", env)
	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "rewardsd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	manager := state.NewManager(db)
	bank := transfer.NewBank(manager)
	registry, err := oracle.New(cfg.Oracle.Endpoint, cfg.Oracle.Timeout.Duration)
	if err != nil {
		return fmt.Errorf("init oracle client: %w", err)
	}

	engine := rewards.NewEngine()
	engine.SetState(manager)
	engine.SetEventSource(registry)
	engine.SetTransferPort(bank)
	engine.SetEmitter(logEmitter{logger: logger})
	if cfg.ReclaimWindow.Duration > 0 {
		engine.SetReclaimWindow(cfg.ReclaimWindow.Duration)
	}

	server := rpc.NewServer(engine, logger, rpc.Config{
		AuthToken: cfg.Auth.BearerToken,
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
	})
	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("rewardsd listening", slog.String("address", cfg.ListenAddress))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func openDatabase(cfg DatabaseConfig) (storage.Database, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemDB(), nil
	case "leveldb":
		return storage.NewLevelDB(cfg.Path)
	case "bolt":
		return storage.NewBoltDB(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}

// logEmitter forwards ledger events to the structured logger.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	if l.logger == nil || evt == nil {
		return
	}
	typed, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		l.logger.Info(evt.EventType())
		return
	}
	payload := typed.Event()
	if payload == nil {
		return
	}
	attrs := make([]any, 0, len(payload.Attributes))
	for key, value := range payload.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	l.logger.With(attrs...).Info(payload.Type)
}
