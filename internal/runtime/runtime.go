// Package runtime wires the synthesizer, history store, orchestrator and
// optional bus/archive collaborators behind an HTTP surface.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/narrata-labs/narrata-core/internal/archive"
	"github.com/narrata-labs/narrata-core/internal/bus"
	"github.com/narrata-labs/narrata-core/internal/config"
	"github.com/narrata-labs/narrata-core/internal/history"
	"github.com/narrata-labs/narrata-core/internal/natsserver"
	"github.com/narrata-labs/narrata-core/internal/session"
	"github.com/narrata-labs/narrata-core/internal/synth"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	rootCtx     context.Context
	httpServer  *http.Server
	metricsSrv  *http.Server
	orch        *session.Orchestrator
	archiveStor *archive.Store
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.rootCtx = ctx

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	store, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer store.Close()

	synthesizer, err := buildSynthesizer(r.cfg.Synth)
	if err != nil {
		return fmt.Errorf("failed to build synthesizer: %w", err)
	}

	var notifier session.Notifier
	var embedded *natsserver.EmbeddedServer
	var busClient *bus.Client
	if r.cfg.Bus.Enabled {
		busCfg := r.cfg.Bus
		if busCfg.Embedded {
			embedded, err = natsserver.Start(busCfg, r.logger)
			if err != nil {
				return fmt.Errorf("failed to start embedded bus: %w", err)
			}
			defer embedded.Shutdown()
			busCfg.Servers = []string{fmt.Sprintf("nats://localhost:%d", busCfg.Port)}
		}
		busClient, err = bus.Connect(busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		defer busClient.Close()
		notifier = bus.NewNotifier(busClient, r.logger)
	}

	if r.cfg.Archive.Enabled {
		r.archiveStor, err = archive.New(ctx, r.cfg.Archive, r.logger)
		if err != nil {
			return fmt.Errorf("failed to init archive: %w", err)
		}
	}

	r.orch = session.New(ctx, r.cfg.Session, synthesizer, store, notifier, r.logger)

	scheduler := r.startPruneSchedule(ctx, store)
	if scheduler != nil {
		defer scheduler.Stop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	r.registerAPI(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricsHandler != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricsHandler)
		r.metricsSrv = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("synth_mode", r.cfg.Synth.Mode))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	r.orch.Cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func buildSynthesizer(cfg config.SynthConfig) (synth.Synthesizer, error) {
	switch cfg.Mode {
	case "openai":
		return synth.NewOpenAISynth(cfg.APIKey, cfg.Model, cfg.Speed)
	case "exec":
		return synth.NewExecSynth(cfg.Command, cfg.SampleRate)
	case "mock":
		return synth.NewMockSynth(cfg.SampleRate), nil
	}
	return nil, fmt.Errorf("unknown synth mode %q", cfg.Mode)
}

func (r *Runtime) startPruneSchedule(ctx context.Context, store *history.Store) *cron.Cron {
	if r.cfg.History.RetentionDays <= 0 && r.cfg.History.MaxItems <= 0 {
		return nil
	}
	scheduler := cron.New(cron.WithSeconds())
	_, err := scheduler.AddFunc(r.cfg.History.PruneSchedule, func() {
		if err := store.Prune(ctx); err != nil {
			r.logger.Warn("history prune failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		r.logger.Warn("invalid prune schedule, retention disabled",
			slog.String("schedule", r.cfg.History.PruneSchedule),
			slog.String("error", err.Error()))
		return nil
	}
	scheduler.Start()
	return scheduler
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
