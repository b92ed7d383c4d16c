package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jdziat/durableflow/internal/config"
	"github.com/jdziat/durableflow/internal/core"
	"github.com/jdziat/durableflow/internal/executor"
	"github.com/jdziat/durableflow/internal/interpreter/sequential"
	"github.com/jdziat/durableflow/internal/metrics"
	"github.com/jdziat/durableflow/internal/orchestrator"
	"github.com/jdziat/durableflow/internal/registry"
	webhookapi "github.com/jdziat/durableflow/internal/webhook"
	"github.com/jdziat/durableflow/internal/api"
	"github.com/jdziat/durableflow/internal/worker"
)

const gracefulShutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker loop, webhook endpoint, and embedding API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(c *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	store, err := openStorage(cfg.DatabaseDSN, cfg.DatabasePoolProfile)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := store.Start(ctx); err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// The real sandboxed interpreter is supplied by whatever embeds this
	// binary's packages as a library; serve uses the sequential reference
	// interpreter so the CLI has something runnable out of the box.
	interp := sequential.New()
	svc := orchestrator.New(store, interp)

	reg := registry.New()
	reg.Register("echo", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return args, nil
	})

	dispatcher, closeFn, err := buildDispatcher(cfg, store, reg, svc)
	if err != nil {
		return err
	}
	defer closeFn()

	w := worker.New(svc, store, dispatcher, worker.WithConfig(worker.Config{
		PollInterval:      cfg.Worker.PollInterval,
		SubmitConcurrency: cfg.Worker.SubmitConcurrency,
		ResumeConcurrency: cfg.Worker.ResumeConcurrency,
		OverdueAfter:      cfg.Worker.OverdueAfter,
		StorageRetry:      worker.DefaultRetryConfig(),
	}))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go w.Run(ctx)

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Handler(svc)}
	var signingKey []byte
	if cfg.Executor.WebhookSigningKey != "" {
		signingKey = []byte(cfg.Executor.WebhookSigningKey)
	}
	webhookSrv := &http.Server{Addr: cfg.WebhookAddr, Handler: webhookapi.Handler(svc, store, signingKey)}

	go func() {
		slog.Info("embedding api listening", "addr", cfg.HTTPAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api server", "error", err)
		}
	}()
	go func() {
		slog.Info("webhook listening", "addr", cfg.WebhookAddr)
		if err := webhookSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("webhook server", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	apiSrv.Shutdown(shutdownCtx)
	webhookSrv.Shutdown(shutdownCtx)
	return nil
}

func buildDispatcher(cfg config.Config, store core.Storage, reg *registry.Registry, svc *orchestrator.Service) (executor.Dispatcher, func(), error) {
	noop := func() {}

	switch cfg.Executor.Kind {
	case "", "local":
		local := executor.NewLocal(reg, svc.CompleteCall)
		return executor.LocalDispatcher{Local: local}, noop, nil

	case "nats":
		nc, err := nats.Connect(cfg.Executor.NATSURL)
		if err != nil {
			return nil, noop, fmt.Errorf("connect nats: %w", err)
		}
		tq, err := executor.NewTaskQueue(nc, store, svc.CompleteCall, cfg.Executor.NATSSubjectPrefix)
		if err != nil {
			nc.Close()
			return nil, noop, err
		}
		if _, err := executor.RunSubscriber(context.Background(), nc, reg, cfg.Executor.NATSSubjectPrefix); err != nil {
			nc.Close()
			return nil, noop, fmt.Errorf("start nats subscriber: %w", err)
		}
		return executor.RemoteDispatcher{Executor: tq, Storage: store, Complete: svc.CompleteCall},
			func() { tq.Close(); nc.Close() }, nil

	case "webhook":
		if cfg.Executor.WebhookURL == "" {
			return nil, noop, fmt.Errorf("executor.webhook_url is required for executor.kind=webhook")
		}
		wh := executor.NewWebhook(cfg.Executor.WebhookURL, []byte(cfg.Executor.WebhookSigningKey))
		return executor.RemoteDispatcher{Executor: wh, Storage: store, Complete: svc.CompleteCall}, noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown executor.kind %q", cfg.Executor.Kind)
	}
}
