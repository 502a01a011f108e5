package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	work "git.sr.ht/~sircmpwn/serialwork"
	"git.sr.ht/~sircmpwn/serialwork/internal/config"
	"git.sr.ht/~sircmpwn/serialwork/internal/demo"
	"git.sr.ht/~sircmpwn/serialwork/internal/telemetry"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	slog.Info("starting workdemo", "version", version, "queue", cfg.Queue.Name, "steps", len(cfg.Script))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []work.Option{
		work.WithName(cfg.Queue.Name),
		work.WithLogger(logger),
	}

	reg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, work.WithMetrics(work.NewMetrics(cfg.Metrics.Namespace, reg)))
	}

	if cfg.Tracing.Enabled {
		tp, err := telemetry.NewProvider(ctx, telemetry.Options{
			Service: "workdemo",
			Version: version,
			Tracing: cfg.Tracing,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Warn("tracing shutdown", "error", err)
			}
		}()
		opts = append(opts, work.WithTracer(tp.Tracer("workdemo")))
	}

	q := work.NewQueue(opts...)

	var srv *http.Server
	if cfg.Metrics.Enabled {
		srv = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           demo.NewHandler(q, reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if srv != nil {
		g.Go(func() error {
			slog.Info("metrics listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		runner := &demo.Runner{Queue: q, Log: logger}
		err := runner.Run(gctx, cfg.Script)
		if errors.Is(err, context.Canceled) {
			slog.Info("script interrupted")
			err = nil
		}

		shutdownCtx := context.Background()
		if cfg.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, cfg.ShutdownTimeout)
			defer cancel()
		}
		if serr := q.ShutdownContext(shutdownCtx); serr != nil {
			slog.Warn("queue did not stop in time", "error", serr)
		}
		if srv != nil {
			srvCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := srv.Shutdown(srvCtx); serr != nil {
				err = errors.Join(err, serr)
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("workdemo stopped")
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
