package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/archive"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/config"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/logging"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/notify"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/store"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"notify", cfg.Notify.AMQPURL != "",
		"archive", cfg.Archive.Bucket != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := ingest.Options{
		MaxFileSize:   cfg.Upload.MaxFileSize,
		UploadTimeout: cfg.Upload.Timeout,
		MaxRetries:    cfg.Upload.PersistRetries,
		RetryDelay:    cfg.Upload.RetryDelay,
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
	}
	if cfg.Mapping.SynonymsFile != "" {
		if opts.Synonyms, err = ingest.LoadSynonyms(cfg.Mapping.SynonymsFile); err != nil {
			return err
		}
		slog.Info("loaded header synonyms", "file", cfg.Mapping.SynonymsFile, "count", len(opts.Synonyms))
	}

	deps := ingest.Deps{Applications: st, Audit: st, Notifier: notify.LogNotifier{}}
	if cfg.Notify.AMQPURL != "" {
		n, err := notify.DialAMQP(cfg.Notify.AMQPURL, cfg.Notify.Exchange, cfg.Notify.RoutingPrefix)
		if err != nil {
			return err
		}
		defer n.Close()
		deps.Notifier = n
	}
	if cfg.Archive.Bucket != "" {
		a, err := archive.NewS3(ctx, archive.Config{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Prefix:    cfg.Archive.Prefix,
			PathStyle: cfg.Archive.PathStyle,
		})
		if err != nil {
			return err
		}
		deps.Archiver = a
	}

	service, err := ingest.NewService(deps, opts)
	if err != nil {
		return err
	}
	server := web.NewServer(service, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Addr())
		if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return service.RunRetention(gctx, ingest.RetentionConfig{
			MaxAge:        cfg.Retention.MaxAge,
			CheckInterval: cfg.Retention.CheckInterval,
		})
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running uploads finish writing their logs before the store closes.
		limiter := service.Limiter()
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
