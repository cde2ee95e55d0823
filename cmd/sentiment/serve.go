package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicekwell/easyweb3-sentiment/internal/config"
	cronrunner "github.com/nicekwell/easyweb3-sentiment/internal/cron"
	"github.com/nicekwell/easyweb3-sentiment/internal/handler"
	"github.com/nicekwell/easyweb3-sentiment/internal/meme"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	a := newApp(cfg, log)
	defer a.Close()

	if err := a.checkStore(ctx); err != nil {
		log.Warn("cache backend not reachable at startup", zap.Error(err))
	}

	if cfg.App.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := handler.NewEngine(engineOptions(cfg, a, log))

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	watch := a.watchList(cfg.Warmup.Tokens)
	if cfg.Warmup.OnStartup {
		go func() {
			report := a.warmer.Warmup(ctx, watch)
			a.memes.Warm(ctx, meme.PopularPairs)
			log.Info("startup warmup finished",
				zap.Int("attempted", report.Attempted),
				zap.Int("failed", len(report.Failures)),
			)
		}()
	}

	runner := cronrunner.New(log, ctx)
	scheduled, err := runner.Add("warmup", cfg.Warmup.Schedule, func(ctx context.Context) {
		a.warmer.Warmup(ctx, watch)
	})
	if err != nil {
		return err
	}
	if scheduled {
		runner.Start()
		defer runner.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func engineOptions(cfg config.Config, a *app, logger *zap.Logger) handler.EngineOptions {
	opts := handler.EngineOptions{
		Logger:    logger,
		Metrics:   a.metrics,
		Limiter:   a.limiter,
		JWT:       a.jwt,
		Policy:    a.policy,
		Swagger:   cfg.Server.Swagger,
		Health:    &handler.HealthHandler{Store: a.store},
		Sentiment: &handler.SentimentHandler{Service: a.service},
		Meme:      &handler.MemeHandler{Generator: a.memes, Classifier: a.service},
	}
	if a.auditor != nil {
		opts.Audit = &handler.AuditHandler{Auditor: a.auditor}
	}
	if adminAllowed(cfg) {
		opts.Admin = &handler.AdminHandler{Service: a.service}
	} else {
		logger.Error("admin routes disabled: set auth.jwt_secret to a non-default value outside dev",
			zap.String("env", cfg.App.Env))
	}
	return opts
}
