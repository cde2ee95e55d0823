package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nicekwell/easyweb3-sentiment/internal/config"
	"github.com/nicekwell/easyweb3-sentiment/internal/logger"
)

var (
	cfgPath string
	envOnly bool

	cfg config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:          "sentiment",
	Short:        "Token sentiment classification service with a price-aware cache",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath, envOnly)
		if err != nil {
			return err
		}
		log, err = logger.New(cfg.App, cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	defaultPath := os.Getenv("SENTIMENT_CONFIG")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultPath, "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&envOnly, "env-only", envFlag("SENTIMENT_ENV_ONLY"), "ignore the config file and read SENTIMENT_* variables only")

	rootCmd.AddCommand(serveCmd, warmupCmd, statsCmd, tokenCmd)
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func envFlag(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	return strings.EqualFold(v, "true") || v == "1"
}
