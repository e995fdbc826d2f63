package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openmanus/manus/internal/config"
	"github.com/openmanus/manus/internal/logging"
	"github.com/openmanus/manus/internal/memory"
	"github.com/openmanus/manus/internal/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the delegation engine as a long-lived service",
	Long: `Run the engine until interrupted. With telegram.token configured (or
TELEGRAM_BOT_TOKEN set), a Telegram bot accepts task submissions; user
preferences and conversation history persist in the local memory store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, logLevel, err := buildLogger(cfg)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer log.Sync()

		eng, err := buildEngine(cfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		watchConfig(logLevel, log)
		eng.scheduler.Start(ctx)

		g, ctx := errgroup.WithContext(ctx)
		if cfg.Telegram.Token != "" {
			mem, err := memory.Open(memory.DefaultPath())
			if err != nil {
				return fmt.Errorf("open memory store: %w", err)
			}
			defer mem.Close()

			bot, err := telegram.New(telegram.Config{
				Token:             cfg.Telegram.Token,
				MessagesPerSecond: cfg.Telegram.MessagesPerSecond,
				HistoryLimit:      cfg.Telegram.HistoryLimit,
			}, eng.scheduler, mem, log.Named("telegram"))
			if err != nil {
				return err
			}
			g.Go(func() error { return bot.Run(ctx) })
		} else {
			log.Info("telegram token not configured, running engine only")
		}

		g.Go(func() error {
			<-ctx.Done()
			eng.scheduler.Stop()
			return nil
		})

		log.Info("serving; press ctrl-c to stop")
		return g.Wait()
	},
}

// watchConfig follows config file edits while serving. The log level applies
// live; a bad edit is reported and the running settings stay in effect.
// Engine tuning (workers, retry caps) applies on the next restart.
func watchConfig(logLevel zap.AtomicLevel, log *zap.Logger) {
	path := config.GetProjectConfigPath()
	if path == "" {
		path = config.GetUserConfigPath()
	}

	err := config.Watch(path, func(next *config.Config) {
		lvl, err := logging.ParseLevel(next.Log.Level)
		if err != nil {
			log.Warn("config reload kept previous log level", zap.Error(err))
			return
		}
		logLevel.SetLevel(lvl)
		log.Info("configuration reloaded",
			zap.String("path", path),
			zap.String("log_level", next.Log.Level))
	}, func(err error) {
		log.Warn("config reload failed, keeping previous settings", zap.Error(err))
	})
	if err != nil {
		// No config file on disk; nothing to follow.
		log.Debug("config watch disabled", zap.Error(err))
		return
	}
	log.Info("watching config file", zap.String("path", path))
}
