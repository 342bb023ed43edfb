package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"caloriebot/internal/bot"
	"caloriebot/internal/bus"
	"caloriebot/internal/channel"
	"caloriebot/internal/config"
	"caloriebot/internal/domain"
	"caloriebot/internal/estimate"
	"caloriebot/internal/ingress"
	"caloriebot/internal/locale"
	"caloriebot/internal/metrics"
	"caloriebot/internal/provider"
)

const shutdownTimeout = 20 * time.Second

// core holds the pieces shared by every entry point.
type core struct {
	pack       *locale.Pack
	provider   domain.Provider
	normalizer *ingress.Normalizer
	pipeline   *estimate.Pipeline
	replies    *bot.Replies
}

func buildCore(ctx context.Context, cfg *config.Config) (*core, error) {
	pack, err := locale.LoadWithOverlay(cfg.General.Locale, cfg.General.MessagesFile)
	if err != nil {
		return nil, fmt.Errorf("locale: %w", err)
	}

	prov, err := provider.NewFactory(logger).Build(ctx, cfg.Provider)
	if err != nil {
		return nil, err
	}

	a := cfg.Analysis
	return &core{
		pack:     pack,
		provider: prov,
		normalizer: ingress.New(ingress.Options{
			MinPhotoBytes: a.MinPhotoBytes,
			MaxDimension:  a.MaxImageDimension,
			JPEGQuality:   a.JPEGQuality,
			MaxPixels:     a.MaxImagePixels,
			Logger:        logger.With("component", "ingress"),
		}),
		pipeline: estimate.New(estimate.Config{
			Provider:       prov,
			Pack:           pack,
			Logger:         logger.With("component", "estimate"),
			PhotoTimeout:   a.PhotoTimeout(),
			TextTimeout:    a.TextTimeout(),
			PhotoMaxTokens: a.PhotoMaxTokens,
			TextMaxTokens:  a.TextMaxTokens,
			Temperature:    a.Temperature,
			ImageDetail:    a.ImageDetail,
		}),
		replies: bot.NewReplies(pack),
	}, nil
}

func (c *core) loop(b domain.MessageBus) *bot.Loop {
	return bot.NewLoop(bot.LoopConfig{
		Bus:        b,
		Normalizer: c.normalizer,
		Estimator:  c.pipeline,
		Pack:       c.pack,
		Logger:     logger.With("component", "bot"),
	})
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the Telegram bot",
		Long:  "Connects to Telegram with long polling and answers photos and food descriptions. Press Ctrl+C to stop.",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	if err := config.RequireCredentials(cfg, true); err != nil {
		logger.Error("cannot start", "err", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildCore(ctx, cfg)
	if err != nil {
		return err
	}
	if err := c.provider.Healthy(ctx); err != nil {
		logger.Warn("provider unhealthy at startup", "provider", c.provider.Name(), "err", err)
	} else {
		logger.Info("provider healthy", "provider", c.provider.Name())
	}

	messageBus := bus.New(100, logger)
	loop := c.loop(messageBus)

	telegramCh := channel.NewTelegram(channel.TelegramConfig{
		Token:       cfg.Telegram.Token,
		AllowFrom:   cfg.Telegram.AllowFrom,
		ParseMode:   cfg.Telegram.ParseMode,
		PollTimeout: cfg.Telegram.PollTimeout,
		Keyboard:    c.pack.KeyboardRows(),
		Logger:      logger.With("component", "telegram"),
	})
	loop.RegisterPhotoSource(telegramCh.Name(), telegramCh)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, cfg.Metrics.Endpoint, logger); err != nil {
				logger.Error("metrics server error", "err", err)
			}
		}()
	}

	tgErr := make(chan error, 1)
	go func() {
		tgErr <- telegramCh.Start(ctx, messageBus)
	}()

	logger.Info("caloriebot started. Press Ctrl+C to stop.",
		"provider", c.provider.Name(),
		"locale", cfg.General.Locale,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-tgErr:
		if err != nil {
			logger.Error("telegram channel error", "err", err)
			runErr = err
		}
		stop()
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	select {
	case <-loopDone:
		telegramCh.Stop()
		messageBus.Close()
		logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		if runErr == nil {
			runErr = fmt.Errorf("shutdown timed out")
		}
	}
	return runErr
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot in the terminal",
		Long:  "Runs the same dispatcher as the Telegram bot over stdin/stdout. Use /photo <path> to send an image file.",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	if err := config.RequireCredentials(cfg, false); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildCore(ctx, cfg)
	if err != nil {
		return err
	}

	messageBus := bus.New(100, logger)
	cliCh := channel.NewCLI(channel.CLIConfig{
		Logger:   logger,
		Keyboard: c.pack.KeyboardRows(),
	})
	loop := c.loop(messageBus)
	loop.RegisterPhotoSource(cliCh.Name(), cliCh)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()

	err = cliCh.Start(ctx, messageBus)
	// Closing the bus lets the dispatcher drain lines already entered.
	messageBus.Close()
	<-loopDone
	return err
}
