package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"caloriebot/internal/config"
	"caloriebot/internal/domain"
	"caloriebot/internal/ingress"
)

func estimateCmd() *cobra.Command {
	var photoPath string
	cmd := &cobra.Command{
		Use:   "estimate [description]",
		Short: "Estimate one meal and print the reply",
		Long: `Runs a single estimation without a chat transport.

  caloriebot estimate "two fried eggs and toast"
  caloriebot estimate --photo lunch.jpg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in domain.InboundInput
			switch {
			case photoPath != "" && len(args) > 0:
				return fmt.Errorf("pass either a description or --photo, not both")
			case photoPath != "":
				data, err := os.ReadFile(config.ExpandPath(photoPath))
				if err != nil {
					return fmt.Errorf("read photo: %w", err)
				}
				in = domain.PhotoInput(data)
			case len(args) > 0:
				in = domain.TextInput(strings.Join(args, " "))
			default:
				return fmt.Errorf("nothing to estimate: pass a description or --photo <file>")
			}

			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()
			if err := config.RequireCredentials(cfg, false); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			c, err := buildCore(ctx, cfg)
			if err != nil {
				return err
			}

			norm, err := c.normalizer.Normalize(in)
			switch {
			case errors.Is(err, ingress.ErrTooSmall):
				fmt.Println(c.replies.TooSmall())
				return err
			case errors.Is(err, ingress.ErrEmptyText):
				fmt.Println(c.pack.Texts.SearchPrompt)
				return err
			case err != nil:
				return err
			}

			res := c.pipeline.Estimate(ctx, norm)
			fmt.Println(c.replies.Result(res))
			if res.Kind == domain.ResultTimedOut || res.Kind == domain.ResultProviderError {
				return fmt.Errorf("estimate %s: %w", res.Kind, res.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&photoPath, "photo", "p", "", "image file to analyze")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration summary and provider health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			fmt.Printf("caloriebot v%s\n\n", version)
			fmt.Printf("Config:    %s\n", resolveConfigPath())
			fmt.Printf("Locale:    %s\n", cfg.General.Locale)
			fmt.Printf("Provider:  %s", cfg.Provider.Name)
			if cfg.Provider.Model != "" {
				fmt.Printf(" (%s)", cfg.Provider.Model)
			}
			fmt.Println()
			fmt.Printf("Telegram:  %s\n", configured(cfg.Telegram.Token != ""))
			if cfg.Metrics.Enabled {
				fmt.Printf("Metrics:   http://%s%s\n", cfg.Metrics.Listen, cfg.Metrics.Endpoint)
			} else {
				fmt.Println("Metrics:   disabled")
			}

			if err := config.RequireCredentials(cfg, false); err != nil {
				fmt.Printf("Health:    skipped (%v)\n", err)
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			c, err := buildCore(ctx, cfg)
			if err != nil {
				fmt.Printf("Health:    %v\n", err)
				return nil
			}
			if err := c.provider.Healthy(ctx); err != nil {
				fmt.Printf("Health:    unhealthy (%v)\n", err)
				return nil
			}
			fmt.Println("Health:    ok")
			return nil
		},
	}
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
