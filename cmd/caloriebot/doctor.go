package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"caloriebot/internal/config"
	"caloriebot/internal/locale"
	"caloriebot/internal/provider"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your caloriebot installation",
		Long: `Verifies that caloriebot's configuration, credentials, locale pack and
provider are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("caloriebot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			var passed, failed, warned int

			if _, err := os.Stat(cfgPath); err != nil {
				printWarn("Config file", fmt.Sprintf("not found at %s (using defaults and environment)", cfgPath))
				warned++
			} else {
				printPass("Config file", cfgPath)
				passed++
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("config invalid")
			}
			printPass("Config validation", "valid")
			passed++

			if err := config.RequireCredentials(cfg, true); err != nil {
				printFail("Credentials", err.Error())
				failed++
			} else {
				printPass("Credentials", "telegram token and provider key set")
				passed++
			}

			if _, err := locale.LoadWithOverlay(cfg.General.Locale, cfg.General.MessagesFile); err != nil {
				printFail("Locale pack", err.Error())
				failed++
			} else {
				detail := cfg.General.Locale
				if cfg.General.MessagesFile != "" {
					detail += " + " + cfg.General.MessagesFile
				}
				printPass("Locale pack", detail)
				passed++
			}

			if err := checkProvider(cfg); err != nil {
				printFail("Provider: "+cfg.Provider.Name, err.Error())
				failed++
			} else {
				printPass("Provider: "+cfg.Provider.Name, "reachable")
				passed++
			}

			if cfg.Metrics.Enabled {
				if err := checkListen(cfg.Metrics.Listen); err != nil {
					printWarn("Metrics listen", fmt.Sprintf("%s may be in use: %v", cfg.Metrics.Listen, err))
					warned++
				} else {
					printPass("Metrics listen", cfg.Metrics.Listen+" available")
					passed++
				}
			}

			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running caloriebot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\ncaloriebot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! caloriebot is ready to run.\n")
			}
			return nil
		},
	}
}

func checkProvider(cfg *config.Config) error {
	if err := config.RequireCredentials(cfg, false); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := provider.NewFactory(logger).Build(ctx, cfg.Provider)
	if err != nil {
		return err
	}
	return p.Healthy(ctx)
}

func checkListen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
