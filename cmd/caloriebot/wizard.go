package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"caloriebot/internal/config"
	"caloriebot/internal/locale"
)

// providerMeta describes a provider option for the wizard.
type providerMeta struct {
	Name         string
	EnvVar       string
	DefaultModel string
}

var knownProviders = []providerMeta{
	{Name: "openai", EnvVar: config.EnvOpenAIKey, DefaultModel: "gpt-4o"},
	{Name: "gemini", EnvVar: config.EnvGeminiKey, DefaultModel: "gemini-2.0-flash"},
}

// runWizard asks for provider, key, locale and Telegram token, then writes
// the config. Empty answers keep the current value; empty secrets are left to
// the environment.
func runWizard(cfgPath string, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		cfg = config.Defaults()
	}

	reader := bufio.NewReader(in)
	prompt := func(label, def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(out, "%s: ", label)
		}
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		s := strings.TrimSpace(line)
		if s == "" {
			return def, nil
		}
		return s, nil
	}

	fmt.Fprintln(out, "\n--- Step 1: Model provider ---")
	defNum := "1"
	for i, p := range knownProviders {
		fmt.Fprintf(out, "  %d) %s (key from %s)\n", i+1, p.Name, p.EnvVar)
		if p.Name == cfg.Provider.Name {
			defNum = fmt.Sprint(i + 1)
		}
	}
	choice, err := prompt(fmt.Sprintf("Choose provider (1-%d)", len(knownProviders)), defNum)
	if err != nil {
		return err
	}
	var idx int
	if n, _ := fmt.Sscanf(choice, "%d", &idx); n != 1 || idx < 1 || idx > len(knownProviders) {
		idx = 1
	}
	prov := knownProviders[idx-1]
	if cfg.Provider.Name != prov.Name {
		cfg.Provider.Model = ""
		cfg.Provider.APIBase = ""
		cfg.Provider.APIKey = ""
	}
	cfg.Provider.Name = prov.Name

	key, err := prompt(fmt.Sprintf("API key (leave empty to use $%s)", prov.EnvVar), "")
	if err != nil {
		return err
	}
	if key != "" {
		cfg.Provider.APIKey = key
	}
	model, err := prompt("Model", firstNonEmpty(cfg.Provider.Model, prov.DefaultModel))
	if err != nil {
		return err
	}
	if model != prov.DefaultModel {
		cfg.Provider.Model = model
	}
	fmt.Fprintf(out, "  Using provider: %s\n", prov.Name)

	fmt.Fprintln(out, "\n--- Step 2: Language ---")
	loc, err := prompt("Locale ("+strings.Join(locale.Names(), ", ")+")", cfg.General.Locale)
	if err != nil {
		return err
	}
	cfg.General.Locale = loc

	fmt.Fprintln(out, "\n--- Step 3: Telegram ---")
	tok, err := prompt(fmt.Sprintf("Bot token from @BotFather (leave empty to use $%s)", config.EnvTelegramToken), "")
	if err != nil {
		return err
	}
	if tok != "" {
		cfg.Telegram.Token = tok
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nConfig saved to %s\n", cfgPath)
	fmt.Fprintln(out, "Next: run 'caloriebot doctor', then 'caloriebot run'.")
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
