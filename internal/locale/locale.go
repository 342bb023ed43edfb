// Package locale holds the user-facing texts, menu labels and model prompts
// of the bot. Packs are YAML documents: two are embedded, and an optional
// external file can overlay any subset of fields.
package locale

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed en.yaml ru.yaml
var packs embed.FS

// TextPlaceholder marks where the user's description goes in Prompt.Text.
const TextPlaceholder = "{{text}}"

type Pack struct {
	Buttons   Buttons  `yaml:"buttons"`
	Glyphs    Glyphs   `yaml:"glyphs"`
	Texts     Texts    `yaml:"texts"`
	Prompt    Prompt   `yaml:"prompt"`
	Sentinels []string `yaml:"sentinels"`
}

// Buttons are the display labels of the persistent reply keyboard.
type Buttons struct {
	Start   string `yaml:"start"`
	Help    string `yaml:"help"`
	Analyze string `yaml:"analyze"`
	Search  string `yaml:"search"`
}

// Glyphs prefix estimation replies by input kind.
type Glyphs struct {
	Photo string `yaml:"photo"`
	Text  string `yaml:"text"`
}

type Texts struct {
	Welcome           string `yaml:"welcome"`
	Help              string `yaml:"help"`
	AnalyzePrompt     string `yaml:"analyzePrompt"`
	SearchPrompt      string `yaml:"searchPrompt"`
	AnalyzingPhoto    string `yaml:"analyzingPhoto"`
	AnalyzingText     string `yaml:"analyzingText"`
	PhotoTooSmall     string `yaml:"photoTooSmall"`
	NoFoodPhoto       string `yaml:"noFoodPhoto"`
	NoFoodText        string `yaml:"noFoodText"`
	TimeoutPhoto      string `yaml:"timeoutPhoto"`
	TimeoutText       string `yaml:"timeoutText"`
	UnrecognizedPhoto string `yaml:"unrecognizedPhoto"`
	UnrecognizedText  string `yaml:"unrecognizedText"`
	AnalysisFailed    string `yaml:"analysisFailed"`
	PhotoFailed       string `yaml:"photoFailed"`
	TextFailed        string `yaml:"textFailed"`
	GenericFailure    string `yaml:"genericFailure"`
}

type Prompt struct {
	Photo string `yaml:"photo"`
	Text  string `yaml:"text"`
}

// Names lists the embedded packs.
func Names() []string { return []string{"en", "ru"} }

// Load returns the embedded pack with the given name.
func Load(name string) (*Pack, error) {
	data, err := packs.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown locale %q", name)
	}
	var p Pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse locale %s: %w", name, err)
	}
	p.trim()
	return &p, nil
}

// LoadWithOverlay loads the embedded pack and, when path is non-empty,
// decodes the YAML file at path over it. Fields absent from the file keep
// the embedded values; a sentinels list in the file replaces the embedded one.
func LoadWithOverlay(name, path string) (*Pack, error) {
	p, err := Load(name)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read messages file: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse messages file %s: %w", path, err)
	}
	p.trim()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("messages file %s: %w", path, err)
	}
	return p, nil
}

// Validate reports the first structural problem of the pack.
func (p *Pack) Validate() error {
	if p.Buttons.Start == "" || p.Buttons.Help == "" || p.Buttons.Analyze == "" || p.Buttons.Search == "" {
		return fmt.Errorf("all four button labels are required")
	}
	labels := map[string]bool{}
	for _, l := range []string{p.Buttons.Start, p.Buttons.Help, p.Buttons.Analyze, p.Buttons.Search} {
		if labels[l] {
			return fmt.Errorf("duplicate button label %q", l)
		}
		labels[l] = true
	}
	if p.Prompt.Photo == "" {
		return fmt.Errorf("prompt.photo is required")
	}
	if !strings.Contains(p.Prompt.Text, TextPlaceholder) {
		return fmt.Errorf("prompt.text must contain %s", TextPlaceholder)
	}
	if len(p.Sentinels) == 0 {
		return fmt.Errorf("at least one sentinel is required")
	}
	for _, s := range p.Sentinels {
		if s == "" {
			return fmt.Errorf("sentinels must not be empty")
		}
	}
	return nil
}

// TextPrompt renders the text-analysis instruction for a user description.
func (p *Pack) TextPrompt(description string) string {
	return strings.ReplaceAll(p.Prompt.Text, TextPlaceholder, description)
}

// KeyboardRows returns the menu layout: two rows of two buttons.
func (p *Pack) KeyboardRows() [][]string {
	return [][]string{
		{p.Buttons.Analyze, p.Buttons.Search},
		{p.Buttons.Help, p.Buttons.Start},
	}
}

// YAML block scalars keep a trailing newline that chat clients render as a blank line.
func (p *Pack) trim() {
	t := &p.Texts
	for _, s := range []*string{
		&t.Welcome, &t.Help, &t.AnalyzePrompt, &t.SearchPrompt,
	} {
		*s = strings.TrimSpace(*s)
	}
}
