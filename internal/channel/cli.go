package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"caloriebot/internal/config"
	"caloriebot/internal/domain"
)

const cliChatID = "local"

// CLI implements domain.Channel for interactive terminal chat and
// domain.PhotoSource for local image files sent with /photo.
type CLI struct {
	bus    domain.MessageBus
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
	menu   string
	outMu  sync.Mutex
}

type CLIConfig struct {
	Logger   *slog.Logger
	In       io.Reader
	Out      io.Writer
	Keyboard [][]string // menu labels shown after replies that carry the menu
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CLI{
		logger: cfg.Logger,
		in:     cfg.In,
		out:    cfg.Out,
		menu:   renderMenu(cfg.Keyboard),
	}
}

func renderMenu(rows [][]string) string {
	var sb strings.Builder
	for _, row := range rows {
		for i, label := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString("[" + label + "]")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (c *CLI) Name() string { return "cli" }

// Start runs the REPL and blocks until EOF, /quit or ctx cancellation.
func (c *CLI) Start(ctx context.Context, bus domain.MessageBus) error {
	c.bus = bus

	bus.OnOutbound(c.Name(), func(msg domain.OutboundMessage) {
		c.outMu.Lock()
		defer c.outMu.Unlock()
		_, _ = fmt.Fprintln(c.out, msg.Content)
		if msg.Menu && c.menu != "" {
			_, _ = fmt.Fprint(c.out, c.menu)
		}
		_, _ = fmt.Fprint(c.out, "You> ")
	})

	c.print("caloriebot CLI. Describe a meal, send a picture with /photo <path>, or type /quit to exit.\nYou> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return nil // EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			c.print("You> ")
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			c.logger.Info("user requested quit")
			return nil
		}

		msg := domain.InboundMessage{
			Channel:  c.Name(),
			ChatID:   cliChatID,
			SenderID: "user",
			Text:     line,
		}
		if path, ok := strings.CutPrefix(line, "/photo "); ok {
			msg.Text = ""
			msg.PhotoRef = strings.TrimSpace(path)
		}
		c.bus.Publish(msg)
	}
}

func (c *CLI) print(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = fmt.Fprint(c.out, s)
}

// Stop is a no-op for CLI (we exit when Start returns).
func (c *CLI) Stop() error { return nil }

// FetchPhoto reads a local image file.
func (c *CLI) FetchPhoto(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(config.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return data, nil
}
