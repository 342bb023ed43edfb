package bot

import (
	"strings"

	"caloriebot/internal/domain"
	"caloriebot/internal/locale"
)

// Command identifies what an inbound message asks for, independently of the
// label the user tapped or typed.
type Command int

const (
	CmdFreeform Command = iota
	CmdStart
	CmdHelp
	CmdAnalyzePrompt
	CmdSearchPrompt
	CmdPhoto
	CmdUnknown // unrecognized slash command
)

func (c Command) String() string {
	switch c {
	case CmdStart:
		return "start"
	case CmdHelp:
		return "help"
	case CmdAnalyzePrompt:
		return "analyze_prompt"
	case CmdSearchPrompt:
		return "search_prompt"
	case CmdPhoto:
		return "photo"
	case CmdUnknown:
		return "unknown"
	default:
		return "freeform"
	}
}

// ChatCommand is a parsed slash command.
type ChatCommand struct {
	Name string   // command name without "/" and without a @bot suffix
	Args []string // arguments after the command
	Raw  string   // original full text
}

// ParseCommand checks if a message starts with "/" and parses it into a ChatCommand.
// Returns nil if the message is not a command.
func ParseCommand(text string) *ChatCommand {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return nil
	}
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil
	}

	name := strings.TrimPrefix(parts[0], "/")
	// Group chats address commands as /start@SomeBot.
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return &ChatCommand{Name: strings.ToLower(name), Args: args, Raw: text}
}

// Router resolves messages to commands using slash commands and the menu
// labels of a locale pack.
type Router struct {
	labels map[string]Command
}

func NewRouter(pack *locale.Pack) *Router {
	return &Router{labels: map[string]Command{
		pack.Buttons.Start:   CmdStart,
		pack.Buttons.Help:    CmdHelp,
		pack.Buttons.Analyze: CmdAnalyzePrompt,
		pack.Buttons.Search:  CmdSearchPrompt,
	}}
}

// Resolve picks the command for msg. Photos win over any caption; menu
// labels must match exactly; everything else is a food description.
func (r *Router) Resolve(msg domain.InboundMessage) Command {
	if msg.HasPhoto() {
		return CmdPhoto
	}
	if cmd := ParseCommand(msg.Text); cmd != nil {
		switch cmd.Name {
		case "start":
			return CmdStart
		case "help":
			return CmdHelp
		default:
			return CmdUnknown
		}
	}
	if c, ok := r.labels[strings.TrimSpace(msg.Text)]; ok {
		return c
	}
	return CmdFreeform
}
