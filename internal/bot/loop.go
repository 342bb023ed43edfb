// Package bot dispatches chat messages: it resolves each message to a
// command, runs photo and text turns through normalization and estimation,
// and sends replies back over the bus.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"caloriebot/internal/domain"
	"caloriebot/internal/ingress"
	"caloriebot/internal/locale"
	"caloriebot/internal/metrics"
)

// Normalizer validates and bounds a user turn.
type Normalizer interface {
	Normalize(in domain.InboundInput) (domain.NormalizedInput, error)
}

// Estimator runs one estimation for a normalized turn.
type Estimator interface {
	Estimate(ctx context.Context, in domain.NormalizedInput) domain.AnalysisResult
}

type LoopConfig struct {
	Bus        domain.MessageBus
	Normalizer Normalizer
	Estimator  Estimator
	Pack       *locale.Pack
	Logger     *slog.Logger
}

// Loop consumes inbound messages and handles each on its own goroutine.
type Loop struct {
	bus        domain.MessageBus
	normalizer Normalizer
	estimator  Estimator
	pack       *locale.Pack
	router     *Router
	replies    *Replies
	logger     *slog.Logger

	mu     sync.RWMutex
	photos map[string]domain.PhotoSource // channel name -> source
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		bus:        cfg.Bus,
		normalizer: cfg.Normalizer,
		estimator:  cfg.Estimator,
		pack:       cfg.Pack,
		router:     NewRouter(cfg.Pack),
		replies:    NewReplies(cfg.Pack),
		logger:     cfg.Logger,
		photos:     make(map[string]domain.PhotoSource),
	}
}

// RegisterPhotoSource sets where photo references from channelName are fetched.
func (l *Loop) RegisterPhotoSource(channelName string, src domain.PhotoSource) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.photos[channelName] = src
}

// Run processes inbound messages until ctx is cancelled or the bus closes.
// Messages already being processed are allowed to finish before Run returns.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("dispatcher started")

	var wg sync.WaitGroup
	defer wg.Wait()

	// In-flight turns keep their own deadlines instead of being cut off by shutdown.
	work := context.WithoutCancel(ctx)
	inbound := l.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("dispatcher stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, dispatcher stopping")
				return
			}
			wg.Add(1)
			go func(m domain.InboundMessage) {
				defer wg.Done()
				l.processMessage(work, m)
			}(msg)
		}
	}
}

// processMessage handles one message end to end. Panics are recovered here
// and answered with the generic failure text.
func (l *Loop) processMessage(ctx context.Context, msg domain.InboundMessage) {
	metrics.MessagesTotal.Inc()

	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsTotal.Inc()
			l.logger.Error("unhandled error while processing message",
				"channel", msg.Channel,
				"chat_id", msg.ChatID,
				"type", fmt.Sprintf("%T", r),
				"err", r,
				"stack", string(debug.Stack()),
			)
			l.reply(msg, l.replies.GenericFailure(), true)
		}
	}()

	cmd := l.router.Resolve(msg)
	l.logger.Info("processing message",
		"channel", msg.Channel,
		"chat_id", msg.ChatID,
		"sender", msg.SenderID,
		"command", cmd.String(),
	)

	t := l.pack.Texts
	switch cmd {
	case CmdStart:
		l.reply(msg, t.Welcome, true)
	case CmdHelp, CmdUnknown:
		l.reply(msg, t.Help, true)
	case CmdAnalyzePrompt:
		l.reply(msg, t.AnalyzePrompt, false)
	case CmdSearchPrompt:
		l.reply(msg, t.SearchPrompt, false)
	case CmdPhoto:
		l.handlePhoto(ctx, msg)
	default:
		l.handleText(ctx, msg)
	}
}

func (l *Loop) handlePhoto(ctx context.Context, msg domain.InboundMessage) {
	l.reply(msg, l.replies.Ack(domain.KindPhoto), true)

	data, err := l.fetchPhoto(ctx, msg)
	if err != nil {
		l.logger.Error("photo download failed", "channel", msg.Channel, "chat_id", msg.ChatID, "err", err)
		l.reply(msg, l.replies.PhotoFailed(), true)
		return
	}

	in, err := l.normalizer.Normalize(domain.PhotoInput(data))
	if err != nil {
		if errors.Is(err, ingress.ErrTooSmall) {
			l.logger.Info("photo rejected", "chat_id", msg.ChatID, "err", err)
			l.reply(msg, l.replies.TooSmall(), true)
			return
		}
		l.logger.Error("photo normalization failed", "chat_id", msg.ChatID, "err", err)
		l.reply(msg, l.replies.PhotoFailed(), true)
		return
	}

	res := l.estimator.Estimate(ctx, in)
	l.reply(msg, l.replies.Result(res), true)
}

func (l *Loop) handleText(ctx context.Context, msg domain.InboundMessage) {
	in, err := l.normalizer.Normalize(domain.TextInput(msg.Text))
	if err != nil {
		if errors.Is(err, ingress.ErrEmptyText) {
			l.reply(msg, l.pack.Texts.SearchPrompt, false)
			return
		}
		l.logger.Error("text normalization failed", "chat_id", msg.ChatID, "err", err)
		l.reply(msg, l.replies.TextFailed(), true)
		return
	}

	l.reply(msg, l.replies.Ack(domain.KindText), true)
	res := l.estimator.Estimate(ctx, in)
	l.reply(msg, l.replies.Result(res), true)
}

func (l *Loop) fetchPhoto(ctx context.Context, msg domain.InboundMessage) ([]byte, error) {
	l.mu.RLock()
	src, ok := l.photos[msg.Channel]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no photo source for channel %s", msg.Channel)
	}
	return src.FetchPhoto(ctx, msg.PhotoRef)
}

func (l *Loop) reply(msg domain.InboundMessage, content string, menu bool) {
	l.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: content,
		Menu:    menu,
	})
}
