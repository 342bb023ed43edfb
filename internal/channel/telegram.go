package channel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"caloriebot/internal/domain"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
	// Bot API downloads are capped at 20 MB.
	telegramMaxFileBytes = 20 << 20
)

// telegramAPI is the subset of *tgbotapi.BotAPI used after connecting.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Telegram implements domain.Channel and domain.PhotoSource for a Telegram bot.
type Telegram struct {
	token       string
	allowFrom   []int64 // Allowed user IDs (empty = allow all)
	parseMode   string
	pollTimeout int
	keyboard    tgbotapi.ReplyKeyboardMarkup

	api        telegramAPI
	httpClient *http.Client
	bus        domain.MessageBus
	logger     *slog.Logger
	sleep      func(time.Duration)
}

type TelegramConfig struct {
	Token       string
	AllowFrom   []string // User IDs as strings
	ParseMode   string   // empty sends plain text
	PollTimeout int
	Keyboard    [][]string // persistent reply keyboard rows
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:       cfg.Token,
		allowFrom:   allowed,
		parseMode:   cfg.ParseMode,
		pollTimeout: cfg.PollTimeout,
		keyboard:    replyKeyboard(cfg.Keyboard),
		httpClient:  cfg.HTTPClient,
		logger:      cfg.Logger,
		sleep:       time.Sleep,
	}
}

// replyKeyboard builds a persistent, resized keyboard from label rows.
func replyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	var buttons [][]tgbotapi.KeyboardButton
	for _, row := range rows {
		var r []tgbotapi.KeyboardButton
		for _, label := range row {
			r = append(r, tgbotapi.NewKeyboardButton(label))
		}
		buttons = append(buttons, tgbotapi.NewKeyboardButtonRow(r...))
	}
	kb := tgbotapi.NewReplyKeyboard(buttons...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)
	t.attach(bot, bus)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started", "timeout", t.pollTimeout)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

func (t *Telegram) attach(api telegramAPI, bus domain.MessageBus) {
	t.api = api
	t.bus = bus
	bus.OnOutbound(t.Name(), func(msg domain.OutboundMessage) {
		chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
		if err != nil {
			t.logger.Error("invalid chat ID for telegram outbound", "chat_id", msg.ChatID, "err", err)
			return
		}
		t.sendMessage(chatID, msg.Content, msg.Menu)
	})
}

// Stop is a no-op: polling ends when Start's context is cancelled, and
// calling StopReceivingUpdates twice panics.
func (t *Telegram) Stop() error {
	return nil
}

// FetchPhoto downloads the file behind a Telegram file ID.
func (t *Telegram) FetchPhoto(ctx context.Context, fileID string) ([]byte, error) {
	if t.api == nil {
		return nil, fmt.Errorf("telegram not connected")
	}
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve telegram file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		// The URL embeds the bot token; keep it out of logs.
		return nil, fmt.Errorf("download telegram file %s: %w", fileID, redactToken(err, t.token))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download telegram file %s: status %d", fileID, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, telegramMaxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read telegram file %s: %w", fileID, err)
	}
	if len(data) > telegramMaxFileBytes {
		return nil, fmt.Errorf("telegram file %s exceeds %d bytes", fileID, telegramMaxFileBytes)
	}
	return data, nil
}

func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<token>"))
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return
	}

	userID := m.From.ID
	chatID := m.Chat.ID

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", userID,
			"username", m.From.UserName,
		)
		t.sendMessage(chatID, "⛔ Unauthorized. Your user ID is not in the allow list.", false)
		return
	}

	msg := domain.InboundMessage{
		Channel:   t.Name(),
		ChatID:    strconv.FormatInt(chatID, 10),
		SenderID:  strconv.FormatInt(userID, 10),
		Timestamp: time.Unix(int64(m.Date), 0),
	}

	switch {
	case len(m.Photo) > 0:
		best := largestPhoto(m.Photo)
		msg.PhotoRef = best.FileID
		t.logger.Info("telegram photo received",
			"user_id", userID,
			"chat_id", chatID,
			"width", best.Width,
			"height", best.Height,
			"file_size", best.FileSize,
		)
	case strings.TrimSpace(m.Text) != "":
		msg.Text = m.Text
		t.logger.Info("telegram message received",
			"user_id", userID,
			"chat_id", chatID,
			"text_len", len(m.Text),
			"command", m.IsCommand(),
		)
	default:
		// Stickers, voice notes and other media are ignored.
		return
	}

	if _, err := t.api.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		t.logger.Debug("telegram chat action failed", "err", err)
	}
	t.bus.Publish(msg)
}

// largestPhoto picks the highest-resolution size Telegram offers.
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true // Empty list = allow all
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// sendMessage splits text at Telegram's length limit, preferring a newline
// and never cutting inside a UTF-8 sequence. The keyboard, when requested,
// rides on the last chunk.
func (t *Telegram) sendMessage(chatID int64, text string, menu bool) {
	const maxLen = telegramMaxMsgLen
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			for cutAt > 0 && !utf8.RuneStart(text[cutAt]) {
				cutAt--
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		t.sendChunk(chatID, chunk, menu && text == "")
	}
}

// sendChunk sends a single message chunk. Only rate limiting and markup
// parse errors are retried; any other failure may already have been
// delivered, so it is logged and dropped.
func (t *Telegram) sendChunk(chatID int64, text string, menu bool) {
	newMsg := func(parseMode string) tgbotapi.MessageConfig {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = parseMode
		if menu {
			msg.ReplyMarkup = t.keyboard
		}
		return msg
	}

	parseMode := t.parseMode
	for attempt := 0; ; attempt++ {
		_, err := t.api.Send(newMsg(parseMode))
		if err == nil {
			return
		}
		errStr := err.Error()

		switch {
		case isRateLimited(errStr) && attempt < telegramMaxSendRetries:
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			t.sleep(retryAfter)
			continue
		case parseMode != "" && strings.Contains(errStr, "can't parse entities"):
			t.logger.Warn("telegram markup parse error, retrying as plain text",
				"err", err, "parse_mode", parseMode,
			)
			parseMode = ""
			continue
		}

		t.logger.Error("telegram send failed", "err", err, "attempts", attempt+1)
		return
	}
}

func isRateLimited(errStr string) bool {
	return strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429")
}
