package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/p-n-ai/prep-tracker/internal/platform/config"
)

const telegramMaxMessageLen = 4096

// BotCommand is one entry of the bot's command menu.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// TelegramChannel implements the Channel interface for Telegram Bot API.
type TelegramChannel struct {
	token    string
	baseURL  string
	client   *http.Client
	offset   int
	stop     chan struct{}
	stopOnce sync.Once
	chatID   string // when set, inbound messages from other chats are dropped
	commands []BotCommand
}

// NewTelegramChannel creates a Telegram channel adapter. commands, if any,
// are published as the bot's command menu when polling starts.
func NewTelegramChannel(cfg config.TelegramConfig, commands ...BotCommand) (*TelegramChannel, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required (PREP_TELEGRAM_BOT_TOKEN)")
	}
	return &TelegramChannel{
		token:   cfg.BotToken,
		baseURL: "https://api.telegram.org/bot" + cfg.BotToken,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		stop:     make(chan struct{}),
		chatID:   cfg.ChatID,
		commands: commands,
	}, nil
}

func (t *TelegramChannel) SendTyping(ctx context.Context, userID string) error {
	resp, err := t.post(ctx, "sendChatAction", url.Values{
		"chat_id": {userID},
		"action":  {"typing"},
	})
	if err != nil {
		return fmt.Errorf("sending typing indicator: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func (t *TelegramChannel) SendMessage(ctx context.Context, userID string, msg OutboundMessage) error {
	parts := SplitMessage(msg.Text, telegramMaxMessageLen)

	for _, part := range parts {
		params := url.Values{
			"chat_id": {userID},
			"text":    {part},
		}
		if msg.ParseMode != "" {
			params.Set("parse_mode", msg.ParseMode)
		}

		resp, err := t.post(ctx, "sendMessage", params)
		if err != nil {
			return fmt.Errorf("sending Telegram message: %w", err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			// If Markdown parsing fails, retry without parse mode
			if msg.ParseMode != "" && resp.StatusCode == http.StatusBadRequest {
				slog.Warn("Telegram markdown parse failed, retrying plain")
				params.Del("parse_mode")
				retryResp, retryErr := t.post(ctx, "sendMessage", params)
				if retryErr != nil {
					return fmt.Errorf("sending Telegram message (retry): %w", retryErr)
				}
				_ = retryResp.Body.Close()
				if retryResp.StatusCode != http.StatusOK {
					return fmt.Errorf("telegram API error %d on retry", retryResp.StatusCode)
				}
				continue
			}
			return fmt.Errorf("telegram API error %d", resp.StatusCode)
		}
	}

	return nil
}

func (t *TelegramChannel) Start(ctx context.Context, handler func(InboundMessage)) error {
	if len(t.commands) > 0 {
		if err := t.syncCommands(ctx); err != nil {
			slog.Warn("failed to publish Telegram commands", "error", err)
		}
	}
	go t.pollLoop(ctx, handler)
	return nil
}

func (t *TelegramChannel) Stop() error {
	t.stopOnce.Do(func() { close(t.stop) })
	return nil
}

// syncCommands publishes the command menu via setMyCommands.
func (t *TelegramChannel) syncCommands(ctx context.Context) error {
	payload, err := json.Marshal(t.commands)
	if err != nil {
		return fmt.Errorf("encode commands: %w", err)
	}
	resp, err := t.post(ctx, "setMyCommands", url.Values{"commands": {string(payload)}})
	if err != nil {
		return fmt.Errorf("setMyCommands: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("setMyCommands: telegram API error %d", resp.StatusCode)
	}
	return nil
}

func (t *TelegramChannel) pollLoop(ctx context.Context, handler func(InboundMessage)) {
	slog.Info("Telegram long-polling started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		default:
			updates, err := t.getUpdates(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Telegram getUpdates error", "error", err)
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					return
				case <-t.stop:
					return
				}
				continue
			}

			for _, u := range updates {
				t.offset = u.UpdateID + 1
				msg, ok := mapTelegramInbound(u)
				if !ok {
					continue
				}
				if t.chatID != "" && msg.UserID != t.chatID {
					slog.Warn("dropping message from unknown chat", "chat_id", msg.UserID)
					continue
				}
				handler(msg)
			}
		}
	}
}

func (t *TelegramChannel) getUpdates(ctx context.Context) ([]tgUpdate, error) {
	params := url.Values{
		"offset":  {strconv.Itoa(t.offset)},
		"timeout": {"30"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		OK     bool       `json:"ok"`
		Result []tgUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	if !result.OK {
		return nil, fmt.Errorf("telegram API returned ok=false")
	}

	return result.Result, nil
}

func (t *TelegramChannel) post(ctx context.Context, method string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.client.Do(req)
}

// Telegram API types (minimal)
type tgUpdate struct {
	UpdateID int        `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

type tgMessage struct {
	Text string `json:"text"`
	Chat tgChat `json:"chat"`
	From tgUser `json:"from"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// SplitMessage splits text into chunks that fit Telegram's max message length.
func SplitMessage(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			parts = append(parts, text)
			break
		}
		// Find last newline or space within limit
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > 0 {
			cutAt = idx + 1
		} else if idx := strings.LastIndex(text[:maxLen], " "); idx > 0 {
			cutAt = idx + 1
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	return parts
}

func mapTelegramInbound(u tgUpdate) (InboundMessage, bool) {
	if u.Message == nil {
		return InboundMessage{}, false
	}

	text := strings.TrimSpace(u.Message.Text)
	if text == "" {
		return InboundMessage{}, false
	}

	return InboundMessage{
		Channel:    "telegram",
		UserID:     strconv.FormatInt(u.Message.Chat.ID, 10),
		ExternalID: strconv.FormatInt(u.Message.From.ID, 10),
		Text:       text,
		Username:   u.Message.From.Username,
		FirstName:  u.Message.From.FirstName,
	}, true
}
