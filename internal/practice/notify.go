package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/prep-tracker/internal/chat"
)

// Notification is an alert raised by a session edge.
type Notification struct {
	Title string
	Body  string
}

// TimeUp is sent when the clock auto-submits a session.
var TimeUp = Notification{
	Title: "Time's Up!",
	Body:  "Your practice test has ended automatically.",
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	slog.Info("notification", "title", n.Title, "body", n.Body)
	return nil
}

// Sender is the part of chat.Gateway a ChatNotifier needs.
type Sender interface {
	Send(ctx context.Context, msg chat.OutboundMessage) error
}

// ChatNotifier forwards notifications to one chat.
type ChatNotifier struct {
	Sender  Sender
	Channel string
	UserID  string
}

func (c ChatNotifier) Notify(ctx context.Context, n Notification) error {
	if c.Sender == nil {
		return fmt.Errorf("chat notifier has no sender")
	}
	return c.Sender.Send(ctx, chat.OutboundMessage{
		Channel:   c.Channel,
		UserID:    c.UserID,
		Text:      fmt.Sprintf("*%s*\n%s", n.Title, n.Body),
		ParseMode: "Markdown",
	})
}

// MultiNotifier fans a notification out to every notifier; failures are
// joined so one bad channel does not hide the rest.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
