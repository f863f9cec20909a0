// Package bot answers chat commands with progress figures and lets the user
// tick off subtopics from a chat.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/p-n-ai/prep-tracker/internal/chat"
	"github.com/p-n-ai/prep-tracker/internal/progress"
	"github.com/p-n-ai/prep-tracker/internal/tracker"
)

// Progress is the part of the tracker the bot reads and writes.
type Progress interface {
	Dashboard() progress.Summary
	Subject(id string) (progress.SubjectView, bool)
	Toggle(ref progress.Ref) tracker.ToggleResult
}

// Sender delivers replies.
type Sender interface {
	Send(ctx context.Context, msg chat.OutboundMessage) error
	SendTyping(ctx context.Context, channel, userID string) error
}

// Commands is the command menu published to the chat platform.
func Commands() []chat.BotCommand {
	return []chat.BotCommand{
		{Command: "start", Description: "Say hello and show your streak"},
		{Command: "dashboard", Description: "Coverage, streak and weekly goal"},
		{Command: "subjects", Description: "Coverage per subject"},
		{Command: "streak", Description: "Current study streak"},
		{Command: "check", Description: "Toggle a subtopic: /check <subject> <topic> <index>"},
	}
}

const helpText = `Commands:
/dashboard - coverage, streak and weekly goal
/subjects - coverage per subject
/streak - current study streak
/check <subject> <topic> <index> - tick or untick a subtopic`

// Bot turns inbound chat messages into replies.
type Bot struct {
	progress Progress
}

// New creates a bot over p.
func New(p Progress) *Bot {
	return &Bot{progress: p}
}

// ProcessMessage handles an incoming message and returns a response.
func (b *Bot) ProcessMessage(_ context.Context, msg chat.InboundMessage) (string, error) {
	slog.Info("processing message",
		"channel", msg.Channel,
		"user_id", msg.UserID,
		"text_len", len(msg.Text),
	)

	fields := strings.Fields(msg.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return helpText, nil
	}
	// Telegram appends @botname to commands in group chats.
	cmd, _, _ := strings.Cut(fields[0], "@")

	switch cmd {
	case "/start":
		return b.handleStart(msg), nil
	case "/dashboard":
		return FormatDashboard(b.progress.Dashboard()), nil
	case "/subjects":
		return formatSubjects(b.progress.Dashboard()), nil
	case "/streak":
		return formatStreak(b.progress.Dashboard().Streak), nil
	case "/check":
		return b.handleCheck(fields[1:]), nil
	case "/help":
		return helpText, nil
	default:
		return fmt.Sprintf("Unknown command: %s\n\n%s", cmd, helpText), nil
	}
}

// Handler returns a chat handler that replies through s.
func (b *Bot) Handler(ctx context.Context, s Sender) func(chat.InboundMessage) {
	return func(msg chat.InboundMessage) {
		if err := s.SendTyping(ctx, msg.Channel, msg.UserID); err != nil {
			slog.Debug("typing indicator failed", "error", err)
		}
		reply, err := b.ProcessMessage(ctx, msg)
		if err != nil {
			slog.Error("failed to process message", "error", err)
			return
		}
		if err := s.Send(ctx, chat.OutboundMessage{
			Channel: msg.Channel,
			UserID:  msg.UserID,
			Text:    reply,
		}); err != nil {
			slog.Error("failed to send reply", "user_id", msg.UserID, "error", err)
		}
	}
}

func (b *Bot) handleStart(msg chat.InboundMessage) string {
	name := msg.FirstName
	if name == "" {
		name = msg.Username
	}
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s!\n\n%s\n\n%s", name, formatStreak(b.progress.Dashboard().Streak), helpText)
}

func (b *Bot) handleCheck(args []string) string {
	const usage = "Usage: /check <subject> <topic> <index>"
	if len(args) != 3 {
		return usage
	}
	index, err := strconv.Atoi(args[2])
	if err != nil {
		return usage
	}

	view, ok := b.progress.Subject(args[0])
	if !ok {
		return fmt.Sprintf("Unknown subject: %s", args[0])
	}
	var topic *progress.TopicView
	for i := range view.Topics {
		if view.Topics[i].TopicID == args[1] {
			topic = &view.Topics[i]
			break
		}
	}
	if topic == nil {
		return fmt.Sprintf("Unknown topic %s in %s", args[1], view.Name)
	}
	if index < 0 || index >= len(topic.Subtopics) {
		return fmt.Sprintf("%s has subtopics 0-%d", topic.Title, len(topic.Subtopics)-1)
	}

	res := b.progress.Toggle(progress.Ref{SubjectID: args[0], TopicID: args[1], Index: index})
	verb := "Unchecked"
	if res.Checked {
		verb = "Checked"
	}
	return fmt.Sprintf("%s: %s\nToday: %.2f syllabus days", verb, topic.Subtopics[index].Label, res.TodayCount)
}

// FormatDashboard renders the headline figures as plain text.
func FormatDashboard(s progress.Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Coverage: %d%% (%.1f of %d syllabus days)\n", s.Coverage.Percent, s.Coverage.CompletedDays, s.Coverage.TotalDays)
	sb.WriteString(formatStreak(s.Streak))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Weekly goal: %d%% (%.1f of %.0f days)", s.Weekly.Percent, s.Weekly.Total, s.Weekly.Goal)
	return sb.String()
}

// Reminder is the daily nudge sent to the configured chat.
func Reminder(s progress.Summary) string {
	var head string
	switch {
	case activeToday(s):
		head = "Nice work today."
	case s.Streak > 0:
		head = fmt.Sprintf("Keep your %d-day streak alive: tick off a subtopic today.", s.Streak)
	default:
		head = "No study logged yet today. Start a new streak!"
	}
	return head + "\n\n" + FormatDashboard(s)
}

// activeToday reads today's flag from the end of the calendar window.
func activeToday(s progress.Summary) bool {
	n := len(s.Calendar)
	return n > 0 && s.Calendar[n-1].Date == s.Today && s.Calendar[n-1].Active
}

func formatSubjects(s progress.Summary) string {
	if len(s.Coverage.Subjects) == 0 {
		return "No subjects loaded."
	}
	var sb strings.Builder
	for i, sub := range s.Coverage.Subjects {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s: %d%% (%.1f/%d)", sub.Name, sub.Percent, sub.CompletedDays, sub.TotalDays)
	}
	return sb.String()
}

func formatStreak(days int) string {
	switch days {
	case 0:
		return "Streak: 0 days"
	case 1:
		return "Streak: 1 day"
	default:
		return fmt.Sprintf("Streak: %d days", days)
	}
}
