// Package chat provides a unified interface for messaging channels. The
// tracker uses it for time's-up alerts, streak reminders and the command bot.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// InboundMessage is a text message received from any channel.
type InboundMessage struct {
	Channel    string
	UserID     string // conversation to reply to
	ExternalID string // sender
	Text       string
	Username   string
	FirstName  string
}

// OutboundMessage is a message to send via any channel.
type OutboundMessage struct {
	Channel   string
	UserID    string
	Text      string
	ParseMode string // "Markdown", "HTML", or ""
}

// Channel is the interface each messaging platform must implement.
type Channel interface {
	SendMessage(ctx context.Context, userID string, msg OutboundMessage) error
	SendTyping(ctx context.Context, userID string) error
	Start(ctx context.Context, handler func(InboundMessage)) error
	Stop() error
}

// Gateway routes messages to/from registered channels.
type Gateway struct {
	channels map[string]Channel
	mu       sync.RWMutex
}

// NewGateway creates a new chat gateway.
func NewGateway() *Gateway {
	return &Gateway{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the gateway.
func (g *Gateway) Register(name string, ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[name] = ch
	slog.Info("chat channel registered", "channel", name)
}

// HasChannel returns true if the named channel is registered.
func (g *Gateway) HasChannel(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.channels[name]
	return ok
}

// Send dispatches a message to the appropriate channel.
func (g *Gateway) Send(ctx context.Context, msg OutboundMessage) error {
	ch, err := g.channel(msg.Channel)
	if err != nil {
		return err
	}
	return ch.SendMessage(ctx, msg.UserID, msg)
}

// SendTyping sends a typing indicator to the user on the given channel.
func (g *Gateway) SendTyping(ctx context.Context, channel, userID string) error {
	ch, err := g.channel(channel)
	if err != nil {
		return err
	}
	return ch.SendTyping(ctx, userID)
}

// StartAll starts all registered channels with the given message handler.
func (g *Gateway) StartAll(ctx context.Context, handler func(InboundMessage)) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for name, ch := range g.channels {
		slog.Info("starting channel", "channel", name)
		if err := ch.Start(ctx, handler); err != nil {
			return fmt.Errorf("starting channel %s: %w", name, err)
		}
	}
	return nil
}

// StopAll stops every registered channel, logging failures.
func (g *Gateway) StopAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for name, ch := range g.channels {
		if err := ch.Stop(); err != nil {
			slog.Warn("stopping channel", "channel", name, "error", err)
		}
	}
}

func (g *Gateway) channel(name string) (Channel, error) {
	g.mu.RLock()
	ch, ok := g.channels[name]
	g.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown channel: %s", name)
	}
	return ch, nil
}

// MockChannel is a test double for Channel.
type MockChannel struct {
	mu           sync.Mutex
	SentMessages []OutboundMessage
	Typing       int
}

func (m *MockChannel) SendMessage(_ context.Context, _ string, msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, msg)
	return nil
}

func (m *MockChannel) SendTyping(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Typing++
	return nil
}

func (m *MockChannel) Start(_ context.Context, _ func(InboundMessage)) error {
	return nil
}

func (m *MockChannel) Stop() error {
	return nil
}

// Sent returns a copy of the messages sent so far.
func (m *MockChannel) Sent() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OutboundMessage{}, m.SentMessages...)
}
