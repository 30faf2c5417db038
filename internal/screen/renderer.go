// Package screen renders desired content onto a chat screen, choosing between
// editing the current message in place and replacing it.
package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"guide-bot/internal/domain"
)

// Messenger is the platform surface the renderer drives. DeleteMessage must
// treat an already deleted message as success.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, buttons [][]domain.Button) (int, error)
	SendPhoto(ctx context.Context, chatID int64, mediaRef, caption string, buttons [][]domain.Button) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, buttons [][]domain.Button) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Strategy is how a screen transition is carried out.
type Strategy int

const (
	// StrategyFresh sends a new message; there is nothing to edit or delete.
	StrategyFresh Strategy = iota
	// StrategyEdit edits text and buttons of the current message.
	StrategyEdit
	// StrategyReplace deletes the current message and sends a new one.
	StrategyReplace
)

func (s Strategy) String() string {
	switch s {
	case StrategyFresh:
		return "fresh"
	case StrategyEdit:
		return "edit"
	case StrategyReplace:
		return "replace"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Decide picks the strategy for moving from prev to c. The platform cannot
// turn a photo message into a text message or back, so any media on either
// side forces a replace.
func Decide(prev domain.Screen, c domain.Content) Strategy {
	switch {
	case !prev.HasMessage():
		return StrategyFresh
	case prev.HasMedia || c.HasMedia():
		return StrategyReplace
	default:
		return StrategyEdit
	}
}

// Renderer applies content to a screen.
type Renderer struct {
	messenger Messenger
}

// NewRenderer creates a Renderer that talks to the platform through m.
func NewRenderer(m Messenger) (*Renderer, error) {
	if m == nil {
		return nil, errors.New("screen: messenger must not be nil")
	}
	return &Renderer{messenger: m}, nil
}

// Render shows c on the chat of prev and returns the resulting screen. A failed
// edit falls back to replace and a failed photo send falls back to text, so an
// error is only returned when nothing could be shown at all.
func (r *Renderer) Render(ctx context.Context, prev domain.Screen, c domain.Content) (domain.Screen, error) {
	strategy := Decide(prev, c)
	slog.Debug("rendering screen", "chat_id", prev.ChatID, "message_id", prev.MessageID, "strategy", strategy.String())

	switch strategy {
	case StrategyEdit:
		text := Truncate(c.Text, MaxMessageLength)
		err := r.messenger.EditText(ctx, prev.ChatID, prev.MessageID, text, c.Buttons)
		if err == nil {
			return domain.Screen{ChatID: prev.ChatID, MessageID: prev.MessageID}, nil
		}
		slog.Warn("edit failed, replacing message", "chat_id", prev.ChatID, "message_id", prev.MessageID, "err", err)
		return r.replace(ctx, prev, c)
	case StrategyReplace:
		return r.replace(ctx, prev, c)
	default:
		return r.send(ctx, prev.ChatID, c)
	}
}

func (r *Renderer) replace(ctx context.Context, prev domain.Screen, c domain.Content) (domain.Screen, error) {
	if err := r.messenger.DeleteMessage(ctx, prev.ChatID, prev.MessageID); err != nil {
		slog.Warn("failed to delete previous message", "chat_id", prev.ChatID, "message_id", prev.MessageID, "err", err)
	}
	return r.send(ctx, prev.ChatID, c)
}

func (r *Renderer) send(ctx context.Context, chatID int64, c domain.Content) (domain.Screen, error) {
	if c.HasMedia() {
		id, err := r.messenger.SendPhoto(ctx, chatID, c.MediaRef, Truncate(c.Text, MaxCaptionLength), c.Buttons)
		if err == nil {
			return domain.Screen{ChatID: chatID, MessageID: id, HasMedia: true}, nil
		}
		slog.Error("failed to send photo, falling back to text", "chat_id", chatID, "err", err)
	}

	id, err := r.messenger.SendText(ctx, chatID, Truncate(c.Text, MaxMessageLength), c.Buttons)
	if err != nil {
		slog.Error("failed to send message", "chat_id", chatID, "err", err)
		return domain.Screen{ChatID: chatID}, fmt.Errorf("screen: send: %w", err)
	}
	return domain.Screen{ChatID: chatID, MessageID: id}, nil
}
