package usecase

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"guide-bot/internal/domain"
)

// Event is one classified inbound update. The set of variants is closed.
type Event interface {
	event()
}

// Chat identifies where a message was posted.
type Chat struct {
	ID      int64
	Private bool
}

// Sender identifies who posted a message or pressed a button.
type Sender struct {
	ID       int64
	Username string
}

// CommandMessage is a message whose text starts with "/".
type CommandMessage struct {
	Chat      Chat
	From      Sender
	MessageID int
	Text      string
}

// TextMessage is free-form text.
type TextMessage struct {
	Chat      Chat
	From      Sender
	MessageID int
	Text      string
}

// PhotoMessage is a photo, optionally captioned. FileID is the largest size.
type PhotoMessage struct {
	Chat      Chat
	From      Sender
	MessageID int
	FileID    string
	Caption   string
}

// MenuAction is a button press. Screen is the message the button belongs to.
type MenuAction struct {
	ID     string
	From   Sender
	Screen domain.Screen
	Token  string
}

// MembershipChange reports users joining or leaving, or the bot's own status changing.
type MembershipChange struct {
	ChatID  int64
	UserIDs []int64
	Status  string
}

// Unsupported is any update the bot does not react to.
type Unsupported struct {
	UpdateID int
	Reason   string
}

func (CommandMessage) event()   {}
func (TextMessage) event()      {}
func (PhotoMessage) event()     {}
func (MenuAction) event()       {}
func (MembershipChange) event() {}
func (Unsupported) event()      {}

// Classify maps a platform update onto exactly one Event variant.
func Classify(u tgbotapi.Update) Event {
	switch {
	case u.CallbackQuery != nil:
		return classifyCallback(u.CallbackQuery)
	case u.MyChatMember != nil:
		return membership(u.MyChatMember)
	case u.ChatMember != nil:
		return membership(u.ChatMember)
	case u.Message != nil:
		return classifyMessage(u.UpdateID, u.Message)
	default:
		return Unsupported{UpdateID: u.UpdateID, Reason: "no supported payload"}
	}
}

func classifyCallback(cb *tgbotapi.CallbackQuery) Event {
	ev := MenuAction{ID: cb.ID, Token: cb.Data}
	if cb.From != nil {
		ev.From = sender(cb.From)
	}
	if m := cb.Message; m != nil && m.Chat != nil {
		ev.Screen = domain.Screen{ChatID: m.Chat.ID, MessageID: m.MessageID, HasMedia: len(m.Photo) > 0}
	}
	return ev
}

func membership(m *tgbotapi.ChatMemberUpdated) Event {
	ev := MembershipChange{ChatID: m.Chat.ID, Status: m.NewChatMember.Status}
	if m.NewChatMember.User != nil {
		ev.UserIDs = []int64{m.NewChatMember.User.ID}
	}
	return ev
}

func classifyMessage(updateID int, m *tgbotapi.Message) Event {
	if m.Chat == nil {
		return Unsupported{UpdateID: updateID, Reason: "message without chat"}
	}
	chat := Chat{ID: m.Chat.ID, Private: m.Chat.IsPrivate()}
	var from Sender
	if m.From != nil {
		from = sender(m.From)
	}

	switch {
	case len(m.NewChatMembers) > 0:
		ev := MembershipChange{ChatID: chat.ID, Status: "member"}
		for _, u := range m.NewChatMembers {
			ev.UserIDs = append(ev.UserIDs, u.ID)
		}
		return ev
	case m.LeftChatMember != nil:
		return MembershipChange{ChatID: chat.ID, UserIDs: []int64{m.LeftChatMember.ID}, Status: "left"}
	case len(m.Photo) > 0:
		return PhotoMessage{
			Chat:      chat,
			From:      from,
			MessageID: m.MessageID,
			FileID:    largestPhoto(m.Photo),
			Caption:   m.Caption,
		}
	}

	text := strings.TrimSpace(m.Text)
	switch {
	case text == "":
		return Unsupported{UpdateID: updateID, Reason: "message without text"}
	case strings.HasPrefix(text, "/"):
		return CommandMessage{Chat: chat, From: from, MessageID: m.MessageID, Text: text}
	default:
		return TextMessage{Chat: chat, From: from, MessageID: m.MessageID, Text: text}
	}
}

func sender(u *tgbotapi.User) Sender {
	return Sender{ID: u.ID, Username: u.UserName}
}

func largestPhoto(sizes []tgbotapi.PhotoSize) string {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height >= best.Width*best.Height {
			best = s
		}
	}
	return best.FileID
}
