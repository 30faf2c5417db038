package usecase

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"guide-bot/internal/domain"
)

func privateChat() *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: 7, Type: "private"}
}

func TestClassify(t *testing.T) {
	alice := &tgbotapi.User{ID: 7, UserName: "alice"}

	tests := []struct {
		name string
		in   tgbotapi.Update
		want Event
	}{
		{
			name: "command",
			in:   tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 3, Chat: privateChat(), From: alice, Text: "  /start  "}},
			want: CommandMessage{Chat: Chat{ID: 7, Private: true}, From: Sender{ID: 7, Username: "alice"}, MessageID: 3, Text: "/start"},
		},
		{
			name: "group text",
			in:   tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 4, Chat: &tgbotapi.Chat{ID: -5, Type: "supergroup"}, From: alice, Text: "show the guide"}},
			want: TextMessage{Chat: Chat{ID: -5}, From: Sender{ID: 7, Username: "alice"}, MessageID: 4, Text: "show the guide"},
		},
		{
			name: "photo picks the largest size",
			in: tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 5, Chat: privateChat(), From: alice, Caption: "cap", Photo: []tgbotapi.PhotoSize{
				{FileID: "small", Width: 90, Height: 90},
				{FileID: "large", Width: 1280, Height: 720},
				{FileID: "medium", Width: 320, Height: 180},
			}}},
			want: PhotoMessage{Chat: Chat{ID: 7, Private: true}, From: Sender{ID: 7, Username: "alice"}, MessageID: 5, FileID: "large", Caption: "cap"},
		},
		{
			name: "button press on a photo",
			in: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				ID:      "cb-9",
				From:    alice,
				Data:    "guide:NETMOD:2",
				Message: &tgbotapi.Message{MessageID: 11, Chat: privateChat(), Photo: []tgbotapi.PhotoSize{{FileID: "p"}}},
			}},
			want: MenuAction{ID: "cb-9", From: Sender{ID: 7, Username: "alice"}, Screen: domain.Screen{ChatID: 7, MessageID: 11, HasMedia: true}, Token: "guide:NETMOD:2"},
		},
		{
			name: "button press without message",
			in:   tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb-1", From: alice, Data: "main_menu"}},
			want: MenuAction{ID: "cb-1", From: Sender{ID: 7, Username: "alice"}, Token: "main_menu"},
		},
		{
			name: "members joined",
			in: tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -5, Type: "group"}, NewChatMembers: []tgbotapi.User{
				{ID: 1}, {ID: 2},
			}}},
			want: MembershipChange{ChatID: -5, UserIDs: []int64{1, 2}, Status: "member"},
		},
		{
			name: "member left",
			in:   tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -5, Type: "group"}, LeftChatMember: &tgbotapi.User{ID: 3}}},
			want: MembershipChange{ChatID: -5, UserIDs: []int64{3}, Status: "left"},
		},
		{
			name: "bot status changed",
			in: tgbotapi.Update{MyChatMember: &tgbotapi.ChatMemberUpdated{
				Chat:          tgbotapi.Chat{ID: -5},
				NewChatMember: tgbotapi.ChatMember{User: &tgbotapi.User{ID: 99}, Status: "kicked"},
			}},
			want: MembershipChange{ChatID: -5, UserIDs: []int64{99}, Status: "kicked"},
		},
		{
			name: "empty text",
			in:   tgbotapi.Update{UpdateID: 8, Message: &tgbotapi.Message{Chat: privateChat(), Text: "   "}},
			want: Unsupported{UpdateID: 8, Reason: "message without text"},
		},
		{
			name: "edited message",
			in:   tgbotapi.Update{UpdateID: 9, EditedMessage: &tgbotapi.Message{Chat: privateChat(), Text: "x"}},
			want: Unsupported{UpdateID: 9, Reason: "no supported payload"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.in))
		})
	}
}
