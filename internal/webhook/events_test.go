package webhook

import (
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/stretchr/testify/assert"
)

func selfMention(index, length int32) *webhook.Mention {
	return &webhook.Mention{Mentionees: []webhook.MentioneeInterface{
		webhook.UserMentionee{Index: index, Length: length, IsSelf: true},
	}}
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   webhook.EventInterface
		want inbound
		ok   bool
	}{
		{
			name: "personal text",
			ev: webhook.MessageEvent{
				Source:         webhook.UserSource{UserId: "U1"},
				ReplyToken:     "token",
				WebhookEventId: "E1",
				Message:        webhook.TextMessageContent{Text: "Стекло в Кургане"},
			},
			want: inbound{kind: kindMessage, userID: "U1", chatID: "U1", replyToken: "token", eventID: "E1", text: "Стекло в Кургане"},
			ok:   true,
		},
		{
			name: "redelivered postback",
			ev: webhook.PostbackEvent{
				Source:          webhook.UserSource{UserId: "U1"},
				ReplyToken:      "token",
				DeliveryContext: &webhook.DeliveryContext{IsRedelivery: true},
				Postback:        &webhook.PostbackContent{Data: "action=more"},
			},
			want: inbound{kind: kindPostback, userID: "U1", chatID: "U1", replyToken: "token", redelivery: true, data: "action=more"},
			ok:   true,
		},
		{
			name: "group text with mention",
			ev: webhook.MessageEvent{
				Source:  webhook.GroupSource{GroupId: "G1", UserId: "U2"},
				Message: webhook.TextMessageContent{Text: "@Эко батарейки", Mention: selfMention(0, 4)},
			},
			want: inbound{kind: kindMessage, userID: "U2", chatID: "G1", text: "батарейки"},
			ok:   true,
		},
		{
			name: "group text without mention",
			ev: webhook.MessageEvent{
				Source:  webhook.GroupSource{GroupId: "G1", UserId: "U2"},
				Message: webhook.TextMessageContent{Text: "батарейки"},
			},
		},
		{
			name: "room text without user",
			ev: webhook.MessageEvent{
				Source:  webhook.RoomSource{RoomId: "R1"},
				Message: webhook.TextMessageContent{Text: "@Эко привет", Mention: selfMention(0, 4)},
			},
		},
		{
			name: "sticker",
			ev: webhook.MessageEvent{
				Source:  webhook.UserSource{UserId: "U1"},
				Message: webhook.StickerMessageContent{PackageId: "1", StickerId: "2"},
			},
		},
		{
			name: "follow",
			ev:   webhook.FollowEvent{Source: webhook.UserSource{UserId: "U1"}, ReplyToken: "token"},
			want: inbound{kind: kindFollow, userID: "U1", chatID: "U1", replyToken: "token"},
			ok:   true,
		},
		{
			name: "unfollow",
			ev:   webhook.UnfollowEvent{Source: webhook.UserSource{UserId: "U1"}},
			want: inbound{kind: kindUnfollow, userID: "U1", chatID: "U1"},
			ok:   true,
		},
		{
			name: "join",
			ev:   webhook.JoinEvent{Source: webhook.GroupSource{GroupId: "G1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseEvent(tt.ev)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSourceIDs(t *testing.T) {
	assert.Equal(t, "U1", GetChatID(webhook.UserSource{UserId: "U1"}))
	assert.Equal(t, "G1", GetChatID(webhook.GroupSource{GroupId: "G1", UserId: "U1"}))
	assert.Equal(t, "R1", GetChatID(webhook.RoomSource{RoomId: "R1", UserId: "U1"}))
	assert.Equal(t, "U1", GetUserID(webhook.GroupSource{GroupId: "G1", UserId: "U1"}))
	assert.Empty(t, GetUserID(nil))
}

func TestQueueKey(t *testing.T) {
	assert.Equal(t, "U1", inbound{userID: "U1", chatID: "G1"}.queueKey())
	assert.Equal(t, "G1", inbound{chatID: "G1"}.queueKey())
}

func TestRemoveBotMentions(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		mention *webhook.Mention
		want    string
	}{
		{"nil mention", "привет", nil, "привет"},
		{"leading", "@Эко где сдать стекло", selfMention(0, 4), "где сдать стекло"},
		{"middle", "скажи @Эко совет", selfMention(6, 4), "скажи совет"},
		{
			name: "other user kept",
			text: "@Аня @Эко совет",
			mention: &webhook.Mention{Mentionees: []webhook.MentioneeInterface{
				webhook.UserMentionee{Index: 0, Length: 4, UserId: "U9"},
				webhook.UserMentionee{Index: 5, Length: 4, IsSelf: true},
			}},
			want: "@Аня совет",
		},
		{"out of range", "привет", selfMention(10, 4), "привет"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, removeBotMentions(tt.text, tt.mention))
		})
	}
}

func TestIsBotMentioned(t *testing.T) {
	assert.True(t, isBotMentioned(webhook.TextMessageContent{Text: "@Эко", Mention: selfMention(0, 4)}))
	assert.False(t, isBotMentioned(webhook.TextMessageContent{Text: "привет"}))
	assert.False(t, isBotMentioned(webhook.TextMessageContent{
		Text: "@Аня",
		Mention: &webhook.Mention{Mentionees: []webhook.MentioneeInterface{
			webhook.UserMentionee{Index: 0, Length: 4, UserId: "U9"},
		}},
	}))
}
