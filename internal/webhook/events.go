package webhook

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// Event kinds, used as metric labels.
const (
	kindMessage  = "message"
	kindPostback = "postback"
	kindFollow   = "follow"
	kindUnfollow = "unfollow"
)

// inbound is the part of a LINE event the bot acts on.
type inbound struct {
	kind       string
	userID     string
	chatID     string
	replyToken string
	eventID    string
	redelivery bool
	text       string // message text, bot mentions removed
	data       string // postback data
}

// queueKey serializes events of one user; events without a user fall back
// to their chat.
func (in inbound) queueKey() string {
	if in.userID != "" {
		return in.userID
	}
	return in.chatID
}

// GetChatID returns the id to reply into: the user, group or room.
func GetChatID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.GroupId
	case webhook.RoomSource:
		return s.RoomId
	}
	return ""
}

// GetUserID returns the sender's user id, which group and room events carry
// only when the user consented.
func GetUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}

func isPersonalChat(source webhook.SourceInterface) bool {
	_, ok := source.(webhook.UserSource)
	return ok
}

// parseEvent extracts what the bot needs from ev. ok is false for events the
// bot does not answer: non-text messages, group messages that do not mention
// the bot, and unsupported event types.
func parseEvent(ev webhook.EventInterface) (inbound, bool) {
	switch e := ev.(type) {
	case webhook.MessageEvent:
		msg, isText := e.Message.(webhook.TextMessageContent)
		if !isText {
			return inbound{}, false
		}
		text := msg.Text
		if !isPersonalChat(e.Source) {
			if !isBotMentioned(msg) {
				return inbound{}, false
			}
			text = removeBotMentions(text, msg.Mention)
		}
		in := newInbound(kindMessage, e.Source, e.WebhookEventId, e.DeliveryContext)
		in.replyToken = e.ReplyToken
		in.text = text
		return in, in.userID != ""
	case webhook.PostbackEvent:
		if e.Postback == nil {
			return inbound{}, false
		}
		in := newInbound(kindPostback, e.Source, e.WebhookEventId, e.DeliveryContext)
		in.replyToken = e.ReplyToken
		in.data = e.Postback.Data
		return in, in.userID != ""
	case webhook.FollowEvent:
		in := newInbound(kindFollow, e.Source, e.WebhookEventId, e.DeliveryContext)
		in.replyToken = e.ReplyToken
		return in, in.userID != ""
	case webhook.UnfollowEvent:
		in := newInbound(kindUnfollow, e.Source, e.WebhookEventId, e.DeliveryContext)
		return in, in.userID != ""
	}
	return inbound{}, false
}

func newInbound(kind string, source webhook.SourceInterface, eventID string, dc *webhook.DeliveryContext) inbound {
	in := inbound{
		kind:    kind,
		userID:  GetUserID(source),
		chatID:  GetChatID(source),
		eventID: eventID,
	}
	if dc != nil {
		in.redelivery = dc.IsRedelivery
	}
	return in
}
