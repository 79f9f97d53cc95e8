package webhook

import (
	"slices"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// isBotMentioned reports whether the bot itself is tagged in the message.
func isBotMentioned(msg webhook.TextMessageContent) bool {
	if msg.Mention == nil {
		return false
	}
	for _, m := range msg.Mention.Mentionees {
		if um, ok := m.(webhook.UserMentionee); ok && um.IsSelf {
			return true
		}
	}
	return false
}

type span struct {
	index, length int
}

// removeBotMentions cuts the bot's own mentions out of text. Indexes are in
// runes, as LINE reports them.
func removeBotMentions(text string, mention *webhook.Mention) string {
	if mention == nil {
		return text
	}
	var spans []span
	for _, m := range mention.Mentionees {
		if um, ok := m.(webhook.UserMentionee); ok && um.IsSelf {
			spans = append(spans, span{int(um.Index), int(um.Length)})
		}
	}
	if len(spans) == 0 {
		return text
	}

	// Back to front keeps earlier indexes valid.
	slices.SortFunc(spans, func(a, b span) int { return b.index - a.index })
	runes := []rune(text)
	for _, s := range spans {
		start := max(s.index, 0)
		end := min(s.index+s.length, len(runes))
		if start >= end {
			continue
		}
		runes = append(runes[:start], runes[end:]...)
	}
	return strings.Join(strings.Fields(string(runes)), " ")
}
