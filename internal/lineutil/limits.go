package lineutil

// LINE API limits, counted in runes.
// https://developers.line.biz/en/reference/messaging-api/
const (
	MaxTextMessageLength   = 5000
	MaxAltTextLength       = 400
	MaxPostbackData        = 300
	MaxQuickReplyItemCount = 13
	MaxQuickReplyLabel     = 20
	MaxButtonLabel         = 40
	MaxMessagesPerRequest  = 5
)
