package config

// LINE Messaging API limits.
const (
	LINEMaxMessagesPerReply   = 5
	LINEMaxTextMessageLength  = 5000
	LINEMaxPostbackDataLength = 300
	LINEMaxQuickReplyItems    = 13
	LINEMaxQuickReplyLabel    = 20
	LINEMaxButtonLabel        = 40
	LINEMaxAltTextLength      = 400
)

// Outbound Messaging API budget shared by replies, pushes and broadcasts.
const (
	OutboundRatePerSecond = 50
	OutboundBurst         = 20
)
