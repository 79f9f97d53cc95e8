// Package lineutil renders bot replies as LINE messages and delivers them.
package lineutil

import (
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Button is an inline action under a reply. Exactly one of Data, Text or
// URI is set: Data sends a postback, Text sends a message as the user, URI
// opens a link.
type Button struct {
	Label string
	Data  string
	Text  string
	URI   string
}

// Postback creates a postback button.
func Postback(label, data string) Button {
	return Button{Label: label, Data: data}
}

// Say creates a button that sends text as the user.
func Say(label, text string) Button {
	return Button{Label: label, Text: text}
}

// Link creates a URI button.
func Link(label, uri string) Button {
	return Button{Label: label, URI: uri}
}

// Reply is one outgoing message: text, optional title, inline buttons and
// a quick-reply menu.
type Reply struct {
	Title   string
	Text    string
	Buttons []Button
	Menu    []string // quick-reply labels that send themselves as text
}

// Text creates a plain reply.
func Text(text string) Reply {
	return Reply{Text: text}
}

// WithMenu returns r with the quick-reply menu set.
func (r Reply) WithMenu(labels []string) Reply {
	r.Menu = labels
	return r
}

// AltText is the notification preview of r.
func (r Reply) AltText() string {
	s := r.Text
	if r.Title != "" {
		s = r.Title + "\n" + s
	}
	return TruncateRunes(s, MaxAltTextLength)
}

// Rich renders r as a Flex bubble when it has a title or buttons, and as a
// text message otherwise.
func (r Reply) Rich() messaging_api.MessageInterface {
	if r.Title == "" && len(r.Buttons) == 0 {
		return r.Plain()
	}

	body := NewFlexBox("vertical",
		NewFlexText(TruncateRunes(r.Text, MaxTextMessageLength)).
			WithSize("sm").WithColor(ColorText).WithWrap(true).WithLineSpacing(LineSpacingNormal).FlexText,
	).WithPaddingAll(SpacingL)

	bubble := &messaging_api.FlexBubble{Body: body.FlexBox}
	if r.Title != "" {
		bubble.Header = NewHeroBox(r.Title).FlexBox
	}
	if len(r.Buttons) > 0 {
		buttons := make([]*FlexButton, 0, len(r.Buttons))
		for i, b := range r.Buttons {
			style := "secondary"
			if i == 0 {
				style = "primary"
			}
			btn := NewFlexButton(b.action()).WithStyle(style).WithHeight("sm")
			if style == "primary" {
				btn.WithColor(ColorPrimary)
			}
			buttons = append(buttons, btn)
		}
		bubble.Footer = NewButtonFooter(buttons...).WithPaddingAll(SpacingM).FlexBox
	}

	return &messaging_api.FlexMessage{
		AltText:    r.AltText(),
		Contents:   bubble,
		QuickReply: r.quickReply(false),
	}
}

// Plain renders r as a text message. Inline buttons become quick replies.
func (r Reply) Plain() messaging_api.MessageInterface {
	text := r.Text
	if r.Title != "" {
		text = r.Title + "\n\n" + text
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = "…"
	}
	return &messaging_api.TextMessage{
		Text:       TruncateRunes(text, MaxTextMessageLength),
		QuickReply: r.quickReply(true),
	}
}

func (r Reply) quickReply(withButtons bool) *messaging_api.QuickReply {
	var items []messaging_api.QuickReplyItem
	if withButtons {
		for _, b := range r.Buttons {
			items = append(items, messaging_api.QuickReplyItem{Action: b.quickAction()})
		}
	}
	for _, label := range r.Menu {
		items = append(items, messaging_api.QuickReplyItem{
			Action: &messaging_api.MessageAction{
				Label: TruncateRunes(label, MaxQuickReplyLabel),
				Text:  label,
			},
		})
	}
	if len(items) == 0 {
		return nil
	}
	if len(items) > MaxQuickReplyItemCount {
		items = items[:MaxQuickReplyItemCount]
	}
	return &messaging_api.QuickReply{Items: items}
}

func (b Button) action() messaging_api.ActionInterface {
	return b.actionWithLabel(TruncateRunes(b.Label, MaxButtonLabel))
}

// quickAction uses the shorter quick-reply label limit. URI buttons are not
// allowed in quick replies, so they degrade to a message carrying the link.
func (b Button) quickAction() messaging_api.ActionInterface {
	label := TruncateRunes(b.Label, MaxQuickReplyLabel)
	if b.URI != "" {
		return &messaging_api.MessageAction{Label: label, Text: b.URI}
	}
	return b.actionWithLabel(label)
}

func (b Button) actionWithLabel(label string) messaging_api.ActionInterface {
	switch {
	case b.URI != "":
		return &messaging_api.UriAction{Label: label, Uri: b.URI}
	case b.Data != "":
		return &messaging_api.PostbackAction{
			Label:       label,
			Data:        TruncateRunes(b.Data, MaxPostbackData),
			DisplayText: b.Label,
		}
	default:
		text := b.Text
		if text == "" {
			text = b.Label
		}
		return &messaging_api.MessageAction{Label: label, Text: text}
	}
}

// Render converts replies to LINE messages, as text only when plain is set.
func Render(replies []Reply, plain bool) []messaging_api.MessageInterface {
	out := make([]messaging_api.MessageInterface, 0, len(replies))
	for _, r := range replies {
		if plain {
			out = append(out, r.Plain())
		} else {
			out = append(out, r.Rich())
		}
	}
	return out
}
