package lineutil

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// FlexBox wraps messaging_api.FlexBox with a fluent API.
type FlexBox struct {
	*messaging_api.FlexBox
}

// NewFlexBox creates a box with the given layout and contents.
func NewFlexBox(layout string, contents ...messaging_api.FlexComponentInterface) *FlexBox {
	return &FlexBox{&messaging_api.FlexBox{
		Layout:   messaging_api.FlexBoxLAYOUT(layout),
		Contents: contents,
	}}
}

// WithSpacing sets the spacing between components.
func (b *FlexBox) WithSpacing(spacing string) *FlexBox {
	b.Spacing = spacing
	return b
}

// WithMargin sets the margin of the box.
func (b *FlexBox) WithMargin(margin string) *FlexBox {
	b.Margin = margin
	return b
}

// WithPaddingAll sets the padding on every side.
func (b *FlexBox) WithPaddingAll(padding string) *FlexBox {
	b.PaddingAll = padding
	return b
}

// WithBackgroundColor sets the background color.
func (b *FlexBox) WithBackgroundColor(color string) *FlexBox {
	b.BackgroundColor = color
	return b
}

// FlexText wraps messaging_api.FlexText with a fluent API.
type FlexText struct {
	*messaging_api.FlexText
}

// NewFlexText creates a text component. LINE rejects empty text, so an
// empty string is replaced by a space.
func NewFlexText(text string) *FlexText {
	if text == "" {
		text = " "
	}
	return &FlexText{&messaging_api.FlexText{Text: text}}
}

// WithWeight sets the font weight (regular/bold).
func (t *FlexText) WithWeight(weight string) *FlexText {
	t.Weight = messaging_api.FlexTextWEIGHT(weight)
	return t
}

// WithSize sets the font size.
func (t *FlexText) WithSize(size string) *FlexText {
	t.Size = size
	return t
}

// WithColor sets the font color.
func (t *FlexText) WithColor(color string) *FlexText {
	t.Color = color
	return t
}

// WithWrap enables wrapping.
func (t *FlexText) WithWrap(wrap bool) *FlexText {
	t.Wrap = wrap
	return t
}

// WithMargin sets the margin.
func (t *FlexText) WithMargin(margin string) *FlexText {
	t.Margin = margin
	return t
}

// WithLineSpacing sets the line spacing of wrapped text.
func (t *FlexText) WithLineSpacing(spacing string) *FlexText {
	t.LineSpacing = spacing
	return t
}

// FlexButton wraps messaging_api.FlexButton with a fluent API.
type FlexButton struct {
	*messaging_api.FlexButton
}

// NewFlexButton creates a button for action.
func NewFlexButton(action messaging_api.ActionInterface) *FlexButton {
	return &FlexButton{&messaging_api.FlexButton{Action: action}}
}

// WithStyle sets the button style (link/primary/secondary).
func (b *FlexButton) WithStyle(style string) *FlexButton {
	b.Style = messaging_api.FlexButtonSTYLE(style)
	return b
}

// WithColor sets the button color.
func (b *FlexButton) WithColor(color string) *FlexButton {
	b.Color = color
	return b
}

// WithHeight sets the button height (sm/md).
func (b *FlexButton) WithHeight(height string) *FlexButton {
	b.Height = messaging_api.FlexButtonHEIGHT(height)
	return b
}

// NewHeroBox creates the green title band used on top of every card.
func NewHeroBox(title string) *FlexBox {
	return NewFlexBox("vertical",
		NewFlexText(title).WithWeight("bold").WithSize("lg").WithColor(ColorHeroText).WithWrap(true).FlexText,
	).WithBackgroundColor(ColorHeroBg).WithPaddingAll(SpacingL)
}

// NewButtonFooter stacks buttons vertically, one per row.
func NewButtonFooter(buttons ...*FlexButton) *FlexBox {
	contents := make([]messaging_api.FlexComponentInterface, 0, len(buttons))
	for _, b := range buttons {
		if b != nil {
			contents = append(contents, b.FlexButton)
		}
	}
	return NewFlexBox("vertical", contents...).WithSpacing("sm")
}

// TruncateRunes cuts text to maxRunes runes, ending with "..." when cut.
func TruncateRunes(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
