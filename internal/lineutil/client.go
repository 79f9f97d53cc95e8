package lineutil

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// loadingSeconds is the LINE maximum and matches config.WebhookProcessing.
const loadingSeconds int32 = 60

// Chat wraps the Messaging API calls made around an event: the typing
// indicator and the follower's profile.
type Chat struct {
	api *messaging_api.MessagingApiAPI
}

// NewChat wraps api.
func NewChat(api *messaging_api.MessagingApiAPI) *Chat {
	return &Chat{api: api}
}

// ShowLoading starts the loading animation in chatID.
func (c *Chat) ShowLoading(_ context.Context, chatID string) error {
	if chatID == "" {
		return nil
	}
	_, err := c.api.ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         chatID,
		LoadingSeconds: loadingSeconds,
	})
	if err != nil {
		return fmt.Errorf("show loading animation: %w", err)
	}
	return nil
}

// DisplayName returns the LINE display name of userID.
func (c *Chat) DisplayName(_ context.Context, userID string) (string, error) {
	p, err := c.api.GetProfile(userID)
	if err != nil {
		return "", fmt.Errorf("get profile %s: %w", userID, err)
	}
	return p.DisplayName, nil
}
