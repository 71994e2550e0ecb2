package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client sends reminder notifications to registered Telegram chats through
// the Bot API's sendMessage endpoint.
type Client struct {
	api *tgbotapi.BotAPI
}

// New validates the bot token against the API, so a misconfigured token fails
// the process at startup rather than on the first due reminder. The HTTP
// client carries its own timeout so one unreachable API call cannot stall a
// cycle.
func New(token string, timeout time.Duration) (*Client, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := c.api.Send(msg)
	return err
}
