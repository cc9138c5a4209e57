package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"nobroker_watchdog/models"
)

const waMaxBody = 4096

// WhatsAppChannel sends alerts through the WhatsApp Cloud API.
type WhatsAppChannel struct {
	PhoneNumberID string
	AccessToken   string
	To            string // E.164
	Client        *http.Client
	BaseURL       string // overridable for tests
}

func NewWhatsAppChannel(client *http.Client, phoneNumberID, accessToken, to string) *WhatsAppChannel {
	return &WhatsAppChannel{
		PhoneNumberID: phoneNumberID,
		AccessToken:   accessToken,
		To:            to,
		Client:        client,
		BaseURL:       "https://graph.facebook.com/v20.0",
	}
}

func (c *WhatsAppChannel) Name() string { return "WHATSAPP" }

func (c *WhatsAppChannel) Send(ctx context.Context, payload *models.AlertPayload) error {
	body := payload.Text()
	if len(body) > waMaxBody {
		body = body[:waMaxBody]
	}

	reqBody, err := json.Marshal(map[string]any{
		"messaging_product": "whatsapp",
		"to":                c.To,
		"type":              "text",
		"text":              map[string]string{"body": body},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", c.BaseURL, c.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
