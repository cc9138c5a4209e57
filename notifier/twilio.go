package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"nobroker_watchdog/models"
)

const smsMaxBody = 1600

// TwilioChannel sends alerts as SMS through the Twilio REST API.
type TwilioChannel struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string // E.164
	Client     *http.Client
	BaseURL    string // overridable for tests
}

func NewTwilioChannel(client *http.Client, accountSID, authToken, from, to string) *TwilioChannel {
	return &TwilioChannel{
		AccountSID: accountSID,
		AuthToken:  authToken,
		From:       from,
		To:         to,
		Client:     client,
		BaseURL:    "https://api.twilio.com",
	}
}

func (c *TwilioChannel) Name() string { return "SMS" }

func (c *TwilioChannel) Send(ctx context.Context, payload *models.AlertPayload) error {
	body := payload.Text()
	if len(body) > smsMaxBody {
		body = body[:smsMaxBody]
	}

	form := url.Values{}
	form.Set("From", c.From)
	form.Set("To", c.To)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.BaseURL, c.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.AccountSID, c.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
