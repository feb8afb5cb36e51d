package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// MailtrapSender sends through the Mailtrap send API.
type MailtrapSender struct {
	URL    string
	APIKey string
	From   Address
	Client *http.Client
}

// NewMailtrapSender creates a sender posting to url with the given API key.
func NewMailtrapSender(url, apiKey string, from Address) *MailtrapSender {
	return &MailtrapSender{URL: url, APIKey: apiKey, From: from, Client: &http.Client{}}
}

type mailtrapRequest struct {
	From     Address   `json:"from"`
	To       []Address `json:"to"`
	Subject  string    `json:"subject"`
	HTML     string    `json:"html,omitempty"`
	Text     string    `json:"text,omitempty"`
	Category string    `json:"category,omitempty"`
}

func (m *MailtrapSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(mailtrapRequest{
		From:     m.From,
		To:       []Address{msg.To},
		Subject:  msg.Subject,
		HTML:     msg.HTML,
		Text:     msg.Text,
		Category: msg.Category,
	})
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("mailtrap API returned status: %d", resp.StatusCode)
	}
	return nil
}
