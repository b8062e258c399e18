// Package email implements the C5 composer and sender: pure message
// construction plus a thin HTTP transport over a Resend-compatible
// transactional mail API. The HTTP client shape is grounded on the
// net/http directly, no SDK wrapper.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"dashboard-gateway/internal/config"
)

// Message is a composed email payload.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// ConfirmationParams carries the fields needed to compose a device
// confirmation email.
type ConfirmationParams struct {
	RecipientName string
	DeviceName    string
	IP            string
	Locale        string
	Timezone      string
	ConfirmLink   string
}

// ComposeConfirmation builds the "confirm this device" email.
func ComposeConfirmation(p ConfirmationParams) Message {
	subject := "Confirme seu novo dispositivo"
	text := fmt.Sprintf(
		"Olá %s,\n\nDetectamos um novo acesso do dispositivo \"%s\" (IP %s, %s/%s).\n"+
			"Para confirmar este acesso, abra o link abaixo:\n%s\n\n"+
			"Se não foi você, ignore este email.",
		p.RecipientName, p.DeviceName, p.IP, p.Locale, p.Timezone, p.ConfirmLink,
	)
	html := fmt.Sprintf(
		`<p>Olá %s,</p><p>Detectamos um novo acesso do dispositivo <b>%s</b> (IP %s, %s/%s).</p>`+
			`<p><a href="%s">Confirmar dispositivo</a></p><p>Se não foi você, ignore este email.</p>`,
		p.RecipientName, p.DeviceName, p.IP, p.Locale, p.Timezone, p.ConfirmLink,
	)
	return Message{Subject: subject, HTML: html, Text: text}
}

// LoginNotificationParams carries the fields needed to compose a
// post-confirmation or repeat-login notification email.
type LoginNotificationParams struct {
	RecipientName string
	DeviceName    string
	IP            string
	Locale        string
	Timezone      string
	EventTime     time.Time
}

// ComposeLoginNotification builds the "new login" notification email sent
// after a device transitions to approved, or on a subsequent known-device
// login.
func ComposeLoginNotification(p LoginNotificationParams) Message {
	subject := "Novo acesso à sua conta"
	when := p.EventTime.Format("2006-01-02 15:04:05")
	text := fmt.Sprintf(
		"Olá %s,\n\nRegistramos um acesso do dispositivo \"%s\" em %s (IP %s, %s/%s).",
		p.RecipientName, p.DeviceName, when, p.IP, p.Locale, p.Timezone,
	)
	html := fmt.Sprintf(
		`<p>Olá %s,</p><p>Registramos um acesso do dispositivo <b>%s</b> em %s (IP %s, %s/%s).</p>`,
		p.RecipientName, p.DeviceName, when, p.IP, p.Locale, p.Timezone,
	)
	return Message{Subject: subject, HTML: html, Text: text}
}

// Sender delivers a Message over an HTTP transactional mail API.
type Sender struct {
	apiKey string
	from   string
	url    string
	client *http.Client
}

// NewSender constructs a Sender from email configuration. An empty apiKey
// or from address is tolerated: Send will log a warning and return false
// rather than fail the caller.
func NewSender(cfg config.EmailConfig) *Sender {
	return &Sender{
		apiKey: cfg.APIKey,
		from:   cfg.From,
		url:    "https://api.resend.com/emails",
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type sendRequest struct {
	From    string `json:"from"`
	To      []string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Send delivers msg to to. Missing credentials are not an error from the
// caller's point of view: it logs a warning and returns false.
func (s *Sender) Send(ctx context.Context, to string, msg Message) bool {
	if s.apiKey == "" || s.from == "" {
		log.Printf("email: WARN missing credentials, not sending %q to %s", msg.Subject, to)
		return false
	}

	body, err := json.Marshal(sendRequest{
		From:    s.from,
		To:      []string{to},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		log.Printf("email: ERROR marshal request: %v", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("email: ERROR build request: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("email: ERROR send to %s: %v", to, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("email: ERROR provider returned status %d for %s", resp.StatusCode, to)
		return false
	}
	return true
}
