package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"dashboard-gateway/internal/config"
)

func TestComposeConfirmation_IncludesLink(t *testing.T) {
	msg := ComposeConfirmation(ConfirmationParams{
		RecipientName: "Ana",
		DeviceName:    "iPhone de Ana",
		IP:            "203.0.113.5",
		Locale:        "pt-BR",
		Timezone:      "America/Sao_Paulo",
		ConfirmLink:   "https://app.example.com/confirmDevice?token=abc123",
	})
	if !strings.Contains(msg.HTML, "abc123") {
		t.Fatalf("html should contain confirmation token link, got %q", msg.HTML)
	}
	if !strings.Contains(msg.Text, "abc123") {
		t.Fatalf("text should contain confirmation token link, got %q", msg.Text)
	}
	if msg.Subject == "" {
		t.Fatal("expected non-empty subject")
	}
}

func TestComposeLoginNotification_IncludesDeviceName(t *testing.T) {
	msg := ComposeLoginNotification(LoginNotificationParams{
		RecipientName: "Ana",
		DeviceName:    "iPhone de Ana",
		EventTime:     time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
	})
	if !strings.Contains(msg.Text, "iPhone de Ana") {
		t.Fatalf("text should mention device name, got %q", msg.Text)
	}
}

func TestSender_MissingCredentialsReturnsFalse(t *testing.T) {
	s := NewSender(config.EmailConfig{})
	ok := s.Send(context.Background(), "user@example.com", Message{Subject: "x"})
	if ok {
		t.Fatal("expected Send to return false without credentials")
	}
}
