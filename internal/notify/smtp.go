package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sitewatch/sitewatch/internal/detect"
)

// SMTPConfig holds the outbound mail settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
}

// EmailNotifier sends change notifications over SMTP.
type EmailNotifier struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier constructs an EmailNotifier.
func NewEmailNotifier(cfg SMTPConfig) (*EmailNotifier, error) {
	if cfg.Host == "" || cfg.Recipient == "" {
		return nil, fmt.Errorf("smtp host and recipient must be set")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &EmailNotifier{cfg: cfg, send: smtp.SendMail}, nil
}

// Notify sends one email summarizing the batch.
func (n *EmailNotifier) Notify(_ context.Context, target string, changes []detect.Change) error {
	if len(changes) == 0 {
		return nil
	}
	subject := fmt.Sprintf("Website Changes Detected - %s", target)
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", n.cfg.Recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(renderBody(target, changes))

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if err := n.send(addr, auth, n.cfg.From, []string{n.cfg.Recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
