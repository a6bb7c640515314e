package alert

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoRecipient   = errors.New("no emergency recipient")
	ErrNotConfigured = errors.New("smtp is not configured")
)

type Mailer interface {
	Send(ctx context.Context, to, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers plain-text mail. smtp.SendMail upgrades to STARTTLS when
// the server offers it.
type SMTPMailer struct {
	cfg  SMTPConfig
	send sendFunc
	now  func() time.Time
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Subject == "" {
		cfg.Subject = "Emergency alert"
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

func (m *SMTPMailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.From != ""
}

func (m *SMTPMailer) Send(ctx context.Context, to, body string) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrNoRecipient, to)
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := m.message(addr.Address, body)
	server := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.send(server, auth, m.cfg.From, []string{addr.Address}, msg)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SMTPMailer) message(to, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.cfg.From + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + m.cfg.Subject + "\r\n")
	b.WriteString("Date: " + m.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ParseSpokenAddress turns a dictated address such as "jane dot doe at gmail
// dot com" into "jane.doe@gmail.com".
func ParseSpokenAddress(text string) (string, error) {
	words := strings.Fields(strings.ToLower(text))
	var b strings.Builder
	for _, w := range words {
		switch w {
		case "at":
			b.WriteString("@")
		case "dot":
			b.WriteString(".")
		case "underscore":
			b.WriteString("_")
		case "dash", "hyphen":
			b.WriteString("-")
		default:
			b.WriteString(w)
		}
	}

	candidate := strings.Trim(b.String(), ".")
	addr, err := mail.ParseAddress(candidate)
	if err != nil || !strings.Contains(addr.Address, "@") {
		return "", fmt.Errorf("%w: could not parse %q", ErrNoRecipient, text)
	}
	return addr.Address, nil
}
