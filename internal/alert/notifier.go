package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	MessageSent   = "Email sent, help should be arriving soon"
	MessageFailed = "I could not send the alert"
	MessageAsk    = "Who should the emergency email be sent to?"
)

// Notifier sends emergency mail, retrying exactly once.
type Notifier struct {
	mailer     Mailer
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewNotifier(mailer Mailer, retryDelay time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if retryDelay < 0 {
		retryDelay = 0
	}
	return &Notifier{
		mailer:     mailer,
		retryDelay: retryDelay,
		logger:     logger.With("component", "notifier"),
	}
}

// Notify returns the number of attempts made alongside the final error.
func (n *Notifier) Notify(ctx context.Context, to, body string) (int, error) {
	if strings.TrimSpace(to) == "" {
		return 0, ErrNoRecipient
	}

	err := n.mailer.Send(ctx, to, body)
	if err == nil {
		n.logger.Info("alert sent", "to", to)
		return 1, nil
	}
	n.logger.Warn("alert failed, retrying", "to", to, "error", err)

	if n.retryDelay > 0 {
		select {
		case <-time.After(n.retryDelay):
		case <-ctx.Done():
			return 1, ctx.Err()
		}
	}

	if err := n.mailer.Send(ctx, to, body); err != nil {
		n.logger.Error("alert failed", "to", to, "error", err)
		return 2, fmt.Errorf("send alert after retry: %w", err)
	}
	n.logger.Info("alert sent on retry", "to", to)
	return 2, nil
}

// Body composes the alert text around the latest known surroundings.
func Body(scene string, at time.Time) string {
	var b strings.Builder
	b.WriteString("I need help! Please come to me quickly.\n")
	b.WriteString("Sent at " + at.Format(time.RFC1123) + ".\n")
	if scene = strings.TrimSpace(scene); scene != "" {
		b.WriteString("My surroundings were last described as: " + scene + "\n")
	}
	return b.String()
}
