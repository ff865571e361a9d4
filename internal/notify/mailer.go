package notify

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/feedbase/feedbase/internal/queue"
)

// Sender delivers transactional mail. The default implementation logs the
// message; the SMTP relay sits behind this in deployment.
type Sender interface {
	Send(to, subject, body string) error
}

type LogSender struct{ Log *zap.Logger }

func (s LogSender) Send(to, subject, body string) error {
	s.Log.Info("mail out", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}

// Mailer turns queue events into mail.
type Mailer struct {
	Sender Sender
	Log    *zap.Logger
}

// Handle is the consumer callback: dispatch on routing key. Unknown keys are
// acked so the broker stops redelivering them.
func (m *Mailer) Handle(key string, body []byte) error {
	switch key {
	case queue.KeyMagicLinkIssued:
		var ev queue.MagicLinkIssued
		if err := json.Unmarshal(body, &ev); err != nil {
			m.Log.Error("bad magiclink payload", zap.Error(err))
			return nil
		}
		return m.Sender.Send(ev.Email, "Sign in to Feedbase",
			fmt.Sprintf("Click the link to sign in: %s\r\nIf you didn't request this email, you can safely ignore it.", ev.Link))
	case queue.KeyPremiumActivated:
		var ev queue.PremiumActivated
		if err := json.Unmarshal(body, &ev); err != nil {
			m.Log.Error("bad premium payload", zap.Error(err))
			return nil
		}
		return m.Sender.Send(ev.Email, "Your subscription is active",
			"Thanks for subscribing! Premium features are now unlocked on your account.")
	default:
		m.Log.Info("ignoring event", zap.String("key", key))
		return nil
	}
}
