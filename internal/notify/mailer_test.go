package notify_test

import (
	"encoding/json"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/feedbase/feedbase/internal/notify"
	"github.com/feedbase/feedbase/internal/queue"
)

type capturingSender struct {
	to, subject, body string
	calls             int
}

func (s *capturingSender) Send(to, subject, body string) error {
	s.to, s.subject, s.body = to, subject, body
	s.calls++
	return nil
}

func TestHandleMagicLink(t *testing.T) {
	s := &capturingSender{}
	m := &notify.Mailer{Sender: s, Log: zap.NewNop()}

	body, _ := json.Marshal(queue.MagicLinkIssued{
		Email: "u@example.com",
		Link:  "http://localhost:8080/api/auth/callback?token=abc",
	})
	if err := m.Handle(queue.KeyMagicLinkIssued, body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if s.to != "u@example.com" || !strings.Contains(s.body, "token=abc") {
		t.Fatalf("mail: to=%q body=%q", s.to, s.body)
	}
}

func TestHandlePremiumActivated(t *testing.T) {
	s := &capturingSender{}
	m := &notify.Mailer{Sender: s, Log: zap.NewNop()}

	body, _ := json.Marshal(queue.PremiumActivated{UserID: primitive.NewObjectID(), Email: "p@example.com"})
	if err := m.Handle(queue.KeyPremiumActivated, body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if s.to != "p@example.com" || !strings.Contains(s.subject, "subscription") {
		t.Fatalf("mail: to=%q subject=%q", s.to, s.subject)
	}
}

// Unknown keys and broken payloads ack (return nil) so the broker does not
// redeliver them forever.
func TestHandleAcksJunk(t *testing.T) {
	s := &capturingSender{}
	m := &notify.Mailer{Sender: s, Log: zap.NewNop()}

	if err := m.Handle("some.other.key", []byte(`{}`)); err != nil {
		t.Fatalf("unknown key: %v", err)
	}
	if err := m.Handle(queue.KeyMagicLinkIssued, []byte(`{broken`)); err != nil {
		t.Fatalf("broken payload: %v", err)
	}
	if s.calls != 0 {
		t.Fatalf("junk produced %d mails", s.calls)
	}
}
