package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func TestEmail_OneMessageForAllRecipients(t *testing.T) {
	p := NewEmailProvider(EmailConfig{
		Server:   "smtp.example.com",
		Port:     587,
		Username: "user",
		Password: "pass",
		From:     "node@example.com",
		To:       []string{"ops@example.com", "oncall@example.com"},
	})

	var sent []*mail.Msg
	p.send = func(ctx context.Context, msg *mail.Msg) error {
		sent = append(sent, msg)
		return nil
	}

	require.NoError(t, p.Send(context.Background(), testEvent()))
	assert.Len(t, sent, 1)
}

func TestEmail_InvalidAddress(t *testing.T) {
	p := NewEmailProvider(EmailConfig{From: "not an address", To: []string{"ops@example.com"}})
	p.send = func(ctx context.Context, msg *mail.Msg) error {
		t.Fatal("send must not be called")
		return nil
	}

	assert.Error(t, p.Send(context.Background(), testEvent()))
}
