package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/vietddude/vitality/internal/core/domain"
)

// EmailConfig holds the SMTP settings. Every field is required.
type EmailConfig struct {
	Server   string
	Port     uint16
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration
}

// EmailProvider sends one mail per event to all recipients at once,
// over SMTP with mandatory STARTTLS.
type EmailProvider struct {
	cfg  EmailConfig
	send func(ctx context.Context, msg *mail.Msg) error
}

// NewEmailProvider creates an SMTP provider.
func NewEmailProvider(cfg EmailConfig) *EmailProvider {
	p := &EmailProvider{cfg: cfg}
	p.send = p.dialAndSend
	return p
}

func (p *EmailProvider) Name() string { return "email" }

func (p *EmailProvider) Send(ctx context.Context, ev domain.Event) error {
	msg, err := p.buildMessage(ev)
	if err != nil {
		return err
	}
	return p.send(ctx, msg)
}

func (p *EmailProvider) buildMessage(ev domain.Event) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(p.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(p.cfg.To...); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject(ev.Subject())
	msg.SetBodyString(mail.TypeTextPlain, ev.Body())
	return msg, nil
}

func (p *EmailProvider) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(p.cfg.Server,
		mail.WithPort(int(p.cfg.Port)),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(p.cfg.Username),
		mail.WithPassword(p.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(p.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
