package provider

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/wneessen/go-mail"

	"github.com/jonwraymond/maildispatch/email"
)

// SMTPConfig configures an SMTP provider.
type SMTPConfig struct {
	Name     string
	Host     string
	Port     int // Default: 587
	Username string
	Password string
	From     string

	// TLS is one of "mandatory", "opportunistic" or "none".
	// Default: "mandatory"
	TLS string

	// Clock timestamps delivery results.
	// Default: the real clock.
	Clock clockwork.Clock
}

// SMTP delivers messages through an SMTP relay using go-mail.
type SMTP struct {
	config SMTPConfig
}

// NewSMTP creates an SMTP provider.
func NewSMTP(config SMTPConfig) (*SMTP, error) {
	if config.Name == "" {
		config.Name = "smtp"
	}
	if config.Host == "" {
		return nil, fmt.Errorf("%w: smtp host is required", ErrInvalidConfig)
	}
	if config.From == "" {
		return nil, fmt.Errorf("%w: smtp from address is required", ErrInvalidConfig)
	}
	if config.Port <= 0 {
		config.Port = 587
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if _, err := tlsPolicy(config.TLS); err != nil {
		return nil, err
	}
	return &SMTP{config: config}, nil
}

// Name returns the provider name.
func (p *SMTP) Name() string { return p.config.Name }

// Kind returns "smtp".
func (p *SMTP) Kind() string { return "smtp" }

// Send delivers msg as a plain-text email. Extra fields are ignored.
func (p *SMTP) Send(ctx context.Context, msg email.Message) (email.Result, error) {
	m, err := p.buildMsg(msg)
	if err != nil {
		return email.Result{}, err
	}

	policy, _ := tlsPolicy(p.config.TLS)
	opts := []mail.Option{
		mail.WithPort(p.config.Port),
		mail.WithTLSPolicy(policy),
	}
	if p.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(p.config.Username),
			mail.WithPassword(p.config.Password),
		)
	}

	c, err := mail.NewClient(p.config.Host, opts...)
	if err != nil {
		return email.Result{}, fmt.Errorf("failed to create mail client: %w", err)
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return email.Result{}, fmt.Errorf("%w: %s: %w", ErrProviderFailure, p.config.Name, err)
	}

	return p.result(), nil
}

func (p *SMTP) result() email.Result {
	return email.NewResult(p.config.Name, p.config.Clock.Now())
}

func (p *SMTP) buildMsg(msg email.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(p.config.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// tlsPolicy converts the configured TLS mode to a go-mail TLSPolicy.
func tlsPolicy(mode string) (mail.TLSPolicy, error) {
	switch mode {
	case "", "mandatory":
		return mail.TLSMandatory, nil
	case "opportunistic":
		return mail.TLSOpportunistic, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return mail.NoTLS, fmt.Errorf("%w: unknown smtp tls mode %q", ErrInvalidConfig, mode)
	}
}
