package notification

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds connection parameters for the SMTP provider. Transport
// credentials are deployment-wide; recipients come from the message.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	FromAddr   string
	Encryption string // "none", "starttls", "ssl_tls"
}

// SMTPProvider delivers notifications via SMTP using the go-mail library.
type SMTPProvider struct {
	config SMTPConfig
}

// NewSMTPProvider creates a new SMTPProvider with the given configuration.
func NewSMTPProvider(config SMTPConfig) *SMTPProvider {
	return &SMTPProvider{config: config}
}

// Name returns the channel identifier.
func (p *SMTPProvider) Name() string { return "email" }

// Send delivers msg to all recipients using the configured SMTP server.
func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(p.config.FromAddr); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}

	added := 0
	for _, r := range msg.To {
		if r == "" {
			continue
		}
		if err := m.To(r); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", r, err)
		}
		added++
	}
	if added == 0 {
		return fmt.Errorf("no recipients for message %q", msg.Subject)
	}

	m.Subject(msg.Subject)

	// Plain-text fallback for clients that don't render HTML.
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	if msg.HTMLBody != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	}

	c, err := mail.NewClient(p.config.Host,
		mail.WithPort(p.config.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(p.config.Username),
		mail.WithPassword(p.config.Password),
		mail.WithTLSPolicy(tlsPolicyFromEncryption(p.config.Encryption)),
	)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	return c.DialAndSendWithContext(ctx, m)
}

// tlsPolicyFromEncryption converts the encryption string to a go-mail TLSPolicy.
func tlsPolicyFromEncryption(enc string) mail.TLSPolicy {
	switch enc {
	case "ssl_tls":
		return mail.TLSMandatory
	case "starttls":
		return mail.TLSOpportunistic
	default:
		return mail.NoTLS
	}
}
