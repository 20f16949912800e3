package mail

import (
	"context"

	"github.com/go-faster/errors"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// RequireTLS refuses to send without STARTTLS. Otherwise TLS is used
	// when the server offers it.
	RequireTLS bool
	From       Address
}

// SMTP sends messages through an SMTP relay, one connection per message.
type SMTP struct {
	client *gomail.Client
	from   Address
}

// NewSMTP creates an SMTP sender. No connection is made until Send.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	policy := gomail.TLSOpportunistic
	if cfg.RequireTLS {
		policy = gomail.TLSMandatory
	}
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(policy),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create smtp client")
	}
	return &SMTP{client: client, from: cfg.From}, nil
}

// Send delivers msg to to.
func (s *SMTP) Send(ctx context.Context, to Address, msg Message) error {
	m, err := buildMessage(s.from, to, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return errors.Wrapf(err, "send mail to %s", to.Email)
	}
	return nil
}

func buildMessage(from, to Address, msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.FromFormat(from.Name, from.Email); err != nil {
		return nil, errors.Wrap(err, "set from")
	}
	if err := m.AddToFormat(to.Name, to.Email); err != nil {
		return nil, errors.Wrap(err, "set to")
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// Log writes messages to a logger instead of sending them. It is meant for
// development setups without an SMTP relay.
type Log struct {
	lg *zap.Logger
}

// NewLog creates a Log sender.
func NewLog(lg *zap.Logger) *Log {
	return &Log{lg: lg}
}

// Send logs msg.
func (l *Log) Send(_ context.Context, to Address, msg Message) error {
	l.lg.Info("Mail",
		zap.Stringer("to", to),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}
