package notifier

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/LavaJover/shvark-settlement-service/internal/config"
	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer delivers notifications over SMTP.
type SMTPMailer struct {
	from    string
	dialer  dialer
	timeout time.Duration
	logger  *zap.Logger
}

const defaultSendTimeout = 30 * time.Second

func NewSMTPMailer(cfg config.Mail, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		from:    cfg.From,
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		timeout: cfg.SendTimeout,
		logger:  logger.With(zap.String("component", "smtp_mailer")),
	}
}

// Send blocks until the SMTP exchange finishes or the mailer's own send
// timeout expires. Cancelling ctx does not abandon a send in progress: gomail
// cannot abort one, and reporting it failed would get the mail sent twice.
func (m *SMTPMailer) Send(ctx context.Context, n *domain.Notification) error {
	if n.To == "" {
		return fmt.Errorf("notification %q has no recipient", n.Subject)
	}
	msg := m.build(n)

	timeout := m.timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.dialer.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", n.To, err)
		}
		m.logger.Info("mail sent",
			zap.String("to", n.To),
			zap.String("subject", n.Subject),
			zap.Int("attachments", len(n.Attachments)),
		)
		return nil
	}
}

func (m *SMTPMailer) build(n *domain.Notification) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", n.To)
	msg.SetHeader("Subject", n.Subject)
	msg.SetBody("text/html", n.HTMLBody)

	for _, a := range n.Attachments {
		content := a.Content
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{
				"Content-Type": {a.ContentType},
			}))
		}
		msg.Attach(a.Filename, settings...)
	}
	return msg
}
