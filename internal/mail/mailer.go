package mail

import (
	"fmt"
	"io"

	"github.com/veloraops/agency-api/internal/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Message is an outbound email, optionally carrying one attachment
type Message struct {
	To      string
	Subject string
	Body    string
	HTML    bool
	// ClientID tags the message headers for support-side threading
	ClientID string
	// AttachmentName and Attachment hold an optional inline document (e.g. an invoice PDF)
	AttachmentName string
	Attachment     []byte
}

// Mailer delivers transactional email over SMTP
type Mailer struct {
	dialer  *gomail.Dialer
	from    string
	enabled bool
	logger  *zap.Logger
}

// NewMailer creates a mailer from configuration. When delivery is disabled
// messages are logged and dropped, which keeps development setups quiet.
func NewMailer(cfg *config.MailConfig, logger *zap.Logger) *Mailer {
	return &Mailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		enabled: cfg.Enabled,
		logger:  logger,
	}
}

// Send delivers one message
func (m *Mailer) Send(msg Message) error {
	if !m.enabled {
		m.logger.Info("mail delivery disabled, dropping message",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
		)
		return nil
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	if msg.ClientID != "" {
		gm.SetHeader("X-Client-Id", msg.ClientID)
	}
	if msg.HTML {
		gm.SetBody("text/html", msg.Body)
	} else {
		gm.SetBody("text/plain", msg.Body)
	}
	if len(msg.Attachment) > 0 {
		gm.Attach(msg.AttachmentName, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(msg.Attachment)
			return err
		}))
	}

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}

	m.logger.Info("mail sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
