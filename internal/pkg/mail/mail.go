// Package mail is the outbound email transport. Production sends via SMTP or
// the Resend API; development records messages in the email log instead of
// delivering them.
package mail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/taskflow/core/internal/config"
	"github.com/taskflow/core/internal/pkg/applog"
)

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers email messages.
type Sender interface {
	Send(msg Message) error
}

// FromConfig picks the transport. Mail disabled or development mode gets the
// log-only sender; otherwise Resend wins over SMTP when an API key is set.
func FromConfig(cfg *config.AppConfig, logger *zap.Logger) (Sender, error) {
	if !cfg.Mail.Enable || cfg.IsDev() {
		w, err := applog.NewWriter(cfg.Paths.Logs, applog.EmailLog, cfg.RotateSize(), cfg.RotateKeep())
		if err != nil {
			return nil, err
		}
		return NewLogSender(w, logger), nil
	}
	if cfg.Mail.Resend.APIKey != "" {
		return NewResendSender(cfg.Mail.Resend.APIKey, cfg.Mail.From), nil
	}
	return NewSMTPSender(cfg.Mail.SMTP, cfg.Mail.From, cfg.Mail.ReplyTo), nil
}

// SMTPSender delivers via an SMTP relay.
type SMTPSender struct {
	dialer  *gomail.Dialer
	from    string
	replyTo string
}

func NewSMTPSender(smtp config.SMTPConfig, from, replyTo string) *SMTPSender {
	port := smtp.Port
	if port == 0 {
		port = 587
	}
	sender := from
	if sender == "" {
		sender = smtp.User
	}
	return &SMTPSender{
		dialer:  gomail.NewDialer(smtp.Host, port, smtp.User, smtp.Pass),
		from:    sender,
		replyTo: replyTo,
	}
}

func (s *SMTPSender) Send(msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mail: no recipients")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	if s.replyTo != "" {
		m.SetHeader("Reply-To", s.replyTo)
	}
	m.SetBody("text/html", msg.HTML)
	return s.dialer.DialAndSend(m)
}

// ResendSender delivers via the Resend HTTP API.
type ResendSender struct {
	apiKey string
	from   string
	client *http.Client
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *ResendSender) Send(msg Message) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"from":    s.from,
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	})

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("mail: resend error %d: %s", resp.StatusCode, errResp.Message)
	}
	return nil
}

// LogSender records messages in the email log for inspection instead of
// delivering them. Verification links end up readable in plain text, which is
// how subscriptions are confirmed in development.
type LogSender struct {
	w      *applog.Writer
	logger *zap.Logger
}

func NewLogSender(w *applog.Writer, logger *zap.Logger) *LogSender {
	return &LogSender{w: w, logger: logger}
}

func (s *LogSender) Send(msg Message) error {
	var entry strings.Builder
	fmt.Fprintf(&entry, "%s - email recorded (not delivered)\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&entry, "To: %s\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&entry, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&entry, "Body: %s\n", msg.HTML)
	entry.WriteString("----------------------------------------\n")

	if _, err := s.w.Write([]byte(entry.String())); err != nil {
		return err
	}
	s.logger.Info("email recorded in log",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("log", s.w.Path()),
	)
	return nil
}
