// Package messenger delivers out-of-band notifications: email verification
// codes and invite links.
package messenger

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"github.com/dmitrijs2005/vaultsync/internal/logging"
)

// Message is something that can be rendered as an email.
type Message interface {
	Subject() string
	Body() string
}

type EmailVerificationMessage struct {
	Code string
}

func (m EmailVerificationMessage) Subject() string { return "Your vaultsync verification code" }
func (m EmailVerificationMessage) Body() string {
	return fmt.Sprintf("Your verification code is %s.\r\nIt expires in 15 minutes.", m.Code)
}

type InviteCreatedMessage struct {
	VaultName string
	InvitedBy string
	Link      string
}

func (m InviteCreatedMessage) Subject() string {
	return fmt.Sprintf("You are invited to %q", m.VaultName)
}

func (m InviteCreatedMessage) Body() string {
	return fmt.Sprintf("%s invited you to the vault %q.\r\n\r\nOpen %s and enter the secret they give you separately.",
		m.InvitedBy, m.VaultName, m.Link)
}

type Messenger interface {
	Send(ctx context.Context, email string, msg Message) error
}

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTP sends plain-text mail through an SMTP relay.
type SMTP struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTP) Send(ctx context.Context, email string, msg Message) error {
	if email == "" {
		return fmt.Errorf("recipient email address cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body := fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		email, s.cfg.From, sanitizeHeader(msg.Subject()), msg.Body())

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.sendMail(addr, auth, s.cfg.From, []string{email}, []byte(body)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// Log writes messages to a logger instead of delivering them. Used when
// no SMTP relay is configured.
type Log struct {
	logger logging.Logger
}

func NewLog(l logging.Logger) *Log {
	return &Log{logger: l.With("module", "messenger")}
}

func (l *Log) Send(ctx context.Context, email string, msg Message) error {
	l.logger.Info(ctx, "message", "to", email, "subject", msg.Subject(), "body", msg.Body())
	return nil
}

// Sent is one message captured by a Recorder.
type Sent struct {
	Email   string
	Message Message
}

// Recorder keeps every message in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
}

func (r *Recorder) Send(_ context.Context, email string, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{Email: email, Message: msg})
	return nil
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// LastVerificationCode returns the newest code sent to email.
func (r *Recorder) LastVerificationCode(email string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if m, ok := r.sent[i].Message.(EmailVerificationMessage); ok && r.sent[i].Email == email {
			return m.Code, true
		}
	}
	return "", false
}
