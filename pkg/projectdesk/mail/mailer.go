package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shrimpsizemoose/trekker/logger"
	gomail "github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned when mail must be sent but no SMTP server is set up
var ErrNotConfigured = errors.New("mail delivery is not configured")

// Message is a rendered email with a plain text and an HTML part
type Message struct {
	To       string
	ToName   string
	Subject  string
	Text     string
	HTML     string
	Template string
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds the SMTP relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
}

// SMTPMailer sends through an SMTP relay using STARTTLS. The sender address
// is the SMTP username.
type SMTPMailer struct {
	client   *gomail.Client
	fromName string
	fromAddr string
}

// NewSMTPMailer creates a mailer for cfg. No connection is made until Send.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPMailer{client: client, fromName: cfg.FromName, fromAddr: cfg.Username}, nil
}

// messageID builds "<uuid>@<sender domain>"; go-mail adds the angle brackets
func messageID(fromAddr string) string {
	domain := "localhost"
	if at := strings.LastIndex(fromAddr, "@"); at >= 0 && at < len(fromAddr)-1 {
		domain = fromAddr[at+1:]
	}
	return uuid.NewString() + "@" + domain
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out := gomail.NewMsg()
	if err := out.FromFormat(m.fromName, m.fromAddr); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if err := out.AddToFormat(msg.ToName, msg.To); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetMessageIDWithValue(messageID(m.fromAddr))
	out.SetDate()
	out.SetBodyString(gomail.TypeTextPlain, msg.Text)
	out.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)

	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogMailer stands in when SMTP is not configured. With Accept set it
// pretends delivery worked, otherwise it fails with ErrNotConfigured.
type LogMailer struct {
	Accept bool
}

func (l LogMailer) Send(_ context.Context, msg Message) error {
	logger.Info.Printf("Mail %q to %s not delivered: SMTP is not configured", msg.Subject, msg.To)
	if l.Accept {
		return nil
	}
	return ErrNotConfigured
}

// Recorder keeps messages in memory
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of what was sent
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent message, if any
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}
