package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"

	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/metrics"
)

//go:embed templates/*
var templateFS embed.FS

const (
	SubjectConfirm      = "Confirm your account"
	SubjectReset        = "Reset your password"
	SubjectAdminWelcome = "Welcome to Advanced Programming Administration"
)

// Composer renders the account emails and hands them to a Mailer
type Composer struct {
	mailer  Mailer
	tokens  *auth.EmailTokens
	baseURL *url.URL
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

// NewComposer parses the embedded templates. Links in mails point at frontendURL.
func NewComposer(mailer Mailer, tokens *auth.EmailTokens, frontendURL string) (*Composer, error) {
	base, err := url.Parse(frontendURL)
	if err != nil {
		return nil, fmt.Errorf("parse frontend url: %w", err)
	}
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, err
	}
	return &Composer{mailer: mailer, tokens: tokens, baseURL: base, html: html, text: text}, nil
}

func (c *Composer) link(path, token string) string {
	u := c.baseURL.JoinPath(path)
	if token != "" {
		q := u.Query()
		q.Set("t", token)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Composer) send(ctx context.Context, name, to, toName, subject string, data any) error {
	var html, text bytes.Buffer
	if err := c.html.ExecuteTemplate(&html, name+".html", data); err != nil {
		return fmt.Errorf("render %s.html: %w", name, err)
	}
	if err := c.text.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return fmt.Errorf("render %s.txt: %w", name, err)
	}

	err := c.mailer.Send(ctx, Message{
		To:       to,
		ToName:   toName,
		Subject:  subject,
		Text:     text.String(),
		HTML:     html.String(),
		Template: name,
	})
	metrics.EmailsSentTotal.WithLabelValues(name, metrics.Outcome(err)).Inc()
	return err
}

// SendConfirmation mails a link that confirms the student's address
func (c *Composer) SendConfirmation(ctx context.Context, email, name string) error {
	token, err := c.tokens.Issue(auth.PurposeConfirm, email, "", auth.ConfirmTokenTTL)
	if err != nil {
		return err
	}
	return c.send(ctx, "confirm", email, name, SubjectConfirm, map[string]string{
		"UserName": name,
		"URL":      c.link("confirm", token),
	})
}

// SendPasswordReset mails a reset link bound to the current password hash
func (c *Composer) SendPasswordReset(ctx context.Context, email, name, passwordHash string) error {
	token, err := c.tokens.Issue(auth.PurposeReset, email, auth.Fingerprint(passwordHash), auth.ResetTokenTTL)
	if err != nil {
		return err
	}
	return c.send(ctx, "reset", email, name, SubjectReset, map[string]string{
		"UserName": name,
		"URL":      c.link("password-reset", token),
	})
}

// SendAdminWelcome mails a new admin their initial password
func (c *Composer) SendAdminWelcome(ctx context.Context, email, name, password string) error {
	return c.send(ctx, "admin_welcome", email, name, SubjectAdminWelcome, map[string]string{
		"UserName": name,
		"Email":    email,
		"Password": password,
		"URL":      c.link("admin", ""),
	})
}
