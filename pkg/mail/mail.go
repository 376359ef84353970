// Package mail builds and delivers email.
//
//	msg, err := mail.To(user.Email).
//	    Subject("Código de verificación").
//	    Template(codeTmpl, data).
//	    Build()
//	if err == nil {
//	    err = mailer.Send(ctx, msg)
//	}
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/leppupy/config"
	"github.com/shashiranjanraj/leppupy/pkg/logger"
)

// ErrNotConfigured is returned when no SMTP credentials are set.
var ErrNotConfigured = errors.New("mail: MAIL_USERNAME not configured")

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Message is a rendered email.
type Message struct {
	To          []string
	Subject     string
	Body        string
	HTML        bool
	Attachments []Attachment
}

// Attachment is an in-memory file.
type Attachment struct {
	Name    string
	Content []byte
}

// ─── Builder ──────────────────────────────────────────────────────────────────

// Builder assembles a Message fluently.
type Builder struct {
	m   Message
	err error
}

// To starts a message for the given recipients.
func To(addresses ...string) *Builder {
	return &Builder{m: Message{To: addresses, HTML: true}}
}

func (b *Builder) Subject(s string) *Builder {
	b.m.Subject = s
	return b
}

// Body sets an HTML body.
func (b *Builder) Body(html string) *Builder {
	b.m.Body, b.m.HTML = html, true
	return b
}

// Text sets a plain-text body.
func (b *Builder) Text(text string) *Builder {
	b.m.Body, b.m.HTML = text, false
	return b
}

// Template renders tmpl with data as the HTML body.
func (b *Builder) Template(tmpl *template.Template, data any) *Builder {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		b.err = fmt.Errorf("mail: render %s: %w", tmpl.Name(), err)
		return b
	}
	b.m.Body, b.m.HTML = buf.String(), true
	return b
}

func (b *Builder) Attach(name string, content []byte) *Builder {
	b.m.Attachments = append(b.m.Attachments, Attachment{Name: name, Content: content})
	return b
}

// Build returns the message or the first render error.
func (b *Builder) Build() (Message, error) { return b.m, b.err }

// ─── SMTP ─────────────────────────────────────────────────────────────────────

// SMTP holds connection settings.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SMTPFromConfig reads MAIL_* settings.
func SMTPFromConfig() SMTP {
	return SMTP{
		Host:     config.Get("MAIL_HOST", "smtp.gmail.com"),
		Port:     config.Get("MAIL_PORT", "587"),
		Username: config.Get("MAIL_USERNAME", ""),
		Password: config.Get("MAIL_PASSWORD", ""),
		From:     config.Get("MAIL_FROM", "ventas@leppupy.mx"),
		FromName: config.Get("MAIL_FROM_NAME", "Leppupy"),
	}
}

// SMTPSender delivers over SMTP: implicit TLS on 465, STARTTLS otherwise.
type SMTPSender struct {
	cfg SMTP
}

func NewSMTPSender(cfg SMTP) *SMTPSender { return &SMTPSender{cfg: cfg} }

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	cfg := s.cfg
	if cfg.Username == "" {
		return ErrNotConfigured
	}
	raw := m.raw(cfg, time.Now())
	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)

	d := net.Dialer{Timeout: 10 * time.Second}
	var conn net.Conn
	var err error
	if cfg.Port == "465" {
		conn, err = tls.DialWithDialer(&d, "tcp", addr, &tls.Config{ServerName: cfg.Host})
	} else {
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: handshake: %w", err)
	}
	defer c.Close()

	if cfg.Port != "465" {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
				return fmt.Errorf("mail: starttls: %w", err)
			}
		}
	}
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("mail: auth: %w", err)
	}
	if err := c.Mail(cfg.From); err != nil {
		return err
	}
	for _, rcpt := range m.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("mail: rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// raw renders m as an RFC 5322 message.
func (m Message) raw(cfg SMTP, now time.Time) []byte {
	contentType := "text/plain"
	if m.HTML {
		contentType = "text/html"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("UTF-8", cfg.FromName), cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")

	if len(m.Attachments) == 0 {
		fmt.Fprintf(&b, "Content-Type: %s; charset=\"UTF-8\"\r\n\r\n", contentType)
		b.WriteString(m.Body)
		return []byte(b.String())
	}

	boundary := uuid.NewString()
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: %s; charset=\"UTF-8\"\r\n\r\n%s\r\n", boundary, contentType, m.Body)
	for _, a := range m.Attachments {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		b.WriteString("Content-Type: application/octet-stream\r\n")
		b.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n\r\n", a.Name)
		enc := base64.StdEncoding.EncodeToString(a.Content)
		for len(enc) > 76 {
			b.WriteString(enc[:76] + "\r\n")
			enc = enc[76:]
		}
		b.WriteString(enc + "\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// ─── Log sender ───────────────────────────────────────────────────────────────

// LogSender only logs the message. Used when SMTP is not configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, m Message) error {
	logger.WithCtx(ctx).Info("mail: not sent, SMTP not configured",
		"to", strings.Join(m.To, ","), "subject", m.Subject)
	return nil
}

// FromConfig returns an SMTPSender when MAIL_USERNAME is set, otherwise a
// LogSender.
func FromConfig() Sender {
	cfg := SMTPFromConfig()
	if cfg.Username == "" {
		return LogSender{}
	}
	return NewSMTPSender(cfg)
}
