package mailer

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("mailer: not configured")

type Config struct {
	Host        string
	Port        int
	User        string
	Pass        string
	FromAddress string
	FromName    string
}

// Message is one outgoing email with HTML and plain-text alternatives.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends emails via SMTP.
type Mailer struct {
	cfg    *Config
	sendFn func(Message) error
}

func New(cfg *Config) *Mailer {
	m := &Mailer{cfg: cfg}
	m.sendFn = m.smtpSend
	return m
}

// Configured reports whether an SMTP host is set.
func (m *Mailer) Configured() bool {
	return m.cfg != nil && m.cfg.Host != ""
}

func (m *Mailer) send(msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mailer: message has no recipients")
	}
	return m.sendFn(msg)
}

func (m *Mailer) smtpSend(msg Message) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}
	return smtp.SendMail(addr, auth, m.cfg.FromAddress, msg.To, []byte(m.formatMessage(msg)))
}

// formatMessage renders msg as a multipart/alternative MIME message.
func (m *Mailer) formatMessage(msg Message) string {
	boundary := newBoundary()
	from := m.cfg.FromAddress
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.cfg.FromName), m.cfg.FromAddress)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	writePart := func(contentType, body string) {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: %s; charset=UTF-8\r\n\r\n", contentType)
		b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
		b.WriteString("\r\n")
	}
	if msg.Text != "" {
		writePart("text/plain", msg.Text)
	}
	if msg.HTML != "" {
		writePart("text/html", msg.HTML)
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}

func newBoundary() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "staffdir-" + hex.EncodeToString(buf)
}
