// Package mailer delivers rendered digests over SMTP as multipart email.
// Each message carries a plain-text part before the HTML part so clients
// without HTML support fall back correctly.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/dcrobot-keen/it-news-mail/internal/digest"
)

// sendFunc matches smtp.SendMail and is swapped out in tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends digest documents to a fixed recipient list.
type Mailer struct {
	host       string
	port       int
	user       string
	password   string
	from       string
	recipients []string
	stripper   *bluemonday.Policy
	send       sendFunc
	logger     *slog.Logger
}

// Options configures a Mailer.
type Options struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	Recipients []string
}

// New builds a Mailer from options.
func New(opts Options, logger *slog.Logger) *Mailer {
	return &Mailer{
		host:       opts.Host,
		port:       opts.Port,
		user:       opts.User,
		password:   opts.Password,
		from:       opts.From,
		recipients: opts.Recipients,
		stripper:   bluemonday.StrictPolicy(),
		send:       smtp.SendMail,
		logger:     logger.With("component", "mailer"),
	}
}

// Deliver renders the document and sends it to every recipient.
func (m *Mailer) Deliver(ctx context.Context, doc digest.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(m.recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	subject := fmt.Sprintf("IT News Digest - %s", doc.Date.Format("2006-01-02"))
	htmlBody := digest.RenderHTML(doc)
	msg, err := m.buildMessage(subject, htmlBody)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	if err := m.send(addr, auth, m.from, m.recipients, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	m.logger.Info("email sent", "subject", subject, "recipients", len(m.recipients))
	return nil
}

// buildMessage assembles a multipart/alternative message. The plain part
// must precede the HTML part; clients treat the last part they understand
// as the preferred one.
func (m *Mailer) buildMessage(subject, htmlBody string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", m.from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(m.recipients, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	buf.WriteString("\r\n")

	plain, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/plain; charset="UTF-8"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := plain.Write([]byte(m.plainText(htmlBody))); err != nil {
		return nil, err
	}

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/html; charset="UTF-8"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	blankLines = regexp.MustCompile(`\n\s*\n`)
	runsOfWS   = regexp.MustCompile(`[ \t]+`)
)

// plainText derives the text fallback from the HTML body.
func (m *Mailer) plainText(htmlBody string) string {
	text := m.stripper.Sanitize(htmlBody)
	text = html.UnescapeString(text)
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = runsOfWS.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
