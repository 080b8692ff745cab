package notification

import (
	"context"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
)

// Mailer sends notification emails. Implemented by SMTPMailer; faked in tests.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// Email is a rendered, ready-to-send message.
type Email struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
}

// accent colors per notification type, used by the HTML template.
var accentColors = map[string]string{
	TypeInfo:          "#3B82F6",
	TypeSuccess:       "#10B981",
	TypeWarning:       "#F59E0B",
	TypeError:         "#EF4444",
	TypeAgentComplete: "#8B5CF6",
}

var htmlTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; background-color: #f5f5f5; color: #000; margin: 0; padding: 0; line-height: 1.6; }
    .container { max-width: 600px; margin: 40px auto; padding: 30px; background-color: #fff; border-radius: 8px; }
    .header { border-left: 4px solid {{.AccentColor}}; padding-left: 20px; margin-bottom: 20px; }
    h1 { font-size: 24px; margin: 0 0 10px 0; }
    .message { background-color: #f9fafb; padding: 20px; border-radius: 6px; margin: 20px 0; white-space: pre-wrap; }
    .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #e5e7eb; font-size: 12px; color: #6b7280; text-align: center; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>{{.Title}}</h1></div>
    <p>Hi {{.UserName}},</p>
    <div class="message">{{.Message}}</div>
    <div class="footer"><p>You received this notification from threadview.</p></div>
  </div>
</body>
</html>`))

type templateData struct {
	Title       string
	Message     string
	UserName    string
	AccentColor string
}

// RenderEmail builds the subject and both bodies for a notification.
func RenderEmail(to, title, message, notificationType string) (Email, error) {
	userName := to
	if at := strings.IndexByte(to, '@'); at > 0 {
		userName = to[:at]
	}
	if userName != "" {
		userName = strings.ToUpper(userName[:1]) + userName[1:]
	}

	accent, ok := accentColors[notificationType]
	if !ok {
		accent = accentColors[TypeInfo]
	}

	var html strings.Builder
	err := htmlTemplate.Execute(&html, templateData{
		Title:       title,
		Message:     message,
		UserName:    userName,
		AccentColor: accent,
	})
	if err != nil {
		return Email{}, fmt.Errorf("render email template: %w", err)
	}

	text := fmt.Sprintf("%s\n\n%s\n\n---\nYou received this notification from threadview.", title, message)

	return Email{
		To:       to,
		ToName:   userName,
		Subject:  title,
		HTMLBody: html.String(),
		TextBody: text,
	}, nil
}

// SMTPConfig holds SMTP connection settings. The password comes from the
// secret provider, not from the config file.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type SMTPMailer struct {
	config SMTPConfig
	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if m.config.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	msg := m.buildMessage(email)
	if err := m.send(addr, auth, m.config.From, []string{email.To}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// buildMessage assembles a multipart/alternative MIME message with text and
// HTML parts.
func (m *SMTPMailer) buildMessage(email Email) []byte {
	const boundary = "threadview-alt-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", m.config.FromName), m.config.From)
	fmt.Fprintf(&b, "To: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", email.ToName), email.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(email.TextBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(email.HTMLBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
