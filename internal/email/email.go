package email

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"quality-hub/internal/config"
)

// Service handles email operations
type Service struct {
	config *config.EmailConfig
}

// NewService creates a new email service
func NewService(cfg *config.EmailConfig) *Service {
	return &Service{
		config: cfg,
	}
}

// Notification is the content of one inspection notification mail
type Notification struct {
	RecipientName string
	Subject       string
	Heading       string
	Message       string
	// Details are rendered as a key/value box below the message
	Details []Detail
	// Path is appended to the portal URL for the call-to-action button
	Path string
}

type Detail struct {
	Label string
	Value string
}

var notificationTemplate = template.Must(template.New("notification").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: {{.Color}};">{{.Heading}}</h2>
        {{if .RecipientName}}<p>Hello {{.RecipientName}},</p>{{end}}
        <p>{{.Message}}</p>
        {{if .Details}}
        <div style="background-color: #e3f2fd; border-left: 4px solid #2196f3; padding: 15px; margin: 20px 0;">
            {{range .Details}}<p style="margin: 5px 0;"><strong>{{.Label}}:</strong> {{.Value}}</p>
            {{end}}
        </div>
        {{end}}
        {{if .Link}}
        <div style="text-align: center; margin: 30px 0;">
            <a href="{{.Link}}" style="background-color: #4a90e2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Open inspection</a>
        </div>
        {{end}}
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated notification. Please do not reply.</p>
    </div>
</body>
</html>
`))

// Render produces the HTML body of a notification
func (s *Service) Render(n Notification) (string, error) {
	link := ""
	if n.Path != "" && s.config.PortalURL != "" {
		link = strings.TrimRight(s.config.PortalURL, "/") + "/" + strings.TrimLeft(n.Path, "/")
	}

	color := "#4a90e2"
	if strings.Contains(strings.ToLower(n.Subject), "reject") {
		color = "#e74c3c"
	}

	var buf bytes.Buffer
	err := notificationTemplate.Execute(&buf, struct {
		Notification
		Link  string
		Color string
	}{n, link, color})
	if err != nil {
		return "", fmt.Errorf("failed to render notification email: %w", err)
	}
	return buf.String(), nil
}

// SendNotification renders and sends an inspection notification
func (s *Service) SendNotification(to string, n Notification) error {
	if !s.config.Enabled {
		slog.Debug("Email disabled, skipping notification", "to", to, "subject", n.Subject)
		return nil
	}

	body, err := s.Render(n)
	if err != nil {
		return err
	}
	return s.sendEmail(to, n.Subject, body)
}

// sendEmail sends an email using SMTP
func (s *Service) sendEmail(to, subject, body string) error {
	headers := [][2]string{
		{"From", s.config.SMTPFrom},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var message bytes.Buffer
	for _, h := range headers {
		fmt.Fprintf(&message, "%s: %s\r\n", h[0], h[1])
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := net.JoinHostPort(s.config.SMTPHost, s.config.SMTPPort)
	slog.Debug("Attempting to connect to SMTP server", "address", addr)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		slog.Error("Failed to connect to SMTP server", "address", addr, "error", err)
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func(conn net.Conn) {
		if err := conn.Close(); err != nil {
			slog.Debug("Failed to close SMTP connection", "error", err)
		}
	}(conn)

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		slog.Error("Failed to create SMTP client", "error", err)
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func(client *smtp.Client) {
		if err := client.Close(); err != nil {
			slog.Debug("Failed to close SMTP client", "error", err)
		}
	}(client)

	// Mailpit and similar dev servers accept mail without AUTH
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		_ = client.Auth(auth)
	}

	if err := client.Mail(s.config.SMTPFrom); err != nil {
		slog.Error("Failed to set sender", "from", s.config.SMTPFrom, "error", err)
		return fmt.Errorf("failed to set sender: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		slog.Error("Failed to set recipient", "to", to, "error", err)
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		slog.Error("Failed to initiate data transfer", "error", err)
		return fmt.Errorf("failed to initiate data transfer: %w", err)
	}

	if _, err := wc.Write(message.Bytes()); err != nil {
		_ = wc.Close()
		slog.Error("Failed to write message", "error", err)
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := closeData(wc); err != nil {
		return err
	}

	slog.Info("Email sent successfully", "to", to)
	return nil
}

// closeData finishes the DATA command; the server accepts the message here
func closeData(wc io.WriteCloser) error {
	if err := wc.Close(); err != nil {
		slog.Error("Failed to finish message", "error", err)
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return nil
}
