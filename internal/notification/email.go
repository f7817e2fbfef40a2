package notification

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"
	"time"

	"github.com/smukkama/gridguard/internal/protocol"
	"github.com/smukkama/gridguard/pkg/config"
)

var alertTemplate = template.Must(template.New("alert").Parse(`
Grid Anomaly Detected
=====================

Source Timestamp: {{.Payload.Timestamp}}
Reconstruction Error: {{.Payload.Error}}
Sealed With Key: {{.Payload.KeyID}}
Opened On Trial: {{.Trials}}
Received At: {{.ReceivedAt.Format "2006-01-02 15:04:05 MST"}}

Description:
The anomaly detector scored a telemetry window at {{.Payload.Error}}, above
its configured threshold. The alert was carried encrypted and opened by the
listener with key {{.OpenedWith}}.

Please inspect the feeder telemetry around {{.Payload.Timestamp}}.

---
gridguard notification service
`))

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config *config.SMTPConfig
	send   sendFunc
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg, send: smtp.SendMail}
}

// SendAlert emails a decrypted alert to the configured operator
func (e *EmailNotifier) SendAlert(alert *protocol.DecryptedAlert) error {
	subject := fmt.Sprintf("🚨 Grid anomaly at %s (error %.4g)", alert.Payload.Timestamp, alert.Payload.Error)

	body, err := renderAlert(alert)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	return e.sendEmail(subject, body)
}

func renderAlert(alert *protocol.DecryptedAlert) (string, error) {
	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, alert); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Configured reports whether SMTP credentials are present
func (e *EmailNotifier) Configured() bool {
	return e.config.Username != "" && e.config.Password != ""
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	// Skip sending if SMTP is not configured
	if !e.Configured() {
		fmt.Printf("SMTP not configured, skipping email:\nSubject: %s\n%s\n", subject, body)
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := e.send(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	fmt.Printf("Email sent successfully: %s\n", subject)
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if e.config.Username == "" {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	fmt.Println("SMTP connection test successful")
	return nil
}
