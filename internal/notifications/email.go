package notifications

import (
	"fmt"
	"net/smtp"
	"strings"
)

// EmailConfig configuration for SMTP delivery.
type EmailConfig struct {
	SMTPHost    string `json:"smtp_host"`
	SMTPPort    int    `json:"smtp_port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name"`
}

// Mailer sends a rendered email to one recipient.
type Mailer interface {
	Send(to, subject, body string) error
}

type smtpMailer struct {
	config EmailConfig
}

func NewSMTPMailer(config EmailConfig) Mailer {
	return &smtpMailer{config: config}
}

func (m *smtpMailer) Send(to, subject, body string) error {
	if m.config.SMTPHost == "" {
		return fmt.Errorf("smtp host not configured")
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", m.config.FromName, m.config.FromAddress))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.SMTPHost)
	addr := fmt.Sprintf("%s:%d", m.config.SMTPHost, m.config.SMTPPort)
	return smtp.SendMail(addr, auth, m.config.FromAddress, []string{to}, []byte(msg.String()))
}

// renderTemplate substitutes {{key}} placeholders from vars.
func renderTemplate(text string, vars map[string]string) string {
	for key, value := range vars {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}
