package main

import (
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Mailer delivers an issued code to an address. Delivery failures never
// roll the code back; the caller reports them and the user can resend.
type Mailer interface {
	SendVerificationCode(to, code string) error
}

type SMTPMailer struct {
	host string
	port string
	user string
	pass string
	from string
}

func NewSMTPMailer(host, port, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, user: user, pass: pass, from: from}
}

func (m *SMTPMailer) SendVerificationCode(to, code string) error {
	var sb strings.Builder
	sb.WriteString("From: " + m.from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: Your Fancy Planties verification code\r\n")
	sb.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(fmt.Sprintf("<p>Your verification code is <b>%s</b>.</p><p>It expires in 10 minutes.</p>", code))

	// auth only when credentials are configured, so MailHog-style dev
	// servers keep working
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}
	addr := net.JoinHostPort(m.host, m.port)
	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(sb.String()))
}

// LogMailer writes the code to the log instead of sending it. Development
// only; never wire it in an environment with real users.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationCode(to, code string) error {
	m.logger.Info("verification code issued", zap.String("to", to), zap.String("code", code))
	return nil
}
