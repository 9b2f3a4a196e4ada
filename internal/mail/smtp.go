package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
)

// SMTPMailer sends OTP mail over implicit TLS (port 465 style). One
// connection per message; the dispatcher keeps send volume low enough that
// pooling is not worth the complexity.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, username: username, password: password, from: from}
}

func (m *SMTPMailer) SendOTP(ctx context.Context, msg OTPMessage) error {
	payload := []byte(
		fmt.Sprintf("From: %s\r\n", m.from) +
			fmt.Sprintf("To: %s\r\n", msg.To) +
			fmt.Sprintf("Subject: %s\r\n", subjectFor(msg.Purpose)) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			htmlBody(msg),
	)

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: m.host}}
	conn, err := dialer.DialContext(ctx, "tcp", m.host+":"+m.port)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(m.username); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return nil
}
