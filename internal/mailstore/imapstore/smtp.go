package imapstore

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/mail-triage/internal/mailstore"
)

// sendReply composes a threaded reply to the original message and
// sends it via SMTP.
func sendReply(cfg SMTPConfig, original *ParsedMessage, replyBody string) error {
	to, msg, err := composeReply(cfg, original, replyBody)
	if err != nil {
		return err
	}

	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)

	// Port 465 is implicit TLS; anything else negotiates STARTTLS.
	if cfg.Port == 465 {
		return sendSMTPWithTLS(addr, cfg, to, msg)
	}

	return sendSMTPWithStartTLS(addr, cfg, to, msg)
}

// composeReply builds the RFC 2822 reply message, threaded onto the
// original via In-Reply-To/References when a Message-ID is known.
// Returns the recipient address and the wire-format message.
func composeReply(cfg SMTPConfig, original *ParsedMessage, replyBody string) (string, string, error) {
	to := original.Envelope.FromAddr
	if to == "" {
		return "", "", fmt.Errorf("original message has no sender address to reply to")
	}

	subject := mailstore.ReplySubject(original.Envelope.Subject)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	if original.Envelope.MessageID != "" {
		msg.WriteString(fmt.Sprintf("In-Reply-To: <%s>\r\n", original.Envelope.MessageID))
		msg.WriteString(fmt.Sprintf("References: <%s>\r\n", original.Envelope.MessageID))
	}
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(replyBody)

	return to, msg.String(), nil
}

// sendSMTPWithTLS sends an email over an implicit TLS connection.
func sendSMTPWithTLS(addr string, cfg SMTPConfig, to, body string) error {
	tlsConfig := &tls.Config{ServerName: cfg.Host}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return sendMailViaSMTPClient(client, cfg.From, to, body)
}

// sendSMTPWithStartTLS sends an email using STARTTLS.
func sendSMTPWithStartTLS(addr string, cfg SMTPConfig, to, body string) error {
	conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: cfg.Host}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("SMTP STARTTLS: %w", err)
	}

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return sendMailViaSMTPClient(client, cfg.From, to, body)
}

// sendMailViaSMTPClient sends a message using an already-authenticated
// SMTP client.
func sendMailViaSMTPClient(client *smtp.Client, from, to, body string) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write([]byte(body)); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}
