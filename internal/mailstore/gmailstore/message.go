package gmailstore

import (
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// headerValue returns the named header from the message payload.
// Gmail header names are matched case-insensitively.
func headerValue(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, h := range payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody walks the MIME part tree and returns the decoded
// text/plain and text/html bodies, keeping the first of each found.
func extractBody(payload *gmail.MessagePart) (textBody, htmlBody string) {
	if payload == nil {
		return "", ""
	}

	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := decodeBody(payload.Body.Data); err == nil {
			switch {
			case strings.HasPrefix(payload.MimeType, "text/plain"):
				textBody = string(decoded)
			case strings.HasPrefix(payload.MimeType, "text/html"):
				htmlBody = string(decoded)
			}
		}
	}

	for _, part := range payload.Parts {
		text, html := extractBody(part)
		if textBody == "" {
			textBody = text
		}
		if htmlBody == "" {
			htmlBody = html
		}
	}

	return textBody, htmlBody
}

// decodeBody decodes Gmail's base64url body data, which arrives both
// with and without padding.
func decodeBody(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}

// senderAddress pulls the bare address out of a From header value.
func senderAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	return addr.Address
}

// buildReplyRaw composes the RFC 2822 reply message for the raw send
// endpoint. messageID is the original's Message-ID header value,
// angle brackets included, or "" when unknown.
func buildReplyRaw(to, subject, messageID, body string) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	if messageID != "" {
		msg.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", messageID))
		msg.WriteString(fmt.Sprintf("References: %s\r\n", messageID))
	}
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return msg.String()
}
