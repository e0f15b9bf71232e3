package imapstore

import "time"

// Envelope holds the parsed envelope data from an IMAP message.
type Envelope struct {
	MessageID string
	Subject   string
	From      string // display form, "Name <addr>" when a name exists
	FromAddr  string // bare address, used as the reply recipient
	Date      time.Time
	UID       uint32
}

// ParsedMessage holds the content of a fetched message.
type ParsedMessage struct {
	Envelope Envelope
	TextBody string
	HTMLBody string
}

// SMTPConfig holds the SMTP server settings for sending replies.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}
