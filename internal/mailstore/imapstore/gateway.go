// Package imapstore implements the mail store gateway over plain
// IMAP for reading and label state, with SMTP for outgoing replies.
// Message ids are IMAP UIDs in the configured mailbox.
package imapstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mail-triage/internal/mailstore"
	"github.com/nhle/mail-triage/internal/model"
)

// Gateway implements mailstore.Gateway for IMAP/SMTP mailboxes.
// "Unread" maps to the absence of the \Seen flag.
type Gateway struct {
	client *imapClient
	smtp   SMTPConfig
}

// New creates an IMAP gateway from the given configuration and
// credentials. smtpPassword may equal imapPassword for providers that
// share credentials across both.
func New(cfg model.IMAPConfig, imapPassword, smtpPassword string) *Gateway {
	smtpHost := cfg.SMTPHost
	if smtpHost == "" {
		smtpHost = cfg.Host
	}
	from := cfg.FromAddress
	if from == "" {
		from = cfg.Username
	}

	return &Gateway{
		client: &imapClient{
			host:     cfg.Host,
			port:     cfg.Port,
			mailbox:  cfg.Mailbox,
			username: cfg.Username,
			password: imapPassword,
		},
		smtp: SMTPConfig{
			Host:     smtpHost,
			Port:     cfg.SMTPPort,
			Username: cfg.Username,
			Password: smtpPassword,
			From:     from,
		},
	}
}

// Name returns the gateway identifier.
func (g *Gateway) Name() string { return "imap" }

// ValidateConnection verifies IMAP credentials by connecting,
// authenticating, and selecting the mailbox. Returns the account name
// on success.
func (g *Gateway) ValidateConnection(ctx context.Context) (string, error) {
	client, err := g.client.connect(ctx)
	if err != nil {
		return "", fmt.Errorf("validating IMAP connection: %w", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	return g.client.username, nil
}

// ListUnread returns the UIDs of messages without the \Seen flag,
// capped at max.
func (g *Gateway) ListUnread(ctx context.Context, max int) ([]string, error) {
	uids, err := g.client.listUnseenUIDs(ctx, max)
	if err != nil {
		return nil, fmt.Errorf("listing unread messages: %w", err)
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids, nil
}

// FetchContent fetches one message and normalizes it to sender,
// subject and a plain-text body. The fetch peeks, so reading a message
// here never marks it seen.
func (g *Gateway) FetchContent(ctx context.Context, id string) (*model.Content, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	parsed, err := g.client.fetchMessage(ctx, uid)
	if err != nil {
		return nil, err
	}

	body := parsed.TextBody
	if body == "" && parsed.HTMLBody != "" {
		body = mailstore.StripHTML(parsed.HTMLBody)
	}

	return &model.Content{
		Sender:  parsed.Envelope.From,
		Subject: parsed.Envelope.Subject,
		Body:    strings.TrimSpace(body),
	}, nil
}

// SendReply sends body as a reply to the message's sender, threaded
// via In-Reply-To/References, and flags the original as answered.
func (g *Gateway) SendReply(ctx context.Context, id string, body string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}

	parsed, err := g.client.fetchMessage(ctx, uid)
	if err != nil {
		return fmt.Errorf("fetching message for reply: %w", err)
	}

	if err := sendReply(g.smtp, parsed, body); err != nil {
		return &mailstore.TransportError{Gateway: "imap", Op: "send reply", Err: err}
	}

	// Best effort: the reply is out either way.
	_ = g.client.setFlags(ctx, uid, []imap.Flag{imap.FlagAnswered}, true)

	return nil
}

// RemoveUnreadLabel sets \Seen on the message so unread listings no
// longer return it, then archives it out of the polled mailbox.
func (g *Gateway) RemoveUnreadLabel(ctx context.Context, id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}

	if err := g.client.setFlags(ctx, uid, []imap.Flag{imap.FlagSeen}, true); err != nil {
		return &mailstore.TransportError{
			Gateway: "imap",
			Op:      fmt.Sprintf("mark message %s seen", id),
			Err:     err,
		}
	}

	// Archiving is best effort: once \Seen is set the message is
	// already out of every future unread listing.
	_ = g.client.moveToArchive(ctx, uid)

	return nil
}

// parseUID converts a gateway message id to an IMAP UID.
func parseUID(id string) (imap.UID, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", id, err)
	}
	return imap.UID(uid), nil
}
