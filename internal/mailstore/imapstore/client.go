package imapstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mail-triage/internal/mailstore"
)

// imapClient wraps go-imap v2 for connecting to and querying an IMAP
// server. Every operation opens its own short-lived connection; the
// triage loop is slow enough that holding one open buys nothing.
type imapClient struct {
	host     string
	port     int
	mailbox  string
	username string
	password string
}

// connect establishes a connection, authenticates, and selects the
// configured mailbox. The caller must Logout the returned client.
func (c *imapClient) connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.host + ":" + strconv.Itoa(c.port)

	var client *imapclient.Client
	var err error

	// Port 993 is implicit TLS; anything else negotiates STARTTLS.
	if c.port == 993 {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &mailstore.AuthError{
			Gateway: "imap",
			Message: fmt.Sprintf("authentication failed for %s: %v", c.username, err),
		}
	}

	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}

	return client, nil
}

// listUnseenUIDs searches the mailbox for messages without the \Seen
// flag and returns up to limit of the most recent ones.
func (c *imapClient) listUnseenUIDs(ctx context.Context, limit int) ([]imap.UID, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unseen messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	return uids, nil
}

// fetchMessage fetches the envelope and body for one UID, without
// setting \Seen. Returns a NotFoundError when the UID no longer
// resolves in the mailbox.
func (c *imapClient) fetchMessage(ctx context.Context, uid imap.UID) (*ParsedMessage, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	uidSet := imap.UIDSetNum(uid)

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, &mailstore.NotFoundError{ID: strconv.FormatUint(uint64(uid), 10)}
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message data: %w", err)
	}

	parsed := &ParsedMessage{
		Envelope: envelopeFromBuffer(buf),
	}

	if rawBody := buf.FindBodySection(bodySection); rawBody != nil {
		parsed.TextBody, parsed.HTMLBody = parseMIMEBody(rawBody)
	}

	if err := fetchCmd.Close(); err != nil {
		return parsed, fmt.Errorf("closing fetch: %w", err)
	}

	return parsed, nil
}

// setFlags adds or removes flags on one message.
func (c *imapClient) setFlags(
	ctx context.Context,
	uid imap.UID,
	flags []imap.Flag,
	add bool,
) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	op := imap.StoreFlagsAdd
	if !add {
		op = imap.StoreFlagsDel
	}

	storeCmd := client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  flags,
	}, nil)

	return storeCmd.Close()
}

// moveToArchive moves the message out of the polled mailbox. It tries
// common archive folder names, falling back to marking the message as
// deleted.
func (c *imapClient) moveToArchive(ctx context.Context, uid imap.UID) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	uidSet := imap.UIDSetNum(uid)

	archiveFolders := []string{
		"Archive", "[Gmail]/All Mail", "Archives", "INBOX.Archive",
	}

	for _, folder := range archiveFolders {
		moveCmd := client.Move(uidSet, folder)
		if _, err := moveCmd.Wait(); err == nil {
			return nil
		}
	}

	// Fallback: mark as deleted
	storeCmd := client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)

	return storeCmd.Close()
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			env.FromAddr = from.Addr()
			if from.Name != "" {
				env.From = fmt.Sprintf("%s <%s>", from.Name, from.Addr())
			} else {
				env.From = from.Addr()
			}
		}
	}

	return env
}

// parseMIMEBody parses a raw RFC 2822 message using go-message and
// extracts the text/plain and text/html bodies.
func parseMIMEBody(raw []byte) (textBody string, htmlBody string) {
	reader := bytes.NewReader(raw)

	mr, err := mail.CreateReader(reader)
	if err != nil {
		// If parsing fails, try treating the whole thing as plain text
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}
