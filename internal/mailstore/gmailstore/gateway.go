// Package gmailstore implements the mail store gateway over the Gmail
// REST API. Message ids are Gmail message ids; "unread" maps to the
// UNREAD label. Every API call goes through a circuit breaker so a
// degraded Gmail backend fails fast instead of stalling sweeps.
package gmailstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/nhle/mail-triage/internal/mailstore"
	"github.com/nhle/mail-triage/internal/model"
)

const (
	gmailUser   = "me"
	unreadQuery = "is:unread"
)

// cleanupLabels are removed when a message leaves the triage queue.
// Dropping INBOX archives the message the way the web UI does.
var cleanupLabels = []string{"UNREAD", "INBOX"}

// Gateway implements mailstore.Gateway for Gmail accounts.
type Gateway struct {
	svc     *gmail.Service
	breaker *gobreaker.CircuitBreaker
}

// New creates a Gmail gateway from the OAuth client credentials and
// cached token named in cfg. A missing or unreadable token is an
// AuthError: the fix is rerunning the auth flow, not retrying.
func New(ctx context.Context, cfg model.GmailConfig, logger logrus.FieldLogger) (*Gateway, error) {
	oauthCfg, err := loadOAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}

	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, &mailstore.AuthError{
			Gateway: "gmail",
			Message: fmt.Sprintf("no usable token at %s (run the auth command first): %v", cfg.TokenFile, err),
		}
	}

	client := oauthCfg.Client(ctx, token)
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("creating Gmail service: %w", err)
	}

	return &Gateway{
		svc:     svc,
		breaker: newBreaker(logger),
	}, nil
}

// newBreaker builds the circuit breaker guarding Gmail API calls.
// Request-level failures are wrapped in nonCircuitError and do not
// count against the breaker.
func newBreaker(logger logrus.FieldLogger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var nce *nonCircuitError
			return errors.As(err, &nce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})
}

// Name returns the gateway identifier.
func (g *Gateway) Name() string { return "gmail" }

// ValidateConnection fetches the account profile to prove the token
// works. Returns the account's email address.
func (g *Gateway) ValidateConnection(ctx context.Context) (string, error) {
	var profile *gmail.Profile
	err := g.call(func() error {
		var apiErr error
		profile, apiErr = g.svc.Users.GetProfile(gmailUser).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return "", mapError("get profile", "", err)
	}
	return profile.EmailAddress, nil
}

// ListUnread returns the ids of unread messages, capped at max.
func (g *Gateway) ListUnread(ctx context.Context, max int) ([]string, error) {
	var resp *gmail.ListMessagesResponse
	err := g.call(func() error {
		var apiErr error
		resp, apiErr = g.svc.Users.Messages.List(gmailUser).
			Q(unreadQuery).
			MaxResults(int64(max)).
			Context(ctx).
			Do()
		return apiErr
	})
	if err != nil {
		return nil, mapError("list unread", "", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, nil
}

// FetchContent retrieves one message and normalizes it to sender,
// subject and a plain-text body, falling back to stripped HTML and
// then the snippet for messages without a text part.
func (g *Gateway) FetchContent(ctx context.Context, id string) (*model.Content, error) {
	var msg *gmail.Message
	err := g.call(func() error {
		var apiErr error
		msg, apiErr = g.svc.Users.Messages.Get(gmailUser, id).
			Format("full").
			Context(ctx).
			Do()
		return apiErr
	})
	if err != nil {
		return nil, mapError("fetch message", id, err)
	}

	text, html := extractBody(msg.Payload)
	body := text
	if body == "" {
		body = mailstore.StripHTML(html)
	}
	if body == "" {
		body = msg.Snippet
	}

	return &model.Content{
		Sender:  headerValue(msg.Payload, "From"),
		Subject: headerValue(msg.Payload, "Subject"),
		Body:    strings.TrimSpace(body),
	}, nil
}

// SendReply sends body as a reply on the original message's thread.
// The original's Message-ID goes into In-Reply-To/References so
// receiving clients thread the reply too.
func (g *Gateway) SendReply(ctx context.Context, id string, body string) error {
	var original *gmail.Message
	err := g.call(func() error {
		var apiErr error
		original, apiErr = g.svc.Users.Messages.Get(gmailUser, id).
			Format("metadata").
			MetadataHeaders("From", "Subject", "Message-ID").
			Context(ctx).
			Do()
		return apiErr
	})
	if err != nil {
		return mapError("fetch message for reply", id, err)
	}

	to := senderAddress(headerValue(original.Payload, "From"))
	if to == "" {
		return fmt.Errorf("message %s has no sender address to reply to", id)
	}

	raw := buildReplyRaw(
		to,
		mailstore.ReplySubject(headerValue(original.Payload, "Subject")),
		headerValue(original.Payload, "Message-ID"),
		body,
	)

	reply := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(raw)),
		ThreadId: original.ThreadId,
	}

	err = g.call(func() error {
		_, apiErr := g.svc.Users.Messages.Send(gmailUser, reply).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return mapError("send reply", id, err)
	}
	return nil
}

// RemoveUnreadLabel drops the UNREAD and INBOX labels, taking the
// message out of the unread queue and archiving it.
func (g *Gateway) RemoveUnreadLabel(ctx context.Context, id string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: cleanupLabels}
	err := g.call(func() error {
		_, apiErr := g.svc.Users.Messages.Modify(gmailUser, id, req).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return mapError("remove unread label", id, err)
	}
	return nil
}

// call executes fn through the circuit breaker. Server-side and rate
// limit failures trip the breaker; request-level failures (bad
// request, auth, not found) say nothing about backend health and pass
// through wrapped so the breaker ignores them.
func (g *Gateway) call(fn func() error) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				switch apiErr.Code {
				case http.StatusInternalServerError,
					http.StatusBadGateway,
					http.StatusServiceUnavailable,
					http.StatusTooManyRequests:
					return nil, err
				default:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}
	return err
}

// nonCircuitError wraps errors that must not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string { return e.err.Error() }

func (e *nonCircuitError) Unwrap() error { return e.err }

// mapError converts raw Gmail API failures into the gateway error
// taxonomy.
func mapError(op, id string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &mailstore.AuthError{Gateway: "gmail", Message: apiErr.Message}
		case http.StatusNotFound:
			return &mailstore.NotFoundError{ID: id}
		}
	}
	return &mailstore.TransportError{Gateway: "gmail", Op: op, Err: err}
}
