// Package mailstore defines the contract between the triage pipeline
// and a mailbox backend. Implementations live in subpackages; the
// pipeline only ever sees this interface.
package mailstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mail-triage/internal/model"
)

// AuthError indicates that authentication has failed or expired for a
// mail store. It is returned by gateway clients when the backend
// rejects credentials.
type AuthError struct {
	Gateway string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Gateway, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// NotFoundError indicates that a message id no longer resolves in the
// mail store, typically because the message was deleted or moved
// between listing and fetching.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("message %s not found", e.ID)
}

// IsNotFound reports whether err (or any error in its chain) is a NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// TransportError wraps a network or provider failure on a gateway
// operation. Callers treat it as retryable on the next poll cycle.
type TransportError struct {
	Gateway string
	Op      string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Gateway, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err (or any error in its chain) is a TransportError.
func IsTransport(err error) bool {
	var trErr *TransportError
	return errors.As(err, &trErr)
}

// Gateway defines the contract that every mailbox backend must implement.
// All operations take the backend's own message identifiers; ids from
// one gateway are meaningless to another.
type Gateway interface {
	// Name returns the gateway identifier ("gmail", "imap").
	Name() string

	// ValidateConnection verifies credentials and connectivity.
	// Returns a human-readable status message on success.
	ValidateConnection(ctx context.Context) (string, error)

	// ListUnread returns the ids of currently unread messages, capped
	// at max. An empty slice means nothing to do.
	ListUnread(ctx context.Context, max int) ([]string, error)

	// FetchContent retrieves sender, subject and body for one message.
	// Returns a NotFoundError when the id no longer resolves.
	FetchContent(ctx context.Context, id string) (*model.Content, error)

	// SendReply sends body as a reply to the given message, threaded
	// onto the original conversation.
	SendReply(ctx context.Context, id string, body string) error

	// RemoveUnreadLabel marks the message as handled so later listings
	// no longer return it.
	RemoveUnreadLabel(ctx context.Context, id string) error
}
