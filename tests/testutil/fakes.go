package testutil

import (
	"context"
	"sync"

	"github.com/nhle/mail-triage/internal/classify"
	"github.com/nhle/mail-triage/internal/mailstore"
	"github.com/nhle/mail-triage/internal/model"
)

// Message seeds one FakeGateway mailbox entry. Seeded messages start
// unread.
type Message struct {
	ID      string
	Sender  string
	Subject string
	Body    string
}

// SentReply records one successful SendReply call.
type SentReply struct {
	ID   string
	Body string
}

type fakeMessage struct {
	Message
	unread bool
}

// FakeGateway is an in-memory mailstore.Gateway. Its unread flag is
// real state: RemoveUnreadLabel clears it and later ListUnread calls
// stop returning the id, the same way the daemon leans on the mail
// store for exactly-once behavior.
type FakeGateway struct {
	mu       sync.Mutex
	messages map[string]*fakeMessage
	order    []string

	listErr    error
	fetchErr   error
	sendErr    error
	cleanupErr error

	fetches      []string
	sent         []SentReply
	sendAttempts int
	cleanups     []string
}

// NewFakeGateway seeds a gateway with unread messages.
func NewFakeGateway(msgs ...Message) *FakeGateway {
	g := &FakeGateway{messages: make(map[string]*fakeMessage)}
	for _, m := range msgs {
		g.Add(m)
	}
	return g
}

// Add seeds one more unread message.
func (g *FakeGateway) Add(m Message) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.messages[m.ID]; !ok {
		g.order = append(g.order, m.ID)
	}
	g.messages[m.ID] = &fakeMessage{Message: m, unread: true}
}

// Remove deletes a message entirely, as if another client purged it
// mid-run.
func (g *FakeGateway) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.messages, id)
}

// FailList makes ListUnread return err until cleared with nil.
func (g *FakeGateway) FailList(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listErr = err
}

// FailFetch makes FetchContent return err until cleared with nil.
func (g *FakeGateway) FailFetch(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchErr = err
}

// FailSend makes SendReply return err until cleared with nil.
func (g *FakeGateway) FailSend(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendErr = err
}

// FailCleanup makes RemoveUnreadLabel return err until cleared with nil.
func (g *FakeGateway) FailCleanup(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cleanupErr = err
}

// Fetches returns the ids passed to FetchContent, in call order.
func (g *FakeGateway) Fetches() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.fetches...)
}

// Sent returns the replies that went out successfully.
func (g *FakeGateway) Sent() []SentReply {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentReply(nil), g.sent...)
}

// SendAttempts returns how many times SendReply was called, failures
// included.
func (g *FakeGateway) SendAttempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sendAttempts
}

// Cleanups returns the ids passed to RemoveUnreadLabel, failures
// included, in call order.
func (g *FakeGateway) Cleanups() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.cleanups...)
}

// Unread reports whether the message still carries the unread marker.
func (g *FakeGateway) Unread(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.messages[id]
	return ok && m.unread
}

// Name implements mailstore.Gateway.
func (g *FakeGateway) Name() string { return "fake" }

// ValidateConnection implements mailstore.Gateway.
func (g *FakeGateway) ValidateConnection(_ context.Context) (string, error) {
	return "fake@example.com", nil
}

// ListUnread implements mailstore.Gateway.
func (g *FakeGateway) ListUnread(_ context.Context, max int) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.listErr != nil {
		return nil, g.listErr
	}

	var ids []string
	for _, id := range g.order {
		if m, ok := g.messages[id]; ok && m.unread {
			ids = append(ids, id)
		}
		if max > 0 && len(ids) == max {
			break
		}
	}
	return ids, nil
}

// FetchContent implements mailstore.Gateway.
func (g *FakeGateway) FetchContent(_ context.Context, id string) (*model.Content, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.fetches = append(g.fetches, id)
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}

	m, ok := g.messages[id]
	if !ok {
		return nil, &mailstore.NotFoundError{ID: id}
	}
	return &model.Content{
		Sender:  m.Sender,
		Subject: m.Subject,
		Body:    m.Body,
	}, nil
}

// SendReply implements mailstore.Gateway.
func (g *FakeGateway) SendReply(_ context.Context, id string, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sendAttempts++
	if g.sendErr != nil {
		return g.sendErr
	}
	if _, ok := g.messages[id]; !ok {
		return &mailstore.NotFoundError{ID: id}
	}

	g.sent = append(g.sent, SentReply{ID: id, Body: body})
	return nil
}

// RemoveUnreadLabel implements mailstore.Gateway.
func (g *FakeGateway) RemoveUnreadLabel(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cleanups = append(g.cleanups, id)
	if g.cleanupErr != nil {
		return g.cleanupErr
	}

	m, ok := g.messages[id]
	if !ok {
		return &mailstore.NotFoundError{ID: id}
	}
	m.unread = false
	return nil
}

// FakeClassifier is a canned classify.Classifier.
type FakeClassifier struct {
	mu    sync.Mutex
	calls int

	// ClassifyFunc supplies the verdict. Left nil, every message
	// comes back a notification.
	ClassifyFunc func(ctx context.Context, content *model.Content) (*classify.Result, error)
}

// Classify implements classify.Classifier.
func (c *FakeClassifier) Classify(ctx context.Context, content *model.Content) (*classify.Result, error) {
	c.mu.Lock()
	c.calls++
	fn := c.ClassifyFunc
	c.mu.Unlock()

	if fn == nil {
		return &classify.Result{
			Category: model.CategoryNotification,
			Topic:    model.TopicOther,
		}, nil
	}
	return fn(ctx, content)
}

// Calls returns how many times Classify was invoked.
func (c *FakeClassifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
