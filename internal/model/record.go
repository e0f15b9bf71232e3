package model

import "time"

// Category is the triage decision for a message.
type Category string

const (
	CategorySpam         Category = "spam"
	CategoryNotification Category = "notification"
	CategoryReplyNeeded  Category = "reply_needed"
	CategoryUnclassified Category = "unclassified"
)

// Valid reports whether c is one of the four known categories.
// Classifier output is policed with this before it enters a record.
func (c Category) Valid() bool {
	switch c {
	case CategorySpam, CategoryNotification, CategoryReplyNeeded, CategoryUnclassified:
		return true
	}
	return false
}

func (c Category) String() string { return string(c) }

// Topic is a coarse subject label attached for reporting. It is
// recorded alongside the category but never influences routing.
type Topic string

const (
	TopicInquiry   Topic = "Inquiry"
	TopicComplaint Topic = "Complaint"
	TopicFeedback  Topic = "Feedback"
	TopicOther     Topic = "Other"
)

// Valid reports whether t is one of the known topics.
func (t Topic) Valid() bool {
	switch t {
	case TopicInquiry, TopicComplaint, TopicFeedback, TopicOther:
		return true
	}
	return false
}

func (t Topic) String() string { return string(t) }

// SendStatus records the outcome of the reply step for one message.
type SendStatus string

const (
	SendNotAttempted SendStatus = "not_attempted"
	SendSent         SendStatus = "sent"
	SendFailed       SendStatus = "send_failed"
)

func (s SendStatus) String() string { return string(s) }

// CleanupStatus records the outcome of the cleanup step for one message.
type CleanupStatus string

const (
	CleanupPending CleanupStatus = "pending"
	CleanupDone    CleanupStatus = "done"
	CleanupFailed  CleanupStatus = "failed"
)

func (s CleanupStatus) String() string { return string(s) }

// Stage is the position of a message within one processing run.
// Stages only ever advance; a record never moves backwards.
type Stage string

const (
	StageDiscovered Stage = "discovered"
	StageFetched    Stage = "fetched"
	StageClassified Stage = "classified"
	StageRouted     Stage = "routed"
	StageSent       Stage = "sent"
	StageCleanedUp  Stage = "cleaned_up"
	StageDropped    Stage = "dropped"
)

// stageOrder gives each stage its position in the forward-only
// progression. Dropped is terminal from anywhere, so it sorts last.
var stageOrder = map[Stage]int{
	StageDiscovered: 0,
	StageFetched:    1,
	StageClassified: 2,
	StageRouted:     3,
	StageSent:       4,
	StageCleanedUp:  5,
	StageDropped:    6,
}

func (s Stage) String() string { return string(s) }

// Terminal reports whether no further stage transition is allowed.
func (s Stage) Terminal() bool {
	return s == StageCleanedUp || s == StageDropped
}

// Content is the fetched material of a message: exactly what the
// classifier sees and what a reply is composed against.
type Content struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Record is the per-message working state for a single processing run.
// Each pipeline stage owns the fields it fills in: Content is set by
// fetch, Category/Topic/Draft by classify, SendStatus by send and
// CleanupStatus by cleanup. Later stages never rewrite earlier fields.
type Record struct {
	// ID is the message identifier as reported by the mail store.
	ID string `json:"id"`

	// Stage is the record's current position in the run.
	Stage Stage `json:"stage"`

	// Content is populated once the message body has been fetched.
	Content *Content `json:"content,omitempty"`

	// Category is the triage decision. It starts as unclassified and
	// is set exactly once by classification; a failed classification
	// leaves it at unclassified.
	Category Category `json:"category"`

	// Topic is the reporting label. Empty until classified.
	Topic Topic `json:"topic,omitempty"`

	// Draft is the generated reply text for reply_needed messages.
	Draft string `json:"draft,omitempty"`

	// SendStatus moves to sent only when the reply was handed to the
	// mail store without error.
	SendStatus SendStatus `json:"send_status"`

	// CleanupStatus is pending until the unread marker has been
	// removed, then done. A record whose run ends any other way is
	// failed and the message stays eligible for a later run.
	CleanupStatus CleanupStatus `json:"cleanup_status"`

	// Attempt is which processing attempt this run is for the id,
	// starting at 1. Stamped at admission by the scheduler.
	Attempt int `json:"attempt"`

	// Err holds the first error that disturbed this run, if any.
	// A disturbed run can still finish cleanup.
	Err string `json:"error,omitempty"`

	// StartedAt and FinishedAt bound the run for this record.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// NewRecord starts a record for one discovered message id.
func NewRecord(id string) *Record {
	return &Record{
		ID:            id,
		Stage:         StageDiscovered,
		Category:      CategoryUnclassified,
		SendStatus:    SendNotAttempted,
		CleanupStatus: CleanupPending,
		Attempt:       1,
		StartedAt:     time.Now(),
	}
}

// Advance moves the record to a later stage. Transitions to an earlier
// or equal stage are ignored, as is any transition out of a terminal
// stage, so a record's history reads strictly forward.
func (r *Record) Advance(next Stage) {
	if r.Stage.Terminal() {
		return
	}
	if stageOrder[next] <= stageOrder[r.Stage] {
		return
	}
	r.Stage = next
}

// Fail notes the first error seen during the run. Later errors are
// kept out so the recorded cause is the original one.
func (r *Record) Fail(err error) {
	if err == nil || r.Err != "" {
		return
	}
	r.Err = err.Error()
}
