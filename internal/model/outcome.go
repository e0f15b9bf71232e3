package model

import "time"

// Outcome is the persisted result of one processing run for one
// message. It is an audit row only: admission decisions for later
// runs come from the mail store's unread state, never from here.
type Outcome struct {
	ID            int64     `json:"-" db:"id"`
	MessageID     string    `json:"message_id" db:"message_id"`
	RunID         string    `json:"run_id" db:"run_id"`
	Sender        string    `json:"sender" db:"sender"`
	Subject       string    `json:"subject" db:"subject"`
	Category      string    `json:"category" db:"category"`
	Topic         string    `json:"topic,omitempty" db:"topic"`
	SendStatus    string    `json:"send_status" db:"send_status"`
	CleanupStatus string    `json:"cleanup_status" db:"cleanup_status"`
	Stage         string    `json:"stage" db:"stage"`
	Attempt       int       `json:"attempt" db:"attempt"`
	Error         string    `json:"error,omitempty" db:"error"`
	StartedAt     time.Time `json:"started_at" db:"started_at"`
	FinishedAt    time.Time `json:"finished_at" db:"finished_at"`
}

// OutcomeFromRecord flattens a finished record into its audit row.
func OutcomeFromRecord(runID string, r *Record) *Outcome {
	o := &Outcome{
		MessageID:     r.ID,
		RunID:         runID,
		Category:      r.Category.String(),
		Topic:         r.Topic.String(),
		SendStatus:    r.SendStatus.String(),
		CleanupStatus: r.CleanupStatus.String(),
		Stage:         r.Stage.String(),
		Attempt:       r.Attempt,
		Error:         r.Err,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
	if r.Content != nil {
		o.Sender = r.Content.Sender
		o.Subject = r.Content.Subject
	}
	return o
}

// Stats aggregates outcome counts for the operational surface.
type Stats struct {
	Total         int64            `json:"total"`
	ByCategory    map[string]int64 `json:"by_category"`
	RepliesSent   int64            `json:"replies_sent"`
	RepliesFailed int64            `json:"replies_failed"`
	CleanupFailed int64            `json:"cleanup_failed"`
}
