package store

import (
	"context"

	"github.com/nhle/mail-triage/internal/model"
)

// OutcomeFilter controls filtering and pagination for outcome queries.
type OutcomeFilter struct {
	Category *string
	RunID    *string
	Limit    int
	Offset   int
}

// Store defines the persistence interface for the audit trail. Rows
// here exist for operators: the pipeline never reads them back to
// decide anything.
type Store interface {
	RecordOutcome(ctx context.Context, outcome *model.Outcome) error
	GetOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.Outcome, error)
	GetStats(ctx context.Context) (*model.Stats, error)
}
