package queue

import (
	"context"
	"time"
)

// Outcome is what Handle did with one queue item.
type Outcome string

const (
	Skipped  Outcome = "skipped"
	Ingested Outcome = "ingested"
	Poisoned Outcome = "poisoned"
	Retained Outcome = "retained"
)

// Result describes the handling of one item.
type Result struct {
	File       string    `json:"file"`
	Collection string    `json:"collection"`
	Outcome    Outcome   `json:"outcome"`
	DocumentID string    `json:"document_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
	Err        error     `json:"-"`
}

// Recorder persists results, e.g. to an audit ledger. Record errors are
// logged and otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, r Result) error
}
