package state

import (
	"context"
	"encoding/json"
	"time"
)

// Mode is the kind of evaluation that was recorded.
type Mode string

// Evaluation modes.
const (
	ModeEvaluate Mode = "evaluate"
	ModeExpand   Mode = "expand"
	ModeInline   Mode = "inline"
)

// Evaluation is one recorded top-level evaluation.
type Evaluation struct {
	ID        string
	Template  string
	Mode      Mode
	Scope     json.RawMessage // scope as given by the caller
	Output    json.RawMessage // string, list of strings, or null for no output
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// Failed reports whether the evaluation returned an error.
func (e *Evaluation) Failed() bool {
	return e.Error != ""
}

// ListOptions filters ListEvaluations.
type ListOptions struct {
	Limit    int    // 0 uses DefaultListLimit
	Template string // empty matches every template
}

// DefaultListLimit is the number of rows returned when no limit is given.
const DefaultListLimit = 50

// HistoryStore records evaluations.
type HistoryStore interface {
	RecordEvaluation(ctx context.Context, e *Evaluation) error
	ListEvaluations(ctx context.Context, opts ListOptions) ([]*Evaluation, error)
	GetEvaluation(ctx context.Context, id string) (*Evaluation, error)
	Close() error
}

// NewEvaluation builds an Evaluation from Go values, encoding scope and
// output as JSON. Values that cannot be encoded are stored as their
// error message.
func NewEvaluation(template string, mode Mode, scope, output any, evalErr error, startedAt time.Time) *Evaluation {
	e := &Evaluation{
		Template:  template,
		Mode:      mode,
		Scope:     encode(scope),
		Output:    encode(output),
		StartedAt: startedAt.UTC(),
		Duration:  time.Since(startedAt),
	}
	if evalErr != nil {
		e.Error = evalErr.Error()
	}
	return e
}

func encode(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"unencodable": err.Error()})
	}
	return b
}
