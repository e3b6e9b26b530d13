// Package transcript keeps the client-side list of question/answer exchanges
// in step with the remote Q&A service.
package transcript

import (
	"context"
	"slices"
)

// Status is the lifecycle position of a single Exchange.
type Status int

const (
	StatusPending Status = iota
	StatusAnswered
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAnswered:
		return "answered"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Exchange is one question with the answer and images the service returned for it.
type Exchange struct {
	ID       string
	Question string
	Answer   string
	Images   []string
	Status   Status
}

// clone deep-copies Images; an empty slice stays empty, not nil.
func (e Exchange) clone() Exchange {
	e.Images = slices.Clone(e.Images)
	return e
}

// Record is a history entry as held by the remote service.
type Record struct {
	Question string
	Answer   string
	Images   []string
}

// Reply is the service's answer to one question.
type Reply struct {
	Answer string
	Images []string
}

// Backend is the remote Q&A service as seen by the store.
type Backend interface {
	FetchHistory(ctx context.Context) ([]Record, error)
	Ask(ctx context.Context, question string) (Reply, error)
	DeleteHistory(ctx context.Context) error
}
