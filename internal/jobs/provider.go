package jobs

import (
	"context"
	"errors"
)

var (
	ErrTimedOut       = errors.New("generation timed out")
	ErrInvalidRequest = errors.New("invalid generation request")
)

// RemoteError is a failure reported by the provider itself. Message is the
// provider's text, unchanged.
type RemoteError struct {
	Kind    Kind
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return string(e.Kind) + " generation failed"
	}
	return e.Message
}

// Handle identifies a queued remote job. Model names the provider endpoint
// that accepted it.
type Handle struct {
	RequestID   string `json:"request_id"`
	Model       string `json:"model,omitempty"`
	StatusURL   string `json:"status_url,omitempty"`
	ResponseURL string `json:"response_url,omitempty"`
}

// Submission is the decoded answer to a submit: Immediate or Queued.
type Submission interface {
	submission()
}

type Immediate struct {
	Output Output
}

type Queued struct {
	Handle Handle
}

func (Immediate) submission() {}
func (Queued) submission()    {}

type RemoteState string

const (
	RemotePending    RemoteState = "pending"
	RemoteInProgress RemoteState = "in_progress"
	RemoteCompleted  RemoteState = "completed"
	RemoteFailed     RemoteState = "failed"
)

type PollResult struct {
	State  RemoteState
	Output *Output
	Error  string
}

// Provider is a remote generation backend.
type Provider interface {
	Submit(ctx context.Context, req Request) (Submission, error)
	Poll(ctx context.Context, handle Handle) (PollResult, error)
}
