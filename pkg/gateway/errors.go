package gateway

import (
	"errors"
	"fmt"
)

// Failure taxonomy for a single call() attempt (spec section 4.2). The
// scheduler classifies these to decide between retry, fallback, and
// fatal-round escalation.
var (
	ErrAuthError       = errors.New("gateway: authentication failed")
	ErrPaymentRequired = errors.New("gateway: payment required")
	ErrRateLimited     = errors.New("gateway: rate limited")
	ErrTransport       = errors.New("gateway: transport failure")
	ErrMidStreamError  = errors.New("gateway: mid-stream error")
	ErrTimeout         = errors.New("gateway: timeout")
	ErrUpstreamError   = errors.New("gateway: upstream error")
)

// CallError wraps a classified failure with the model ID and upstream
// detail that produced it.
type CallError struct {
	Model string
	Class error
	Err   error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Model, e.Class, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Model, e.Class)
}

func (e *CallError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Err}
}

func newCallError(model string, class error, err error) *CallError {
	return &CallError{Model: model, Class: class, Err: err}
}
