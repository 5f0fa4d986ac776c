package errs

import (
	"errors"
	"fmt"
)

// Severity grades a user-facing error for rendering.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// UserAction is a follow-up a human can trigger from a rendered error.
type UserAction string

const (
	ActionRetry          UserAction = "retry"
	ActionConnectAccount UserAction = "connect_account"
)

// UserFacing is an expected, renderable error. Handled errors were already
// logged at the point they were raised and must not be logged again on the
// way out.
type UserFacing struct {
	Message  string
	Severity Severity
	Handled  bool
	Actions  []UserAction
	// Data carries structured context (channel, queue, timestamps,
	// substitution descriptions) that the retry path consumes.
	Data map[string]any

	cause error
}

func (e *UserFacing) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *UserFacing) Unwrap() error { return e.cause }

// HasAction reports whether the error carries the given user action.
func (e *UserFacing) HasAction(a UserAction) bool {
	for _, have := range e.Actions {
		if have == a {
			return true
		}
	}
	return false
}

// WithData attaches one structured context entry.
func (e *UserFacing) WithData(key string, value any) *UserFacing {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// Warning builds a handled warning-severity user-facing error.
func Warning(message string, actions ...UserAction) *UserFacing {
	return &UserFacing{Message: message, Severity: SeverityWarning, Handled: true, Actions: actions}
}

// Errorf builds an error-severity user-facing error wrapping a cause.
func Errorf(cause error, message string, actions ...UserAction) *UserFacing {
	return &UserFacing{Message: message, Severity: SeverityError, Handled: true, Actions: actions, cause: cause}
}

// AsUserFacing unwraps err to a *UserFacing if one is in the chain.
func AsUserFacing(err error) (*UserFacing, bool) {
	var uf *UserFacing
	if errors.As(err, &uf) {
		return uf, true
	}
	return nil, false
}

// Sentinels for the infrastructure and fatal branches of the taxonomy.
var (
	// ErrRetryLater marks a transient failure (rate limit, 5xx, network).
	// The owning retry point (next tick, next webhook) picks it up.
	ErrRetryLater = errors.New("retry later")

	// ErrTargetGone marks a permanently missing channel or message. The
	// owning tracker terminates instead of retrying.
	ErrTargetGone = errors.New("target permanently gone")

	// ErrNotFound is the generic missing-record sentinel shared by repositories.
	ErrNotFound = errors.New("not found")
)

// IsRetryable reports whether err should be retried at the next natural
// retry point. Permanent-gone failures are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTargetGone) {
		return false
	}
	return errors.Is(err, ErrRetryLater)
}

// IsTerminal reports whether err must terminate the owning process.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrTargetGone)
}
