// errors.go defines the error taxonomy of the codec backends.

package codec

import (
	"fmt"
)

// ErrBackendInit means the backend cannot serve the request: the codec kind
// or the device is unsupported, or libav rejected the parameters.
type ErrBackendInit struct {
	Backend Mode
	Channel Channel
	Reason  string
	Err     error
}

func (e ErrBackendInit) Error() string {
	return formatError("unable to initialize the backend", e.Backend, e.Channel, e.Reason, e.Err)
}

func (e ErrBackendInit) Unwrap() error {
	return e.Err
}

// ErrSubmission means libav rejected a submitted unit. The unit is dropped
// and reopening the instance is advised.
type ErrSubmission struct {
	Backend Mode
	Channel Channel
	Reason  string
	Err     error
}

func (e ErrSubmission) Error() string {
	return formatError("unable to submit", e.Backend, e.Channel, e.Reason, e.Err)
}

func (e ErrSubmission) Unwrap() error {
	return e.Err
}

// ErrDrain means pulling output failed after a successful submission.
// Outputs already handed to the callback stand.
type ErrDrain struct {
	Backend   Mode
	Channel   Channel
	Reason    string
	Delivered int
	Err       error
}

func (e ErrDrain) Error() string {
	return formatError(
		fmt.Sprintf("unable to drain (delivered before the failure: %d)", e.Delivered),
		e.Backend, e.Channel, e.Reason, e.Err,
	)
}

func (e ErrDrain) Unwrap() error {
	return e.Err
}

// ErrInvalidUsage means a call was made out of state or with a missing argument.
type ErrInvalidUsage struct {
	Backend Mode
	Channel Channel
	Reason  string
}

func (e ErrInvalidUsage) Error() string {
	return formatError("invalid usage", e.Backend, e.Channel, e.Reason, nil)
}

func formatError(
	prefix string,
	backend Mode,
	chn Channel,
	reason string,
	err error,
) string {
	s := fmt.Sprintf("%s [%s/%s]", prefix, backend, chn)
	if reason != "" {
		s += ": " + reason
	}
	if err != nil {
		s += ": " + err.Error()
	}
	return s
}
