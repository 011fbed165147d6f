// transfer.go implements the submit-then-drain loop shared by all backends.

package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/logger"
)

type transferState int

const (
	transferStateNeedInput = transferState(iota)
	transferStateHasOutput
	transferStateDraining
	transferStateDone
)

func (s transferState) String() string {
	switch s {
	case transferStateNeedInput:
		return "need_input"
	case transferStateHasOutput:
		return "has_output"
	case transferStateDraining:
		return "draining"
	case transferStateDone:
		return "done"
	}
	return fmt.Sprintf("unknown_%d", int(s))
}

// transfer is one submission followed by draining everything libav is
// ready to give. A nil unit (IsSentinel) switches libav to draining mode.
type transfer struct {
	IsSentinel bool
	Send       func() error
	Receive    func() error
	Deliver    func() error
}

type transferErrorKind int

const (
	transferErrorSubmission = transferErrorKind(iota)
	transferErrorDrain
	transferErrorCallback
)

type transferError struct {
	Kind      transferErrorKind
	Delivered int
	Err       error
}

func (e transferError) Error() string {
	return e.Err.Error()
}

func (e transferError) Unwrap() error {
	return e.Err
}

// run returns the amount of delivered outputs. Once Send succeeds, all
// outputs already produced are delivered before an error is returned.
func (t transfer) run(ctx context.Context) (_delivered int, _err error) {
	logger.Tracef(ctx, "transfer.run(sentinel:%t)", t.IsSentinel)
	defer func() { logger.Tracef(ctx, "/transfer.run(sentinel:%t): %d %v", t.IsSentinel, _delivered, _err) }()

	state := transferStateNeedInput
	resendPending := false
	for {
		switch state {
		case transferStateNeedInput:
			err := t.Send()
			switch {
			case err == nil:
				resendPending = false
			case t.IsSentinel && errors.Is(err, astiav.ErrEof):
				// already draining, what is left is pulled below
				resendPending = false
			case errors.Is(err, astiav.ErrEagain) && !resendPending:
				// libav wants its queued output consumed first
				logger.Debugf(ctx, "the input was refused with EAGAIN, consuming the output first")
				resendPending = true
				state = transferStateHasOutput
				continue
			default:
				return _delivered, transferError{Kind: transferErrorSubmission, Delivered: _delivered, Err: err}
			}
			if t.IsSentinel {
				state = transferStateDraining
			} else {
				state = transferStateHasOutput
			}
		case transferStateHasOutput, transferStateDraining:
			err := t.Receive()
			switch {
			case err == nil:
				if err := t.Deliver(); err != nil {
					return _delivered, transferError{Kind: transferErrorCallback, Delivered: _delivered, Err: err}
				}
				_delivered++
				continue
			case errors.Is(err, astiav.ErrEof):
				if resendPending {
					return _delivered, transferError{
						Kind:      transferErrorSubmission,
						Delivered: _delivered,
						Err:       fmt.Errorf("libav reached the end of stream with the refused input not resent: %w", err),
					}
				}
				state = transferStateDone
			case errors.Is(err, astiav.ErrEagain):
				switch {
				case resendPending:
					state = transferStateNeedInput
				case state == transferStateDraining:
					return _delivered, transferError{
						Kind:      transferErrorDrain,
						Delivered: _delivered,
						Err:       fmt.Errorf("libav asked for more input while draining: %w", err),
					}
				default:
					state = transferStateDone
				}
			default:
				return _delivered, transferError{Kind: transferErrorDrain, Delivered: _delivered, Err: err}
			}
		case transferStateDone:
			return _delivered, nil
		default:
			return _delivered, fmt.Errorf("internal error: unexpected transfer state %s", state)
		}
	}
}
