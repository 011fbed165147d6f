package codec

import (
	"context"
	"errors"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
)

// fakeNative emulates libav send/receive: every sent unit yields perUnit
// outputs; a sentinel switches to draining and yields the buffered ones.
type fakeNative struct {
	perUnit   int
	buffered  int
	queued    int
	draining  bool
	eof       bool
	sendErr   error
	recvErrAt int
	recvCount int
	delivered int
}

func (f *fakeNative) send(isSentinel bool) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	if isSentinel {
		if f.draining {
			return astiav.ErrEof
		}
		f.draining = true
		f.queued += f.buffered
		f.buffered = 0
		return nil
	}
	if f.draining {
		return astiav.ErrEof
	}
	f.queued += f.perUnit
	return nil
}

func (f *fakeNative) receive() error {
	f.recvCount++
	if f.recvErrAt > 0 && f.recvCount == f.recvErrAt {
		return errors.New("broken")
	}
	if f.queued > 0 {
		f.queued--
		return nil
	}
	if f.draining {
		return astiav.ErrEof
	}
	return astiav.ErrEagain
}

func (f *fakeNative) transfer(isSentinel bool, deliver func() error) transfer {
	return transfer{
		IsSentinel: isSentinel,
		Send:       func() error { return f.send(isSentinel) },
		Receive:    f.receive,
		Deliver: func() error {
			f.delivered++
			if deliver != nil {
				return deliver()
			}
			return nil
		},
	}
}

func TestTransferOneToMany(t *testing.T) {
	ctx := context.Background()
	f := &fakeNative{perUnit: 3}
	n, err := f.transfer(false, nil).run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 3, f.delivered)
}

func TestTransferNoOutputYet(t *testing.T) {
	ctx := context.Background()
	f := &fakeNative{perUnit: 0}
	n, err := f.transfer(false, nil).run(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestTransferSentinelDrainsAndRepeats(t *testing.T) {
	ctx := context.Background()
	f := &fakeNative{buffered: 2}
	n, err := f.transfer(true, nil).run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = f.transfer(true, nil).run(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestTransferSubmissionError(t *testing.T) {
	ctx := context.Background()
	f := &fakeNative{perUnit: 1, sendErr: astiav.ErrEinval}
	_, err := f.transfer(false, nil).run(ctx)
	var tErr transferError
	require.ErrorAs(t, err, &tErr)
	require.Equal(t, transferErrorSubmission, tErr.Kind)
	require.Zero(t, f.delivered)
}

func TestTransferEagainOnSendResendsOnce(t *testing.T) {
	ctx := context.Background()
	f := &fakeNative{queued: 1}
	sends := 0
	tr := f.transfer(false, nil)
	tr.Send = func() error {
		sends++
		if sends == 1 {
			return astiav.ErrEagain
		}
		return f.send(false)
	}
	n, err := tr.run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, sends)
	require.Equal(t, 1, n)

	tr.Send = func() error { return astiav.ErrEagain }
	_, err = tr.run(ctx)
	var tErr transferError
	require.ErrorAs(t, err, &tErr)
	require.Equal(t, transferErrorSubmission, tErr.Kind)
}

func TestTransferDrainErrorKeepsDelivered(t *testing.T) {
	ctx := context.Background()
	f := &fakeNative{perUnit: 5, recvErrAt: 3}
	n, err := f.transfer(false, nil).run(ctx)
	var tErr transferError
	require.ErrorAs(t, err, &tErr)
	require.Equal(t, transferErrorDrain, tErr.Kind)
	require.Equal(t, 2, tErr.Delivered)
	require.Equal(t, 2, n)
}

func TestTransferCallbackError(t *testing.T) {
	ctx := context.Background()
	f := &fakeNative{perUnit: 3}
	calls := 0
	_, err := f.transfer(false, func() error {
		calls++
		if calls == 2 {
			return errors.New("sink is full")
		}
		return nil
	}).run(ctx)
	var tErr transferError
	require.ErrorAs(t, err, &tErr)
	require.Equal(t, transferErrorCallback, tErr.Kind)
	require.Equal(t, 1, tErr.Delivered)
}

func TestErrTransferMapping(t *testing.T) {
	c := newCodecInternals(ModeVAAPI, 3, false, nil)

	err := c.errTransfer("x", transferError{Kind: transferErrorSubmission, Err: astiav.ErrEinval})
	require.ErrorAs(t, err, &ErrSubmission{})
	require.ErrorIs(t, err, astiav.ErrEinval)

	err = c.errTransfer("x", transferError{Kind: transferErrorDrain, Delivered: 4, Err: astiav.ErrEinval})
	var drainErr ErrDrain
	require.ErrorAs(t, err, &drainErr)
	require.Equal(t, 4, drainErr.Delivered)
	require.Equal(t, ModeVAAPI, drainErr.Backend)
	require.Equal(t, Channel(3), drainErr.Channel)

	err = c.errTransfer("x", transferError{Kind: transferErrorCallback, Err: errors.New("cb")})
	require.ErrorAs(t, err, &ErrDrain{})
	require.Contains(t, err.Error(), "callback")
}

func TestTransferEofBeforeResendIsSubmissionError(t *testing.T) {
	ctx := context.Background()
	f := &fakeNative{queued: 1, draining: true}
	sends := 0
	tr := f.transfer(false, nil)
	tr.Send = func() error {
		sends++
		return astiav.ErrEagain
	}
	n, err := tr.run(ctx)
	var tErr transferError
	require.ErrorAs(t, err, &tErr)
	require.Equal(t, transferErrorSubmission, tErr.Kind)
	require.ErrorIs(t, err, astiav.ErrEof)
	require.Equal(t, 1, sends)
	require.Equal(t, 1, n)
	require.Equal(t, 1, tErr.Delivered)
}
