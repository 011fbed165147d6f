// Package codec provides decoders and encoders with interchangeable
// backends (software, VAAPI, QSV) built on libav.
package codec

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/hwcodec/logger"
	"go.uber.org/atomic"
)

const (
	extraDefensiveChecks = true
)

type codecState int

const (
	codecStateClosed = codecState(iota)
	codecStateOpen
)

// codecInternals is the backend-agnostic part of every decoder and encoder.
// It is not safe for concurrent use.
type codecInternals struct {
	mode         Mode
	channel      Channel
	isEncoder    bool
	options      Options
	state        codecState
	codec        *astiav.Codec
	codecContext *astiav.CodecContext
	closer       *astikit.Closer
	callCount    atomic.Int64
}

func newCodecInternals(
	mode Mode,
	chn Channel,
	isEncoder bool,
	opts Options,
) codecInternals {
	return codecInternals{
		mode:      mode,
		channel:   chn,
		isEncoder: isEncoder,
		options:   opts,
	}
}

func (c *codecInternals) Mode() Mode {
	return c.mode
}

func (c *codecInternals) Channel() Channel {
	return c.channel
}

func (c *codecInternals) IsOpen() bool {
	return c.state == codecStateOpen
}

func (c *codecInternals) kind() string {
	if c.isEncoder {
		return "Encoder"
	}
	return "Decoder"
}

func (c *codecInternals) String() string {
	if c.codec == nil {
		return fmt.Sprintf("%s(%s, %s)", c.kind(), c.mode, c.channel)
	}
	return fmt.Sprintf("%s(%s, %s, %s)", c.kind(), c.mode, c.channel, c.codec.Name())
}

func (c *codecInternals) logCtx(ctx context.Context) context.Context {
	ctx = logger.WithField(ctx, "chn", c.channel)
	ctx = logger.WithField(ctx, "backend", c.mode)
	ctx = logger.WithField(ctx, "is_encoder", c.isEncoder)
	return ctx
}

func (c *codecInternals) checkCallCount(context.Context) context.CancelFunc {
	if !extraDefensiveChecks {
		return func() {}
	}
	if c.callCount.Add(1) > 1 {
		s := make([]byte, 10<<20)
		n := runtime.Stack(s, true)
		s = s[:n]
		panic(fmt.Sprintf("concurrent call detected to %s methods, this is a bug:\n%s", c.kind(), s))
	}
	return func() {
		c.callCount.Add(-1)
	}
}

func (c *codecInternals) errBackendInit(reason string, err error) error {
	return ErrBackendInit{Backend: c.mode, Channel: c.channel, Reason: reason, Err: err}
}

func (c *codecInternals) errInvalidUsage(format string, args ...any) error {
	return ErrInvalidUsage{Backend: c.mode, Channel: c.channel, Reason: fmt.Sprintf(format, args...)}
}

// errTransfer converts a transfer failure into the public taxonomy.
func (c *codecInternals) errTransfer(reason string, err error) error {
	var tErr transferError
	if !errors.As(err, &tErr) {
		return ErrDrain{Backend: c.mode, Channel: c.channel, Reason: reason, Err: err}
	}
	switch tErr.Kind {
	case transferErrorSubmission:
		return ErrSubmission{Backend: c.mode, Channel: c.channel, Reason: reason, Err: tErr.Err}
	case transferErrorCallback:
		return ErrDrain{
			Backend:   c.mode,
			Channel:   c.channel,
			Reason:    reason + ": the callback failed",
			Delivered: tErr.Delivered,
			Err:       tErr.Err,
		}
	default:
		return ErrDrain{Backend: c.mode, Channel: c.channel, Reason: reason, Delivered: tErr.Delivered, Err: tErr.Err}
	}
}

// beginOpen must be paired with endOpen.
func (c *codecInternals) beginOpen(ctx context.Context) error {
	if c.state == codecStateOpen {
		return c.errInvalidUsage("already open")
	}
	c.closer = astikit.NewCloser()
	return nil
}

func (c *codecInternals) endOpen(ctx context.Context, err error) {
	if err != nil {
		logger.Debugf(ctx, "got an error, releasing what was created so far: %v", err)
		if closeErr := c.closeNative(ctx); closeErr != nil {
			logger.Errorf(ctx, "unable to release the partially opened %s: %v", c.kind(), closeErr)
		}
		return
	}
	c.state = codecStateOpen
}

// allocContext allocates the codec context for c.codec and registers it for teardown.
func (c *codecInternals) allocContext(ctx context.Context) error {
	c.codecContext = astiav.AllocCodecContext(c.codec)
	if c.codecContext == nil {
		return c.errBackendInit(fmt.Sprintf("unable to allocate a codec context for '%s'", c.codec.Name()), nil)
	}
	c.closer.Add(c.codecContext.Free)
	c.closer.Add(func() {
		logger.Tracef(ctx, "CodecContext.Free()")
	})
	return nil
}

// openContext opens the allocated codec context with "tune=zerolatency".
func (c *codecInternals) openContext(ctx context.Context) error {
	options := astiav.NewDictionary()
	defer options.Free()
	if err := options.Set("tune", "zerolatency", 0); err != nil {
		return c.errBackendInit("unable to set the tune option", err)
	}
	logger.Debugf(ctx, "opening the codec '%s'", c.codec.Name())
	if err := c.codecContext.Open(c.codec, options); err != nil {
		return c.errBackendInit(fmt.Sprintf("unable to open the codec '%s'", c.codec.Name()), err)
	}
	return nil
}

func (c *codecInternals) closeNative(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "closeNative")
	defer func() { logger.Debugf(ctx, "/closeNative: %v", _err) }()
	logger.Tracef(ctx, "closing the %s, due to: %s", c.kind(), debug.Stack())
	defer func() {
		c.state = codecStateClosed
		c.codec = nil
		c.codecContext = nil
		c.closer = nil
	}()
	if c.closer == nil {
		return nil
	}
	logger.Flush(ctx) // flushing the logs before a SEGFAULT-risky operation
	return c.closer.Close()
}

// flushBuffers resets libav's internal state after a sentinel. Encoders
// support it only with the encoder-flush capability, and report false otherwise.
func (c *codecInternals) flushBuffers(ctx context.Context) bool {
	if c.isEncoder {
		caps := c.codec.Capabilities()
		logger.Tracef(ctx, "Capabilities: %08x", caps)
		if caps&astiav.CodecCapabilityEncoderFlush == 0 {
			return false
		}
	}
	logger.Tracef(ctx, "flushing buffers")
	c.codecContext.FlushBuffers()
	return true
}
