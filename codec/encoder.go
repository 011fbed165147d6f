package codec

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/davecgh/go-spew/spew"
	"github.com/xaionaro-go/hwcodec/logger"
	"github.com/xaionaro-go/hwcodec/packet"
	"github.com/xaionaro-go/typing"
)

// EncodeCallback receives every encoded packet together with the ID of the
// frame that produced it. The packet is unreferenced right after the
// callback returns (see packet.UnitFromAstiav to keep a copy).
type EncodeCallback func(ctx context.Context, frameID FrameID, pkt *astiav.Packet) error

type EncoderParams struct {
	CodecID     astiav.CodecID
	PixelFormat astiav.PixelFormat

	// HardwareFrames is an external pool to encode from; it is borrowed and
	// never freed by the encoder. Software encoders ignore it.
	HardwareFrames *HardwareFrames

	// Width and Height default to the dimensions of HardwareFrames.
	Width  int
	Height int

	TimeBase  typing.Optional[astiav.Rational]
	FrameRate typing.Optional[astiav.Rational]
	GOPSize   typing.Optional[int]
	BitRate   typing.Optional[int64]
}

func (p EncoderParams) String() string {
	return fmt.Sprintf("%s:%s:%dx%d", p.CodecID, p.PixelFormat, p.Width, p.Height)
}

func (p EncoderParams) timeBase() astiav.Rational {
	if p.TimeBase.IsSet() {
		return p.TimeBase.Get()
	}
	return astiav.NewRational(1, 25)
}

func (p EncoderParams) frameRate() astiav.Rational {
	if p.FrameRate.IsSet() {
		return p.FrameRate.Get()
	}
	return astiav.NewRational(25, 1)
}

func (p EncoderParams) gopSize() int {
	if p.GOPSize.IsSet() {
		return p.GOPSize.Get()
	}
	return 30
}

type Encoder interface {
	Closer
	Open(ctx context.Context, params EncoderParams, cb EncodeCallback) error

	// Encode submits one picture and delivers all packets ready so far.
	// A nil picture only drains.
	Encode(ctx context.Context, frameID FrameID, f *astiav.Frame) error

	Flush(ctx context.Context, frameID FrameID) error
	IsOpen() bool
	Mode() Mode
	Channel() Channel
	String() string
}

// encoderCommons implements the drain machinery shared by the encoder backends.
type encoderCommons struct {
	codecInternals
	callback EncodeCallback
	params   EncoderParams
}

func (e *encoderCommons) checkOpenArgs(
	ctx context.Context,
	params EncoderParams,
	cb EncodeCallback,
) error {
	if cb == nil {
		return e.errInvalidUsage("the encode callback is not set")
	}
	if e.state == codecStateOpen {
		return e.errInvalidUsage("already open")
	}
	logger.Debugf(ctx, "encoder params: %s", spew.Sdump(params))
	return nil
}

// configure sets the parameters common to all the encoder backends.
func (e *encoderCommons) configure(
	ctx context.Context,
	params EncoderParams,
	pixFmt astiav.PixelFormat,
) error {
	if params.Width <= 0 || params.Height <= 0 {
		return e.errBackendInit(fmt.Sprintf("invalid picture size %dx%d", params.Width, params.Height), nil)
	}
	cc := e.codecContext
	cc.SetWidth(params.Width)
	cc.SetHeight(params.Height)
	cc.SetPixelFormat(pixFmt)
	cc.SetTimeBase(params.timeBase())
	cc.SetFramerate(params.frameRate())
	cc.SetGopSize(params.gopSize())
	cc.SetMaxBFrames(0)
	if params.BitRate.IsSet() {
		cc.SetBitRate(params.BitRate.Get())
	}
	return nil
}

func (e *encoderCommons) encodeFrame(
	ctx context.Context,
	frameID FrameID,
	f *astiav.Frame,
) error {
	pkt := packet.Pool.Get()
	defer packet.Pool.Put(pkt)

	t := transfer{
		IsSentinel: f == nil,
		Send: func() error {
			return e.codecContext.SendFrame(f)
		},
		Receive: func() error {
			return e.codecContext.ReceivePacket(pkt)
		},
		Deliver: func() error {
			defer pkt.Unref()
			if f != nil && pkt.Pts() == astiav.NoPtsValue {
				pkt.SetPts(f.Pts())
			}
			return e.callback(ctx, frameID, pkt)
		},
	}
	if _, err := t.run(ctx); err != nil {
		return e.errTransfer("encoding failed", err)
	}
	return nil
}

// flush drains the encoder. Without the encoder-flush capability libav
// cannot leave the draining mode, so reopen is called to accept new pictures.
func (e *encoderCommons) flush(
	ctx context.Context,
	frameID FrameID,
	reopen func(context.Context) error,
) error {
	if e.state != codecStateOpen {
		return nil
	}
	if err := e.encodeFrame(ctx, frameID, nil); err != nil {
		return err
	}
	if e.flushBuffers(ctx) {
		return nil
	}
	logger.Debugf(ctx, "the encoder '%s' does not support flushing, reopening it", e.codec.Name())
	return reopen(ctx)
}

func (e *encoderCommons) close(ctx context.Context) error {
	e.callback = nil
	return e.closeNative(ctx)
}
