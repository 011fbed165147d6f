package codec

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/frame"
	"github.com/xaionaro-go/hwcodec/logger"
)

type SoftwareEncoder struct {
	encoderCommons
}

var _ Encoder = (*SoftwareEncoder)(nil)

func NewSoftwareEncoder(chn Channel) *SoftwareEncoder {
	return &SoftwareEncoder{
		encoderCommons: encoderCommons{
			codecInternals: newCodecInternals(ModeSoftware, chn, true, nil),
		},
	}
}

func (e *SoftwareEncoder) Open(
	ctx context.Context,
	params EncoderParams,
	cb EncodeCallback,
) (_err error) {
	ctx = e.logCtx(ctx)
	defer e.checkCallCount(ctx)()
	logger.Debugf(ctx, "Open(ctx, %s)", params)
	defer func() { logger.Debugf(ctx, "/Open(ctx, %s): %v", params, _err) }()
	if err := e.checkOpenArgs(ctx, params, cb); err != nil {
		return err
	}
	return e.open(ctx, params, cb)
}

func (e *SoftwareEncoder) open(
	ctx context.Context,
	params EncoderParams,
	cb EncodeCallback,
) (_err error) {
	if err := e.beginOpen(ctx); err != nil {
		return err
	}
	defer func() { e.endOpen(ctx, _err) }()
	if params.HardwareFrames != nil {
		logger.Debugf(ctx, "a software encoder does not use hardware frames, ignoring %s", params.HardwareFrames)
		params.HardwareFrames = nil
	}

	e.codec = astiav.FindEncoder(params.CodecID)
	if e.codec == nil {
		return e.errBackendInit(fmt.Sprintf("no software encoder for '%s'", params.CodecID), nil)
	}
	ctx = logger.WithField(ctx, "codec", e.codec.Name())
	if err := e.allocContext(ctx); err != nil {
		return err
	}

	pixFmt := params.PixelFormat
	if pixFmt == astiav.PixelFormatNone {
		if pixFmts := e.codec.PixelFormats(); len(pixFmts) > 0 {
			pixFmt = pixFmts[0]
			logger.Debugf(ctx, "the pixel format is not set, using %s", pixFmt)
		}
	}
	if err := e.configure(ctx, params, pixFmt); err != nil {
		return err
	}
	e.codecContext.SetStrictStdCompliance(astiav.StrictStdComplianceUnofficial)

	if err := e.openContext(ctx); err != nil {
		return err
	}
	e.callback = cb
	e.params = params
	return nil
}

func (e *SoftwareEncoder) reopen(ctx context.Context) error {
	params, cb := e.params, e.callback
	if err := e.close(ctx); err != nil {
		return fmt.Errorf("unable to close the encoder: %w", err)
	}
	return e.open(ctx, params, cb)
}

// Encode accepts host-memory pictures; device-resident ones are downloaded first.
func (e *SoftwareEncoder) Encode(
	ctx context.Context,
	frameID FrameID,
	f *astiav.Frame,
) error {
	ctx = e.logCtx(ctx)
	defer e.checkCallCount(ctx)()
	logger.Tracef(ctx, "Encode(ctx, %d, %p)", frameID, f)
	if e.state != codecStateOpen {
		return e.errInvalidUsage("Encode is called on a closed encoder")
	}
	if f != nil && frame.IsHardwarePixelFormat(f.PixelFormat()) {
		ramFrame := frame.Pool.Get()
		defer frame.Pool.Put(ramFrame)
		if err := frame.TransferToRAM(ramFrame, f); err != nil {
			return ErrSubmission{Backend: e.mode, Channel: e.channel, Reason: "downloading the picture", Err: err}
		}
		f = ramFrame
	}
	return e.encodeFrame(ctx, frameID, f)
}

func (e *SoftwareEncoder) Flush(
	ctx context.Context,
	frameID FrameID,
) (_err error) {
	ctx = e.logCtx(ctx)
	defer e.checkCallCount(ctx)()
	logger.Debugf(ctx, "Flush(ctx, %d)", frameID)
	defer func() { logger.Debugf(ctx, "/Flush(ctx, %d): %v", frameID, _err) }()
	return e.flush(ctx, frameID, e.reopen)
}

func (e *SoftwareEncoder) Close(ctx context.Context) error {
	ctx = e.logCtx(ctx)
	defer e.checkCallCount(ctx)()
	return e.close(ctx)
}
