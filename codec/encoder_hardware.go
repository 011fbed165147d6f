package codec

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/frame"
	"github.com/xaionaro-go/hwcodec/internal"
	"github.com/xaionaro-go/hwcodec/logger"
)

// HardwareEncoder encodes from device memory through VAAPI or QSV.
type HardwareEncoder struct {
	encoderCommons
	backend hardwareBackend
	frames  *HardwareFrames
}

var _ Encoder = (*HardwareEncoder)(nil)

func newHardwareEncoder(
	backend hardwareBackend,
	chn Channel,
	opts ...Option,
) *HardwareEncoder {
	return &HardwareEncoder{
		encoderCommons: encoderCommons{
			codecInternals: newCodecInternals(backend.Mode, chn, true, opts),
		},
		backend: backend,
	}
}

func NewVAAPIEncoder(chn Channel, opts ...Option) *HardwareEncoder {
	return newHardwareEncoder(hardwareBackendVAAPI, chn, opts...)
}

func NewQSVEncoder(chn Channel, opts ...Option) *HardwareEncoder {
	return newHardwareEncoder(hardwareBackendQSV, chn, opts...)
}

func (e *HardwareEncoder) String() string {
	return fmt.Sprintf("Hardware%s", e.codecInternals.String())
}

func (e *HardwareEncoder) Open(
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

func (e *HardwareEncoder) open(
	ctx context.Context,
	params EncoderParams,
	cb EncodeCallback,
) (_err error) {
	if err := e.beginOpen(ctx); err != nil {
		return err
	}
	defer func() { e.endOpen(ctx, _err) }()
	e.closer.Add(func() { e.frames = nil })

	deviceType, err := e.backend.probeDeviceType(ctx)
	if err != nil {
		return e.errBackendInit("probing the device type", err)
	}

	codecName := e.backend.codecName(params.CodecID)
	e.codec = astiav.FindEncoderByName(codecName)
	if e.codec == nil {
		return e.errBackendInit(fmt.Sprintf("no encoder '%s' in this libav build", codecName), nil)
	}
	ctx = logger.WithField(ctx, "codec", e.codec.Name())
	if err := e.allocContext(ctx); err != nil {
		return err
	}

	if params.HardwareFrames != nil {
		err = e.borrowFrames(ctx, params.HardwareFrames, deviceType)
	} else {
		err = e.createFrames(ctx, params, deviceType)
	}
	if err != nil {
		return err
	}
	props := e.frames.Properties(ctx)
	if params.Width == 0 && params.Height == 0 {
		params.Width, params.Height = props.Width, props.Height
	}
	if err := e.configure(ctx, params, e.backend.HardwarePixelFormat); err != nil {
		return err
	}
	pool := e.frames.nativePool(ctx)
	if pool == nil {
		return e.errBackendInit(fmt.Sprintf("%s has no native pool", e.frames), nil)
	}
	e.codecContext.SetHardwareFramesContext(pool)

	if err := e.openContext(ctx); err != nil {
		return err
	}
	e.callback = cb
	e.params = params
	return nil
}

func (e *HardwareEncoder) borrowFrames(
	ctx context.Context,
	external *HardwareFrames,
	deviceType astiav.HardwareDeviceType,
) error {
	if external.DeviceType() != deviceType {
		return e.errBackendInit(fmt.Sprintf(
			"the external hardware frames are of device type %s, while %s is required",
			external.DeviceType(), deviceType,
		), nil)
	}
	borrowed, err := external.Borrow(ctx)
	if err != nil {
		return e.errBackendInit("borrowing the external hardware frames", err)
	}
	logger.Debugf(ctx, "using external %s", borrowed)
	e.frames = borrowed
	e.closer.Add(func() {
		logger.Tracef(ctx, "not freeing the borrowed hardware frames, only returning them")
		borrowed.Return(ctx)
	})
	return nil
}

func (e *HardwareEncoder) createFrames(
	ctx context.Context,
	params EncoderParams,
	deviceType astiav.HardwareDeviceType,
) error {
	if params.Width <= 0 || params.Height <= 0 {
		return e.errBackendInit(fmt.Sprintf("invalid picture size %dx%d", params.Width, params.Height), nil)
	}
	swPixFmt := params.PixelFormat
	if swPixFmt == astiav.PixelFormatNone || frame.IsHardwarePixelFormat(swPixFmt) {
		swPixFmt = e.backend.DefaultSoftwarePixelFormat
	}

	device, err := e.backend.createDevice(ctx, deviceType, e.options)
	if err != nil {
		return e.errBackendInit("acquiring the device", err)
	}
	pool := astiav.AllocHardwareFramesContext(device)
	if pool == nil {
		device.Free()
		return e.errBackendInit("unable to allocate a hardware frames context", nil)
	}
	props := HardwareFramesProperties{
		DeviceType:          deviceType,
		HardwarePixelFormat: e.backend.HardwarePixelFormat,
		SoftwarePixelFormat: swPixFmt,
		Width:               params.Width,
		Height:              params.Height,
		InitialPoolSize:     1,
	}
	frames := newHardwareFrames(e.String(), device, pool, props, func() {
		pool.Free()
		device.Free()
	})
	e.closer.Add(func() { frames.Release(ctx) })

	pool.SetHardwarePixelFormat(props.HardwarePixelFormat)
	pool.SetSoftwarePixelFormat(props.SoftwarePixelFormat)
	pool.SetWidth(props.Width)
	pool.SetHeight(props.Height)
	pool.SetInitialPoolSize(props.InitialPoolSize)
	if err := pool.Initialize(); err != nil {
		return e.errBackendInit(fmt.Sprintf("unable to initialize the hardware frames %s", props), err)
	}
	logger.Debugf(ctx, "created %s", frames)
	e.frames = frames
	return nil
}

func (e *HardwareEncoder) reopen(ctx context.Context) error {
	params, cb := e.params, e.callback
	if e.frames != nil && e.frames.IsBorrowed() {
		// the borrowed view is returned on close, so the pool is borrowed anew
		params.HardwareFrames = &HardwareFrames{hardwareFramesShared: e.frames.hardwareFramesShared}
	}
	if err := e.close(ctx); err != nil {
		return fmt.Errorf("unable to close the encoder: %w", err)
	}
	return e.open(ctx, params, cb)
}

// Encode accepts both host-memory pictures (uploaded into the pool first)
// and surfaces of the encoder's pool.
func (e *HardwareEncoder) Encode(
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
	internal.Assert(ctx, e.frames != nil, "an open hardware encoder has no frames pool")
	if f != nil && !frame.IsHardwarePixelFormat(f.PixelFormat()) {
		pool := e.frames.nativePool(ctx)
		if pool == nil {
			return ErrSubmission{Backend: e.mode, Channel: e.channel, Reason: "the hardware frames are released"}
		}
		hwFrame := frame.Pool.Get()
		defer frame.Pool.Put(hwFrame)
		if err := frame.UploadToHardware(hwFrame, f, pool); err != nil {
			return ErrSubmission{Backend: e.mode, Channel: e.channel, Reason: "uploading the picture", Err: err}
		}
		f = hwFrame
	}
	return e.encodeFrame(ctx, frameID, f)
}

func (e *HardwareEncoder) Flush(
	ctx context.Context,
	frameID FrameID,
) (_err error) {
	ctx = e.logCtx(ctx)
	defer e.checkCallCount(ctx)()
	logger.Debugf(ctx, "Flush(ctx, %d)", frameID)
	defer func() { logger.Debugf(ctx, "/Flush(ctx, %d): %v", frameID, _err) }()
	return e.flush(ctx, frameID, e.reopen)
}

func (e *HardwareEncoder) Close(ctx context.Context) error {
	ctx = e.logCtx(ctx)
	defer e.checkCallCount(ctx)()
	return e.close(ctx)
}

// HardwareFrames returns the pool the encoder consumes surfaces from.
func (e *HardwareEncoder) HardwareFrames() *HardwareFrames {
	if e.state != codecStateOpen {
		return nil
	}
	return e.frames
}
