package codec

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/logger"
	"github.com/xaionaro-go/hwcodec/packet"
)

// HardwareDecoder decodes into device memory through VAAPI or QSV.
type HardwareDecoder struct {
	decoderCommons
	backend             hardwareBackend
	deviceType          astiav.HardwareDeviceType
	device              *astiav.HardwareDeviceContext
	hardwarePixelFormat astiav.PixelFormat
	frames              *HardwareFrames
}

var _ Decoder = (*HardwareDecoder)(nil)

func newHardwareDecoder(
	backend hardwareBackend,
	chn Channel,
	opts ...Option,
) *HardwareDecoder {
	return &HardwareDecoder{
		decoderCommons: decoderCommons{
			codecInternals: newCodecInternals(backend.Mode, chn, false, opts),
		},
		backend: backend,
	}
}

func NewVAAPIDecoder(chn Channel, opts ...Option) *HardwareDecoder {
	return newHardwareDecoder(hardwareBackendVAAPI, chn, opts...)
}

func NewQSVDecoder(chn Channel, opts ...Option) *HardwareDecoder {
	return newHardwareDecoder(hardwareBackendQSV, chn, opts...)
}

func (d *HardwareDecoder) Open(
	ctx context.Context,
	codecID astiav.CodecID,
	cb DecodeCallback,
) (_err error) {
	ctx = d.logCtx(ctx)
	defer d.checkCallCount(ctx)()
	logger.Debugf(ctx, "Open(ctx, %s)", codecID)
	defer func() { logger.Debugf(ctx, "/Open(ctx, %s): %v", codecID, _err) }()
	if err := d.checkOpenArgs(cb); err != nil {
		return err
	}
	if err := d.beginOpen(ctx); err != nil {
		return err
	}
	defer func() { d.endOpen(ctx, _err) }()
	d.closer.Add(d.resetHardware)

	deviceType, err := d.backend.probeDeviceType(ctx)
	if err != nil {
		return d.errBackendInit("probing the device type", err)
	}
	d.deviceType = deviceType

	var hwPixFmt astiav.PixelFormat
	d.codec, hwPixFmt, err = d.backend.selectDecoder(ctx, codecID, deviceType)
	if err != nil {
		return d.errBackendInit("selecting a decoder", err)
	}
	d.hardwarePixelFormat = hwPixFmt
	ctx = logger.WithField(ctx, "codec", d.codec.Name())
	logger.Debugf(ctx, "selected decoder '%s' with surface format %s", d.codec.Name(), hwPixFmt)

	if err := d.allocContext(ctx); err != nil {
		return err
	}

	d.device, err = d.backend.createDevice(ctx, deviceType, d.options)
	if err != nil {
		return d.errBackendInit("acquiring the device", err)
	}
	d.closer.Add(d.device.Free)

	cc := d.codecContext
	cc.SetPixelFormat(hwPixFmt)
	cc.SetColorRange(astiav.ColorRangeJpeg)
	cc.SetFramerate(astiav.NewRational(25, 1))
	cc.SetTimeBase(astiav.NewRational(1, 25))
	cc.SetPktTimeBase(astiav.NewRational(1, 90000))
	cc.SetPixelFormatCallback(pixelFormatCallback(ctx, hwPixFmt))
	cc.SetHardwareDeviceContext(d.device)

	if err := d.openContext(ctx); err != nil {
		return err
	}
	d.callback = cb
	return nil
}

// resetHardware is run by the closer after the codec context is freed.
func (d *HardwareDecoder) resetHardware() {
	d.device = nil
	d.frames = nil
	d.hardwarePixelFormat = astiav.PixelFormatNone
}

// bindFrames publishes the pool libav created while decoding the first
// picture and tracks the geometry libav renegotiates afterwards. The native
// pool itself is never cached: libav replaces it on renegotiation.
func (d *HardwareDecoder) bindFrames(ctx context.Context, f *astiav.Frame) {
	if d.frames != nil {
		if d.frames.setGeometry(ctx, f.Width(), f.Height()) {
			logger.Debugf(ctx, "the pool is renegotiated, now %s", d.frames)
		}
		return
	}
	d.frames = newBoundHardwareFrames(
		d.String(),
		d.device,
		d.currentPool,
		HardwareFramesProperties{
			DeviceType:          d.deviceType,
			HardwarePixelFormat: d.hardwarePixelFormat,
			SoftwarePixelFormat: astiav.PixelFormatNone,
			Width:               f.Width(),
			Height:              f.Height(),
		},
	)
}

// currentPool belongs to the codec context and is freed with it.
func (d *HardwareDecoder) currentPool() *astiav.HardwareFramesContext {
	if d.codecContext == nil {
		return nil
	}
	return d.codecContext.HardwareFramesContext()
}

func (d *HardwareDecoder) Decode(
	ctx context.Context,
	packetID PacketID,
	unit *packet.Unit,
) error {
	ctx = d.logCtx(ctx)
	defer d.checkCallCount(ctx)()
	logger.Tracef(ctx, "Decode(ctx, %d, %s)", packetID, unit)
	return d.decodeUnit(ctx, packetID, unit, d.bindFrames)
}

func (d *HardwareDecoder) Flush(
	ctx context.Context,
	packetID PacketID,
) (_err error) {
	ctx = d.logCtx(ctx)
	defer d.checkCallCount(ctx)()
	logger.Debugf(ctx, "Flush(ctx, %d)", packetID)
	defer func() { logger.Debugf(ctx, "/Flush(ctx, %d): %v", packetID, _err) }()
	return d.flush(ctx, packetID, d.bindFrames)
}

func (d *HardwareDecoder) Close(ctx context.Context) error {
	ctx = d.logCtx(ctx)
	defer d.checkCallCount(ctx)()
	if d.frames != nil {
		d.frames.Release(ctx)
	}
	return d.close(ctx)
}

func (d *HardwareDecoder) HardwareFrames() *HardwareFrames {
	if d.state != codecStateOpen || d.frames == nil || d.currentPool() == nil {
		return nil
	}
	return d.frames
}

func (d *HardwareDecoder) HardwarePixelFormat() astiav.PixelFormat {
	return d.hardwarePixelFormat
}

func (d *HardwareDecoder) String() string {
	return fmt.Sprintf("Hardware%s", d.codecInternals.String())
}
