// hardware_backend.go describes the hardware APIs the backends drive.

package codec

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/avconv"
	"github.com/xaionaro-go/hwcodec/logger"
)

type hardwareBackend struct {
	Mode                Mode
	DeviceTypeName      string
	HardwarePixelFormat astiav.PixelFormat
	// CodecNameSuffix is appended to the codec descriptor name to get the
	// dedicated implementation ("h264" -> "h264_vaapi").
	CodecNameSuffix string
	// DefaultSoftwarePixelFormat is the pool upload format if none is given.
	DefaultSoftwarePixelFormat astiav.PixelFormat
}

var (
	hardwareBackendVAAPI = hardwareBackend{
		Mode:                       ModeVAAPI,
		DeviceTypeName:             "vaapi",
		HardwarePixelFormat:        astiav.PixelFormatVaapi,
		CodecNameSuffix:            "vaapi",
		DefaultSoftwarePixelFormat: astiav.PixelFormatNv12,
	}
	hardwareBackendQSV = hardwareBackend{
		Mode:                       ModeQSV,
		DeviceTypeName:             "qsv",
		HardwarePixelFormat:        astiav.PixelFormatQsv,
		CodecNameSuffix:            "qsv",
		DefaultSoftwarePixelFormat: astiav.PixelFormatNv12,
	}
)

func (b hardwareBackend) String() string {
	return b.DeviceTypeName
}

// probeDeviceType resolves the device type by name, failing with the list of
// device types known to libav. Whether the type is compiled in and present
// is checked later by createDevice.
func (b hardwareBackend) probeDeviceType(ctx context.Context) (astiav.HardwareDeviceType, error) {
	t := avconv.HardwareDeviceTypeFromString(ctx, b.DeviceTypeName)
	if t == astiav.HardwareDeviceTypeNone {
		return t, fmt.Errorf(
			"hardware device type '%s' is unknown to libav; known types: %s",
			b.DeviceTypeName, avconv.HardwareDeviceTypeNames(avconv.KnownHardwareDeviceTypes()),
		)
	}
	return t, nil
}

func (b hardwareBackend) codecName(codecID astiav.CodecID) string {
	return codecID.Name() + "_" + b.CodecNameSuffix
}

// hardwarePixelFormatOf returns the surface format of codec for the device
// type if it is reachable through a device context.
func hardwarePixelFormatOf(
	codec *astiav.Codec,
	deviceType astiav.HardwareDeviceType,
) (astiav.PixelFormat, bool) {
	for _, cfg := range codec.HardwareConfigs() {
		if !cfg.MethodFlags().Has(astiav.CodecHardwareConfigMethodFlagHwDeviceCtx) {
			continue
		}
		if cfg.HardwareDeviceType() != deviceType {
			continue
		}
		return cfg.PixelFormat(), true
	}
	return astiav.PixelFormatNone, false
}

// selectDecoder returns a decoder for codecID that can decode through the device type.
func (b hardwareBackend) selectDecoder(
	ctx context.Context,
	codecID astiav.CodecID,
	deviceType astiav.HardwareDeviceType,
) (*astiav.Codec, astiav.PixelFormat, error) {
	var candidates []*astiav.Codec
	if c := astiav.FindDecoder(codecID); c != nil {
		candidates = append(candidates, c)
	}
	if c := astiav.FindDecoderByName(b.codecName(codecID)); c != nil {
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil, astiav.PixelFormatNone, fmt.Errorf("no decoder for codec '%s'", codecID)
	}
	for _, c := range candidates {
		pixFmt, ok := hardwarePixelFormatOf(c, deviceType)
		logger.Tracef(ctx, "decoder '%s' supports %s: %t (%s)", c.Name(), deviceType, ok, pixFmt)
		if ok {
			return c, pixFmt, nil
		}
	}
	return nil, astiav.PixelFormatNone, fmt.Errorf("no decoder for codec '%s' supports the device type %s", codecID, deviceType)
}

func (b hardwareBackend) createDevice(
	ctx context.Context,
	deviceType astiav.HardwareDeviceType,
	opts Options,
) (*astiav.HardwareDeviceContext, error) {
	var name HardwareDeviceName
	if v, ok := OptionLatest[OptionHardwareDeviceName](opts); ok {
		name = HardwareDeviceName(v)
	}
	var flags int
	if v, ok := OptionLatest[OptionHardwareDeviceFlags](opts); ok {
		flags = int(v)
	}
	logger.Debugf(ctx, "creating a %s device context (name:'%s', flags:%X)", deviceType, name, flags)
	dev, err := astiav.CreateHardwareDeviceContext(deviceType, string(name), nil, flags)
	if err != nil {
		return nil, fmt.Errorf("unable to create a %s device context (name:'%s'): %w", deviceType, name, err)
	}
	return dev, nil
}

// pixelFormatCallback accepts exactly the given hardware surface format.
func pixelFormatCallback(
	ctx context.Context,
	want astiav.PixelFormat,
) func([]astiav.PixelFormat) astiav.PixelFormat {
	return func(pixFmts []astiav.PixelFormat) astiav.PixelFormat {
		for _, pixFmt := range pixFmts {
			if pixFmt == want {
				return pixFmt
			}
		}
		logger.Errorf(ctx, "the hardware pixel format %s is not offered (offered: %v)", want, pixFmts)
		return astiav.PixelFormatNone
	}
}
