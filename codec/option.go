package codec

type Option interface {
	codecOption()
}

type Options []Option

func OptionLatest[T Option](s Options) (ret T, ok bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if v, ok := s[i].(T); ok {
			return v, true
		}
	}
	return
}

// OptionHardwareDeviceName selects a specific device (e.g. "/dev/dri/renderD129")
// instead of the default one.
type OptionHardwareDeviceName HardwareDeviceName

func (OptionHardwareDeviceName) codecOption() {}

// OptionHardwareDeviceFlags is passed as-is to av_hwdevice_ctx_create.
type OptionHardwareDeviceFlags int

func (OptionHardwareDeviceFlags) codecOption() {}
