// info.go describes a decoded picture without exposing the native handle.

package frame

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

type Info struct {
	Width       int
	Height      int
	PixelFormat astiav.PixelFormat
	Pts         int64
	IsHardware  bool
}

func InfoOf(f *astiav.Frame) Info {
	return Info{
		Width:       f.Width(),
		Height:      f.Height(),
		PixelFormat: f.PixelFormat(),
		Pts:         f.Pts(),
		IsHardware:  IsHardwarePixelFormat(f.PixelFormat()),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%dx%d:%s@%d(hw:%t)", i.Width, i.Height, i.PixelFormat, i.Pts, i.IsHardware)
}

// IsHardwarePixelFormat reports whether pixels of this format live in device memory.
func IsHardwarePixelFormat(pf astiav.PixelFormat) bool {
	switch pf {
	case astiav.PixelFormatVaapi,
		astiav.PixelFormatQsv,
		astiav.PixelFormatCuda,
		astiav.PixelFormatVideotoolbox,
		astiav.PixelFormatMediacodec:
		return true
	}
	return false
}
