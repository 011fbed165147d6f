// transfer.go moves picture data between host memory and device surfaces.

package frame

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

// TransferToRAM downloads the device surface src into the host-memory frame dst.
func TransferToRAM(dst, src *astiav.Frame) error {
	if !IsHardwarePixelFormat(src.PixelFormat()) {
		return fmt.Errorf("is not a hardware-backed frame: %s", src.PixelFormat())
	}
	if err := src.TransferHardwareData(dst); err != nil {
		return fmt.Errorf("unable to transfer the frame from hardware to RAM: %w", err)
	}
	dst.SetPts(src.Pts())
	return nil
}

// UploadToHardware allocates a surface from pool into dst and copies the
// host-memory picture src into it.
func UploadToHardware(dst, src *astiav.Frame, pool *astiav.HardwareFramesContext) error {
	if pool == nil {
		return fmt.Errorf("no hardware frames pool")
	}
	if err := dst.AllocHardwareBuffer(pool); err != nil {
		return fmt.Errorf("unable to allocate a hardware surface: %w", err)
	}
	if err := src.TransferHardwareData(dst); err != nil {
		return fmt.Errorf("unable to transfer the frame from RAM to hardware: %w", err)
	}
	dst.SetPts(src.Pts())
	return nil
}
