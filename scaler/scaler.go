// Package scaler converts host-memory pictures between sizes and pixel formats.
package scaler

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
)

type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

func ResolutionOf(f *astiav.Frame) Resolution {
	return Resolution{Width: f.Width(), Height: f.Height()}
}

type Scaler interface {
	fmt.Stringer
	Close(context.Context) error
	ScaleFrame(ctx context.Context, src *astiav.Frame, dst *astiav.Frame) error
	SourceResolution() Resolution
	SourcePixelFormat() astiav.PixelFormat
	DestinationResolution() Resolution
	DestinationPixelFormat() astiav.PixelFormat
}

// Matches reports whether s converts pictures like src into dstRes/dstPixFmt.
func Matches(
	s Scaler,
	src *astiav.Frame,
	dstRes Resolution,
	dstPixFmt astiav.PixelFormat,
) bool {
	return s.SourceResolution() == ResolutionOf(src) &&
		s.SourcePixelFormat() == src.PixelFormat() &&
		s.DestinationResolution() == dstRes &&
		s.DestinationPixelFormat() == dstPixFmt
}
