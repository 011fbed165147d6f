package scaler

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/logger"
	"go.uber.org/atomic"
)

type Software struct {
	*astiav.SoftwareScaleContext
	isClosed atomic.Bool
}

var _ Scaler = (*Software)(nil)

func NewSoftware(
	ctx context.Context,
	src Resolution,
	srcPixFmt astiav.PixelFormat,
	dst Resolution,
	dstPixFmt astiav.PixelFormat,
	opts ...astiav.SoftwareScaleContextFlag,
) (*Software, error) {
	if len(opts) == 0 {
		opts = []astiav.SoftwareScaleContextFlag{astiav.SoftwareScaleContextFlagBilinear}
	}
	swSCtx, err := astiav.CreateSoftwareScaleContext(
		src.Width,
		src.Height,
		srcPixFmt,
		dst.Width,
		dst.Height,
		dstPixFmt,
		astiav.NewSoftwareScaleContextFlags(opts...),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create a software scale context %s:%s -> %s:%s: %w", src, srcPixFmt, dst, dstPixFmt, err)
	}
	s := &Software{
		SoftwareScaleContext: swSCtx,
	}
	logger.Debugf(ctx, "created %s", s)
	return s, nil
}

func (s *Software) String() string {
	return fmt.Sprintf(
		"SoftwareScaler(%dx%d:%s -> %dx%d:%s)",
		s.SoftwareScaleContext.SourceWidth(),
		s.SoftwareScaleContext.SourceHeight(),
		s.SoftwareScaleContext.SourcePixelFormat(),
		s.SoftwareScaleContext.DestinationWidth(),
		s.SoftwareScaleContext.DestinationHeight(),
		s.SoftwareScaleContext.DestinationPixelFormat(),
	)
}

func (s *Software) Close(ctx context.Context) error {
	logger.Tracef(ctx, "Close")
	defer logger.Tracef(ctx, "/Close")
	if s.isClosed.Swap(true) {
		return nil
	}
	s.SoftwareScaleContext.Free()
	return nil
}

// ScaleFrame allocates the picture buffer of dst and fills it from src.
func (s *Software) ScaleFrame(
	ctx context.Context,
	src *astiav.Frame,
	dst *astiav.Frame,
) (_err error) {
	logger.Tracef(ctx, "ScaleFrame")
	defer func() { logger.Tracef(ctx, "/ScaleFrame: %v", _err) }()
	if s.isClosed.Load() {
		return fmt.Errorf("scaler is closed")
	}
	dst.SetWidth(s.SoftwareScaleContext.DestinationWidth())
	dst.SetHeight(s.SoftwareScaleContext.DestinationHeight())
	dst.SetPixelFormat(s.SoftwareScaleContext.DestinationPixelFormat())
	if err := dst.AllocBuffer(0); err != nil {
		return fmt.Errorf("unable to allocate the destination buffer: %w", err)
	}
	if err := s.SoftwareScaleContext.ScaleFrame(src, dst); err != nil {
		return fmt.Errorf("unable to scale a frame: %w", err)
	}
	dst.SetPts(src.Pts())
	return nil
}

func (s *Software) SourceResolution() Resolution {
	return Resolution{
		Width:  s.SoftwareScaleContext.SourceWidth(),
		Height: s.SoftwareScaleContext.SourceHeight(),
	}
}

func (s *Software) SourcePixelFormat() astiav.PixelFormat {
	return s.SoftwareScaleContext.SourcePixelFormat()
}

func (s *Software) DestinationResolution() Resolution {
	return Resolution{
		Width:  s.SoftwareScaleContext.DestinationWidth(),
		Height: s.SoftwareScaleContext.DestinationHeight(),
	}
}

func (s *Software) DestinationPixelFormat() astiav.PixelFormat {
	return s.SoftwareScaleContext.DestinationPixelFormat()
}
