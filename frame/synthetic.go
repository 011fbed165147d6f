// synthetic.go generates host-memory test pictures.

package frame

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

const syntheticAlign = 1

// NewSynthetic allocates a host-memory picture filled with a moving gradient
// derived from seed. Only yuv420p and nv12 get a pattern; other formats are
// filled black.
func NewSynthetic(
	width, height int,
	pixFmt astiav.PixelFormat,
	pts int64,
	seed int,
) (_ret *astiav.Frame, _err error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid geometry %dx%d", width, height)
	}
	f := astiav.AllocFrame()
	defer func() {
		if _err != nil {
			f.Free()
		}
	}()
	f.SetWidth(width)
	f.SetHeight(height)
	f.SetPixelFormat(pixFmt)
	f.SetPts(pts)
	if err := f.AllocBuffer(0); err != nil {
		return nil, fmt.Errorf("unable to allocate a %dx%d %s buffer: %w", width, height, pixFmt, err)
	}

	switch pixFmt {
	case astiav.PixelFormatYuv420P, astiav.PixelFormatNv12:
	default:
		if err := f.ImageFillBlack(); err != nil {
			return nil, fmt.Errorf("unable to fill the picture: %w", err)
		}
		return f, nil
	}

	size, err := f.ImageBufferSize(syntheticAlign)
	if err != nil {
		return nil, fmt.Errorf("unable to get the image buffer size: %w", err)
	}
	buf := make([]byte, size)
	lumaSize := width * height
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			buf[y*width+x] = byte(x + y + seed*3)
		}
	}
	chroma := buf[lumaSize:]
	for i := range chroma {
		chroma[i] = byte(128 + (i+seed)%32 - 16)
	}
	if err := f.Data().SetBytes(buf, syntheticAlign); err != nil {
		return nil, fmt.Errorf("unable to write the pattern: %w", err)
	}
	return f, nil
}
