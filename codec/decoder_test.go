package codec

import (
	"context"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/hwcodec/packet"
)

func TestDecoderAdoptsFrameRateHint(t *testing.T) {
	ctx := context.Background()
	d := NewSoftwareDecoder(0)
	require.NoError(t, d.Open(ctx, astiav.CodecIDMpeg4, func(context.Context, PacketID, *astiav.Frame) error {
		return nil
	}))
	defer d.Close(ctx)

	d.applyFrameRateHint(ctx, 0)
	require.NotEqual(t, 30, d.codecContext.Framerate().Num())

	unit := packet.NewUnit(1, []byte{0, 0, 1, 0xb6})
	unit.FrameRate = 30
	_ = d.Decode(ctx, 1, unit)
	require.Equal(t, 30, d.codecContext.Framerate().Num())
	require.Equal(t, 1, d.codecContext.Framerate().Den())
}
