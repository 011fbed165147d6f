package codec_test

import (
	"context"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/pkg/runtime"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/hwcodec/codec"
	"github.com/xaionaro-go/hwcodec/frame"
	"github.com/xaionaro-go/hwcodec/logger"
	"github.com/xaionaro-go/observability"
)

const (
	testWidth  = 64
	testHeight = 48
)

func testContext(t *testing.T) context.Context {
	runtime.DefaultCallerPCFilter = observability.CallerPCFilter(runtime.DefaultCallerPCFilter)
	l := logrus.Default().WithLevel(logger.LevelDebug)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.SetDefault(func() logger.Logger {
		return l
	})
	logger.SetupAstiavLogging(ctx)
	t.Cleanup(func() { belt.Flush(ctx) })
	return ctx
}

type encodedPacket struct {
	FrameID codec.FrameID
	Pts     int64
	Data    []byte
}

// encodeSynthetic opens a software MPEG-4 encoder and returns the packets
// of n synthetic pictures including the flushed ones.
func encodeSynthetic(
	ctx context.Context,
	t *testing.T,
	n int,
) []encodedPacket {
	var result []encodedPacket
	enc := codec.NewSoftwareEncoder(0)
	err := enc.Open(ctx, codec.EncoderParams{
		CodecID:     astiav.CodecIDMpeg4,
		PixelFormat: astiav.PixelFormatYuv420P,
		Width:       testWidth,
		Height:      testHeight,
	}, func(ctx context.Context, frameID codec.FrameID, pkt *astiav.Packet) error {
		data := make([]byte, len(pkt.Data()))
		copy(data, pkt.Data())
		result = append(result, encodedPacket{FrameID: frameID, Pts: pkt.Pts(), Data: data})
		return nil
	})
	require.NoError(t, err)
	defer enc.Close(ctx)

	for i := 0; i < n; i++ {
		f, err := frame.NewSynthetic(testWidth, testHeight, astiav.PixelFormatYuv420P, int64(i), i)
		require.NoError(t, err)
		err = enc.Encode(ctx, codec.FrameID(i), f)
		f.Free()
		require.NoError(t, err)
	}
	require.NoError(t, enc.Flush(ctx, codec.FrameID(n)))
	return result
}
