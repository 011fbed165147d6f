package codec_test

import (
	"context"
	"errors"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/hwcodec/codec"
	"github.com/xaionaro-go/hwcodec/frame"
	"github.com/xaionaro-go/hwcodec/packet"
	"github.com/xaionaro-go/hwcodec/types"
)

func hardwareModes() []types.Mode {
	return []types.Mode{types.ModeVAAPI, types.ModeQSV}
}

func skipIfNoBackend(t *testing.T, err error) {
	if err == nil {
		return
	}
	if errors.As(err, &codec.ErrBackendInit{}) {
		t.Skipf("the backend is not available here: %v", err)
	}
}

func TestHardwareDecoderRepeatedFailedOpen(t *testing.T) {
	ctx := testContext(t)
	for _, mode := range hardwareModes() {
		t.Run(mode.String(), func(t *testing.T) {
			dec := codec.CreateDecoder(mode, 0, codec.OptionHardwareDeviceName("/dev/nonexistent-device"))
			for i := 0; i < 3; i++ {
				err := dec.Open(ctx, astiav.CodecIDH264, func(context.Context, codec.PacketID, *astiav.Frame) error {
					return nil
				})
				if err == nil {
					// the backend ignores the device name (e.g. QSV picking its own adapter)
					require.NoError(t, dec.Close(ctx))
					continue
				}
				require.ErrorAs(t, err, &codec.ErrBackendInit{})
				require.False(t, dec.IsOpen())
				require.Nil(t, dec.HardwareFrames())
				require.NoError(t, dec.Close(ctx))
			}
		})
	}
}

func TestHardwareEncoderRepeatedFailedOpen(t *testing.T) {
	ctx := testContext(t)
	for _, mode := range hardwareModes() {
		t.Run(mode.String(), func(t *testing.T) {
			enc := codec.CreateEncoder(mode, 0)
			for i := 0; i < 3; i++ {
				err := enc.Open(ctx, codec.EncoderParams{
					CodecID:     astiav.CodecIDMpeg4, // no hardware encoder implements it
					PixelFormat: astiav.PixelFormatNv12,
					Width:       testWidth,
					Height:      testHeight,
				}, func(context.Context, codec.FrameID, *astiav.Packet) error {
					return nil
				})
				require.ErrorAs(t, err, &codec.ErrBackendInit{})
				require.False(t, enc.IsOpen())
				require.NoError(t, enc.Close(ctx))
			}
		})
	}
}

func TestHardwareEncoderSelfAllocated(t *testing.T) {
	ctx := testContext(t)
	for _, mode := range hardwareModes() {
		t.Run(mode.String(), func(t *testing.T) {
			var pkts []*packet.Unit
			enc := codec.CreateEncoder(mode, 0).(*codec.HardwareEncoder)
			err := enc.Open(ctx, codec.EncoderParams{
				CodecID:     astiav.CodecIDH264,
				PixelFormat: astiav.PixelFormatNv12,
				Width:       testWidth * 2,
				Height:      testHeight * 2,
			}, func(ctx context.Context, frameID codec.FrameID, pkt *astiav.Packet) error {
				require.NotEqual(t, astiav.NoPtsValue, pkt.Pts())
				pkts = append(pkts, packet.UnitFromAstiav(pkt))
				return nil
			})
			skipIfNoBackend(t, err)
			require.NoError(t, err)

			frames := enc.HardwareFrames()
			require.NotNil(t, frames)
			require.False(t, frames.IsBorrowed())
			require.Equal(t, 1, frames.Properties(ctx).InitialPoolSize)

			for i := 0; i < 5; i++ {
				f, err := frame.NewSynthetic(testWidth*2, testHeight*2, astiav.PixelFormatNv12, int64(i), i)
				require.NoError(t, err)
				err = enc.Encode(ctx, codec.FrameID(i), f)
				f.Free()
				require.NoError(t, err)
			}
			require.NoError(t, enc.Flush(ctx, 5))
			require.NoError(t, enc.Close(ctx))
			require.NoError(t, enc.Close(ctx))
			require.True(t, frames.IsReleased(ctx))
			require.NotEmpty(t, pkts)
		})
	}
}

func TestHardwareChained(t *testing.T) {
	for _, mode := range hardwareModes() {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := testContext(t)

			var h264 []*packet.Unit
			src := codec.CreateEncoder(mode, 0)
			err := src.Open(ctx, codec.EncoderParams{
				CodecID:     astiav.CodecIDH264,
				PixelFormat: astiav.PixelFormatNv12,
				Width:       testWidth * 2,
				Height:      testHeight * 2,
			}, func(ctx context.Context, frameID codec.FrameID, pkt *astiav.Packet) error {
				h264 = append(h264, packet.UnitFromAstiav(pkt))
				return nil
			})
			skipIfNoBackend(t, err)
			require.NoError(t, err)
			for i := 0; i < 5; i++ {
				f, err := frame.NewSynthetic(testWidth*2, testHeight*2, astiav.PixelFormatNv12, int64(i), i)
				require.NoError(t, err)
				err = src.Encode(ctx, codec.FrameID(i), f)
				f.Free()
				require.NoError(t, err)
			}
			require.NoError(t, src.Flush(ctx, 5))
			require.NoError(t, src.Close(ctx))
			require.NotEmpty(t, h264)

			dec := codec.CreateDecoder(mode, 0)
			enc := codec.CreateEncoder(mode, 0)
			encoded := 0
			onPacket := func(context.Context, codec.FrameID, *astiav.Packet) error {
				encoded++
				return nil
			}
			var chainErr error
			err = dec.Open(ctx, astiav.CodecIDH264, func(ctx context.Context, packetID codec.PacketID, f *astiav.Frame) error {
				require.True(t, frame.IsHardwarePixelFormat(f.PixelFormat()))
				if !enc.IsOpen() {
					chainErr = codec.OpenChainedEncoder(ctx, dec, enc, codec.EncoderParams{
						CodecID: astiav.CodecIDH264,
					}, onPacket)
					if chainErr != nil {
						return chainErr
					}
				}
				return enc.Encode(ctx, codec.FrameID(packetID), f)
			})
			skipIfNoBackend(t, err)
			require.NoError(t, err)

			for idx, unit := range h264 {
				require.NoError(t, dec.Decode(ctx, codec.PacketID(idx), unit))
			}
			require.NoError(t, dec.Flush(ctx, codec.PacketID(len(h264))))
			require.NoError(t, chainErr)

			frames := dec.HardwareFrames()
			require.NotNil(t, frames)
			require.Equal(t, 1, frames.Borrowers(ctx))

			require.NoError(t, enc.Flush(ctx, 0))
			require.NoError(t, enc.Close(ctx))
			require.Zero(t, frames.Borrowers(ctx))
			require.NoError(t, dec.Close(ctx))
			require.True(t, frames.IsReleased(ctx))
			require.NotZero(t, encoded)
		})
	}
}

func TestOpenChainedEncoderErrors(t *testing.T) {
	ctx := testContext(t)
	noop := func(context.Context, codec.FrameID, *astiav.Packet) error { return nil }
	params := codec.EncoderParams{CodecID: astiav.CodecIDH264, Width: testWidth, Height: testHeight}

	dec := codec.NewSoftwareDecoder(0)
	err := codec.OpenChainedEncoder(ctx, dec, codec.NewVAAPIEncoder(0), params, noop)
	require.ErrorAs(t, err, &codec.ErrInvalidUsage{})

	require.NoError(t, dec.Open(ctx, astiav.CodecIDH264, func(context.Context, codec.PacketID, *astiav.Frame) error {
		return nil
	}))
	defer dec.Close(ctx)

	err = codec.OpenChainedEncoder(ctx, dec, codec.NewVAAPIEncoder(0), params, noop)
	require.ErrorAs(t, err, &codec.ErrBackendInit{})
	err = codec.OpenChainedEncoder(ctx, dec, codec.NewQSVEncoder(0), params, noop)
	require.ErrorAs(t, err, &codec.ErrBackendInit{})
}
