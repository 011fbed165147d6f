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
)

func TestSoftwareRoundTrip(t *testing.T) {
	ctx := testContext(t)
	const frameCount = 10

	pkts := encodeSynthetic(ctx, t, frameCount)
	// without B-frames every picture is exactly one packet
	require.Len(t, pkts, frameCount)
	for idx, pkt := range pkts {
		require.Less(t, int(pkt.FrameID), frameCount)
		require.NotEmpty(t, pkt.Data)
		require.NotEqual(t, astiav.NoPtsValue, pkt.Pts)
		if idx > 0 {
			require.GreaterOrEqual(t, pkt.FrameID, pkts[idx-1].FrameID)
		}
	}

	type decoded struct {
		PacketID codec.PacketID
		Info     frame.Info
	}
	var pictures []decoded
	submitted := map[codec.PacketID]struct{}{}
	dec := codec.NewSoftwareDecoder(1)
	err := dec.Open(ctx, astiav.CodecIDMpeg4, func(ctx context.Context, packetID codec.PacketID, f *astiav.Frame) error {
		_, ok := submitted[packetID]
		require.True(t, ok, "picture of a not yet submitted packet %d", packetID)
		pictures = append(pictures, decoded{PacketID: packetID, Info: frame.InfoOf(f)})
		return nil
	})
	require.NoError(t, err)
	require.True(t, dec.IsOpen())
	require.Nil(t, dec.HardwareFrames())

	for idx, pkt := range pkts {
		packetID := codec.PacketID(idx)
		submitted[packetID] = struct{}{}
		require.NoError(t, dec.Decode(ctx, packetID, packet.NewUnit(pkt.Pts, pkt.Data)))
	}
	submitted[codec.PacketID(len(pkts))] = struct{}{}
	require.NoError(t, dec.Flush(ctx, codec.PacketID(len(pkts))))
	require.NoError(t, dec.Close(ctx))
	require.False(t, dec.IsOpen())

	require.Len(t, pictures, frameCount)
	for _, p := range pictures {
		require.Equal(t, testWidth, p.Info.Width)
		require.Equal(t, testHeight, p.Info.Height)
		require.Equal(t, astiav.PixelFormatYuv420P, p.Info.PixelFormat)
		require.False(t, p.Info.IsHardware)
	}
}

func TestSoftwareDecodeRaw(t *testing.T) {
	ctx := testContext(t)
	pkts := encodeSynthetic(ctx, t, 3)

	var ptsSeen []int64
	dec := codec.NewSoftwareDecoder(0)
	require.NoError(t, dec.Open(ctx, astiav.CodecIDMpeg4, func(ctx context.Context, packetID codec.PacketID, f *astiav.Frame) error {
		ptsSeen = append(ptsSeen, f.Pts())
		return nil
	}))
	defer dec.Close(ctx)

	for idx, pkt := range pkts {
		p := astiav.AllocPacket()
		require.NoError(t, p.FromData(pkt.Data))
		err := dec.DecodeRaw(ctx, codec.PacketID(idx), p, int64(1000+idx))
		p.Free()
		require.NoError(t, err)
	}
	require.NoError(t, dec.DecodeRaw(ctx, codec.PacketID(len(pkts)), nil, 0))
	require.Len(t, ptsSeen, len(pkts))
	for idx, pts := range ptsSeen {
		require.Equal(t, int64(1000+idx), pts)
	}
}

func TestSoftwareFlushCloseFresh(t *testing.T) {
	ctx := testContext(t)
	calls := 0

	dec := codec.NewSoftwareDecoder(0)
	require.NoError(t, dec.Open(ctx, astiav.CodecIDMpeg4, func(context.Context, codec.PacketID, *astiav.Frame) error {
		calls++
		return nil
	}))
	require.NoError(t, dec.Flush(ctx, 0))
	require.NoError(t, dec.Flush(ctx, 0))
	require.NoError(t, dec.Close(ctx))

	enc := codec.NewSoftwareEncoder(0)
	require.NoError(t, enc.Open(ctx, codec.EncoderParams{
		CodecID:     astiav.CodecIDMpeg4,
		PixelFormat: astiav.PixelFormatYuv420P,
		Width:       testWidth,
		Height:      testHeight,
	}, func(context.Context, codec.FrameID, *astiav.Packet) error {
		calls++
		return nil
	}))
	require.NoError(t, enc.Flush(ctx, 0))
	require.NoError(t, enc.Flush(ctx, 0))
	require.NoError(t, enc.Close(ctx))

	require.Zero(t, calls)
}

func TestSoftwareEncodeAfterFlush(t *testing.T) {
	ctx := testContext(t)
	var frameIDs []codec.FrameID
	enc := codec.NewSoftwareEncoder(0)
	require.NoError(t, enc.Open(ctx, codec.EncoderParams{
		CodecID:     astiav.CodecIDMpeg4,
		PixelFormat: astiav.PixelFormatYuv420P,
		Width:       testWidth,
		Height:      testHeight,
	}, func(ctx context.Context, frameID codec.FrameID, _ *astiav.Packet) error {
		frameIDs = append(frameIDs, frameID)
		return nil
	}))
	defer enc.Close(ctx)

	for round := 0; round < 2; round++ {
		f, err := frame.NewSynthetic(testWidth, testHeight, astiav.PixelFormatYuv420P, int64(round), round)
		require.NoError(t, err)
		err = enc.Encode(ctx, codec.FrameID(round), f)
		f.Free()
		require.NoError(t, err)
		require.NoError(t, enc.Flush(ctx, codec.FrameID(round)))
		require.True(t, enc.IsOpen())
	}
	require.Contains(t, frameIDs, codec.FrameID(0))
	require.Contains(t, frameIDs, codec.FrameID(1))
}

func TestSoftwareClosedUsage(t *testing.T) {
	ctx := testContext(t)
	calls := 0

	dec := codec.NewSoftwareDecoder(0)
	require.NoError(t, dec.Close(ctx))
	err := dec.Decode(ctx, 0, packet.NewUnit(0, []byte{0, 0, 1}))
	require.ErrorAs(t, err, &codec.ErrInvalidUsage{})
	require.NoError(t, dec.Flush(ctx, 0))

	require.NoError(t, dec.Open(ctx, astiav.CodecIDMpeg4, func(context.Context, codec.PacketID, *astiav.Frame) error {
		calls++
		return nil
	}))
	require.NoError(t, dec.Close(ctx))
	require.NoError(t, dec.Close(ctx))
	err = dec.Decode(ctx, 0, packet.NewUnit(0, []byte{0, 0, 1}))
	require.ErrorAs(t, err, &codec.ErrInvalidUsage{})

	enc := codec.NewSoftwareEncoder(0)
	f, err := frame.NewSynthetic(testWidth, testHeight, astiav.PixelFormatYuv420P, 0, 0)
	require.NoError(t, err)
	defer f.Free()
	err = enc.Encode(ctx, 0, f)
	require.ErrorAs(t, err, &codec.ErrInvalidUsage{})
	require.NoError(t, enc.Close(ctx))
	require.NoError(t, enc.Close(ctx))

	require.Zero(t, calls)
}

func TestSoftwareOpenErrors(t *testing.T) {
	ctx := testContext(t)
	noopDec := func(context.Context, codec.PacketID, *astiav.Frame) error { return nil }
	noopEnc := func(context.Context, codec.FrameID, *astiav.Packet) error { return nil }

	dec := codec.NewSoftwareDecoder(0)
	require.ErrorAs(t, dec.Open(ctx, astiav.CodecIDMpeg4, nil), &codec.ErrInvalidUsage{})
	require.ErrorAs(t, dec.Open(ctx, astiav.CodecIDNone, noopDec), &codec.ErrBackendInit{})
	require.False(t, dec.IsOpen())

	require.NoError(t, dec.Open(ctx, astiav.CodecIDMpeg4, noopDec))
	require.ErrorAs(t, dec.Open(ctx, astiav.CodecIDMpeg4, noopDec), &codec.ErrInvalidUsage{})
	require.True(t, dec.IsOpen())
	require.NoError(t, dec.Close(ctx))

	params := codec.EncoderParams{
		CodecID:     astiav.CodecIDMpeg4,
		PixelFormat: astiav.PixelFormatYuv420P,
		Width:       testWidth,
		Height:      testHeight,
	}
	enc := codec.NewSoftwareEncoder(0)
	require.ErrorAs(t, enc.Open(ctx, params, nil), &codec.ErrInvalidUsage{})

	badSize := params
	badSize.Width = 0
	require.ErrorAs(t, enc.Open(ctx, badSize, noopEnc), &codec.ErrBackendInit{})
	require.False(t, enc.IsOpen())

	require.NoError(t, enc.Open(ctx, params, noopEnc))
	require.ErrorAs(t, enc.Open(ctx, params, noopEnc), &codec.ErrInvalidUsage{})
	require.NoError(t, enc.Close(ctx))
}

func TestSoftwareDecodeGarbage(t *testing.T) {
	ctx := testContext(t)
	dec := codec.NewSoftwareDecoder(0)
	require.NoError(t, dec.Open(ctx, astiav.CodecIDMpeg4, func(context.Context, codec.PacketID, *astiav.Frame) error {
		return nil
	}))
	defer dec.Close(ctx)

	err := dec.Decode(ctx, 0, packet.NewUnit(0, []byte{0xde, 0xad, 0xbe, 0xef}))
	if err != nil {
		require.True(t, errors.As(err, &codec.ErrSubmission{}) || errors.As(err, &codec.ErrDrain{}), "%v", err)
	}
	require.True(t, dec.IsOpen())
}

func TestSoftwareCallbackErrorIsDrainError(t *testing.T) {
	ctx := testContext(t)
	pkts := encodeSynthetic(ctx, t, 2)

	errSink := errors.New("sink is full")
	dec := codec.NewSoftwareDecoder(0)
	require.NoError(t, dec.Open(ctx, astiav.CodecIDMpeg4, func(context.Context, codec.PacketID, *astiav.Frame) error {
		return errSink
	}))
	defer dec.Close(ctx)

	var err error
	for idx, pkt := range pkts {
		err = dec.Decode(ctx, codec.PacketID(idx), packet.NewUnit(pkt.Pts, pkt.Data))
		if err != nil {
			break
		}
	}
	if err == nil {
		err = dec.Flush(ctx, 0)
	}
	require.ErrorAs(t, err, &codec.ErrDrain{})
	require.ErrorIs(t, err, errSink)
}
