package main

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/hwcodec/codec"
	"github.com/xaionaro-go/hwcodec/frame"
	"github.com/xaionaro-go/hwcodec/packet"
	"github.com/xaionaro-go/hwcodec/transcoder"
	"github.com/xaionaro-go/hwcodec/types"
	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xsync"
)

type probeConfig struct {
	DecoderMode     types.Mode
	EncoderMode     types.Mode
	InputCodec      astiav.CodecID
	OutputCodec     astiav.CodecID
	Width           int
	Height          int
	FrameRate       types.Rational
	FrameCount      int
	DisableChaining bool
	Options         []codec.Option
}

type probeTotals struct {
	transcoder.Stats
	SourceBytes     uint64
	FailedChannels  int
	ChainedChannels int
}

type prober struct {
	Config probeConfig
	locker xsync.Mutex
	totals probeTotals
}

func (p *prober) Totals() probeTotals {
	return xsync.DoR1(context.Background(), &p.locker, func() probeTotals {
		return p.totals
	})
}

func (p *prober) addFailure() {
	p.locker.Do(context.Background(), func() {
		p.totals.FailedChannels++
	})
}

func (p *prober) addChannel(stats transcoder.Stats, sourceBytes uint64, isChained bool) {
	p.locker.Do(context.Background(), func() {
		p.totals.DecodedPictures += stats.DecodedPictures
		p.totals.EncodedPackets += stats.EncodedPackets
		p.totals.EncodedBytes += stats.EncodedBytes
		p.totals.SourceBytes += sourceBytes
		if isChained {
			p.totals.ChainedChannels++
		}
	})
}

func (p *prober) encoderParams(codecID astiav.CodecID) codec.EncoderParams {
	return codec.EncoderParams{
		CodecID:   codecID,
		FrameRate: typing.Opt(p.Config.FrameRate.Astiav()),
		TimeBase:  typing.Opt(p.Config.FrameRate.Reverse().Astiav()),
	}
}

// probeChannel encodes a synthetic source in software and transcodes it
// through the configured backends.
func (p *prober) probeChannel(
	ctx context.Context,
	chn types.Channel,
) (_err error) {
	logger.Debugf(ctx, "probeChannel(ctx, %s)", chn)
	defer func() { logger.Debugf(ctx, "/probeChannel(ctx, %s): %v", chn, _err) }()

	units, err := p.source(ctx, chn)
	if err != nil {
		return fmt.Errorf("unable to prepare the source stream: %w", err)
	}
	var sourceBytes uint64
	for _, u := range units {
		sourceBytes += uint64(u.Size())
	}

	tr, err := transcoder.New(ctx, chn, transcoder.Config{
		DecoderMode:     p.Config.DecoderMode,
		EncoderMode:     p.Config.EncoderMode,
		InputCodec:      p.Config.InputCodec,
		Output:          p.encoderParams(p.Config.OutputCodec),
		DisableChaining: p.Config.DisableChaining,
		DecoderOptions:  p.Config.Options,
		EncoderOptions:  p.Config.Options,
	}, func(ctx context.Context, frameID codec.FrameID, pkt *astiav.Packet) error {
		logger.Tracef(ctx, "packet of frame %d: %d bytes", frameID, pkt.Size())
		return nil
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := tr.Close(ctx); err != nil {
			logger.Errorf(ctx, "unable to close %s: %v", tr, err)
		}
	}()

	for idx, u := range units {
		if err := tr.Transcode(ctx, codec.PacketID(idx), u); err != nil {
			return fmt.Errorf("unable to transcode unit #%d: %w", idx, err)
		}
	}
	if err := tr.Flush(ctx, codec.PacketID(len(units))); err != nil {
		return err
	}
	p.addChannel(tr.Stats(), sourceBytes, tr.IsChained())
	return nil
}

func (p *prober) source(
	ctx context.Context,
	chn types.Channel,
) ([]*packet.Unit, error) {
	var units []*packet.Unit
	enc := codec.NewSoftwareEncoder(chn)
	params := p.encoderParams(p.Config.InputCodec)
	params.PixelFormat = astiav.PixelFormatYuv420P
	params.Width, params.Height = p.Config.Width, p.Config.Height
	err := enc.Open(ctx, params, func(ctx context.Context, frameID codec.FrameID, pkt *astiav.Packet) error {
		units = append(units, packet.UnitFromAstiav(pkt))
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer enc.Close(ctx)

	for i := 0; i < p.Config.FrameCount; i++ {
		f, err := frame.NewSynthetic(p.Config.Width, p.Config.Height, astiav.PixelFormatYuv420P, int64(i), int(chn)*p.Config.FrameCount+i)
		if err != nil {
			return nil, err
		}
		err = enc.Encode(ctx, codec.FrameID(i), f)
		f.Free()
		if err != nil {
			return nil, err
		}
	}
	if err := enc.Flush(ctx, codec.FrameID(p.Config.FrameCount)); err != nil {
		return nil, err
	}
	return units, nil
}
