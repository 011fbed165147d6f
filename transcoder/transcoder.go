// Package transcoder pairs a decoder and an encoder of one channel,
// sharing the decoder's device memory with the encoder when possible.
package transcoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/codec"
	"github.com/xaionaro-go/hwcodec/frame"
	"github.com/xaionaro-go/hwcodec/logger"
	"github.com/xaionaro-go/hwcodec/packet"
	"github.com/xaionaro-go/hwcodec/scaler"
	"go.uber.org/atomic"
)

type Config struct {
	DecoderMode codec.Mode
	EncoderMode codec.Mode
	InputCodec  astiav.CodecID

	// Output.HardwareFrames is ignored. Zero Width/Height/PixelFormat are
	// derived from the first decoded picture.
	Output codec.EncoderParams

	// DisableChaining forces pictures through host memory even when the
	// decoder and the encoder use the same device type.
	DisableChaining bool

	DecoderOptions []codec.Option
	EncoderOptions []codec.Option
}

type Stats struct {
	DecodedPictures uint64
	EncodedPackets  uint64
	EncodedBytes    uint64
}

type Transcoder struct {
	config   Config
	channel  codec.Channel
	decoder  codec.Decoder
	encoder  codec.Encoder
	callback codec.EncodeCallback
	scaler   scaler.Scaler
	output   codec.EncoderParams
	isClosed bool

	// chainedResolution is the picture size the chained encoder was opened for.
	chainedResolution scaler.Resolution

	isChained       bool
	decodedPictures atomic.Uint64
	encodedPackets  atomic.Uint64
	encodedBytes    atomic.Uint64
}

// New opens the decoder; the encoder is opened on the first decoded picture,
// since the decoder's device memory pool exists only from then on.
func New(
	ctx context.Context,
	chn codec.Channel,
	cfg Config,
	cb codec.EncodeCallback,
) (_ret *Transcoder, _err error) {
	ctx = logger.WithField(ctx, "chn", chn)
	logger.Debugf(ctx, "New(ctx, %s, %s -> %s)", chn, cfg.DecoderMode, cfg.EncoderMode)
	defer func() { logger.Debugf(ctx, "/New(ctx, %s, %s -> %s): %v", chn, cfg.DecoderMode, cfg.EncoderMode, _err) }()
	if cb == nil {
		return nil, codec.ErrInvalidUsage{Backend: cfg.EncoderMode, Channel: chn, Reason: "the encode callback is not set"}
	}

	t := &Transcoder{
		config:   cfg,
		channel:  chn,
		decoder:  codec.CreateDecoder(cfg.DecoderMode, chn, cfg.DecoderOptions...),
		encoder:  codec.CreateEncoder(cfg.EncoderMode, chn, cfg.EncoderOptions...),
		callback: cb,
	}
	if t.decoder == nil {
		return nil, fmt.Errorf("unknown decoder mode %s", cfg.DecoderMode)
	}
	if t.encoder == nil {
		return nil, fmt.Errorf("unknown encoder mode %s", cfg.EncoderMode)
	}
	t.isChained = !cfg.DisableChaining &&
		cfg.DecoderMode.IsHardware() &&
		cfg.DecoderMode == cfg.EncoderMode

	if err := t.decoder.Open(ctx, cfg.InputCodec, t.onPicture); err != nil {
		return nil, fmt.Errorf("unable to open the decoder: %w", err)
	}
	return t, nil
}

func (t *Transcoder) String() string {
	return fmt.Sprintf("Transcoder(%s: %s -> %s)", t.channel, t.decoder, t.encoder)
}

func (t *Transcoder) Decoder() codec.Decoder {
	return t.decoder
}

func (t *Transcoder) Encoder() codec.Encoder {
	return t.encoder
}

// IsChained reports whether the encoder consumes the decoder's device memory directly.
func (t *Transcoder) IsChained() bool {
	return t.isChained
}

func (t *Transcoder) Stats() Stats {
	return Stats{
		DecodedPictures: t.decodedPictures.Load(),
		EncodedPackets:  t.encodedPackets.Load(),
		EncodedBytes:    t.encodedBytes.Load(),
	}
}

// Transcode decodes one unit and encodes every resulting picture; packets
// produced from it carry FrameID(packetID).
func (t *Transcoder) Transcode(
	ctx context.Context,
	packetID codec.PacketID,
	unit *packet.Unit,
) error {
	if t.isClosed {
		return codec.ErrInvalidUsage{Backend: t.config.DecoderMode, Channel: t.channel, Reason: "the transcoder is closed"}
	}
	return t.decoder.Decode(ctx, packetID, unit)
}

// Flush drains the decoder and then the encoder.
func (t *Transcoder) Flush(
	ctx context.Context,
	packetID codec.PacketID,
) (_err error) {
	logger.Debugf(ctx, "Flush(ctx, %d)", packetID)
	defer func() { logger.Debugf(ctx, "/Flush(ctx, %d): %v", packetID, _err) }()
	if t.isClosed {
		return nil
	}
	if err := t.decoder.Flush(ctx, packetID); err != nil {
		return fmt.Errorf("unable to flush the decoder: %w", err)
	}
	if err := t.encoder.Flush(ctx, codec.FrameID(packetID)); err != nil {
		return fmt.Errorf("unable to flush the encoder: %w", err)
	}
	return nil
}

// Close closes the encoder before the decoder: the decoder may own the
// device memory the encoder borrowed.
func (t *Transcoder) Close(ctx context.Context) error {
	if t.isClosed {
		return nil
	}
	t.isClosed = true
	var errs []error
	if err := t.encoder.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unable to close the encoder: %w", err))
	}
	if err := t.decoder.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unable to close the decoder: %w", err))
	}
	if t.scaler != nil {
		if err := t.scaler.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to close the scaler: %w", err))
		}
		t.scaler = nil
	}
	return errors.Join(errs...)
}

func (t *Transcoder) onPicture(
	ctx context.Context,
	packetID codec.PacketID,
	f *astiav.Frame,
) error {
	t.decodedPictures.Inc()
	if err := t.retireStaleChainedEncoder(ctx, codec.FrameID(packetID), f); err != nil {
		return err
	}
	if !t.encoder.IsOpen() {
		if err := t.openEncoder(ctx, f); err != nil {
			return fmt.Errorf("unable to open the encoder: %w", err)
		}
	}

	if !t.isChained && frame.IsHardwarePixelFormat(f.PixelFormat()) {
		ramFrame := frame.Pool.Get()
		defer frame.Pool.Put(ramFrame)
		if err := frame.TransferToRAM(ramFrame, f); err != nil {
			return err
		}
		f = ramFrame
	}

	if !t.isChained {
		scaled, err := t.scale(ctx, f)
		if err != nil {
			return err
		}
		if scaled != nil {
			defer frame.Pool.Put(scaled)
			f = scaled
		}
	}

	return t.encoder.Encode(ctx, codec.FrameID(packetID), f)
}

func (t *Transcoder) onPacket(
	ctx context.Context,
	frameID codec.FrameID,
	pkt *astiav.Packet,
) error {
	t.encodedPackets.Inc()
	t.encodedBytes.Add(uint64(pkt.Size()))
	return t.callback(ctx, frameID, pkt)
}

func (t *Transcoder) openEncoder(
	ctx context.Context,
	f *astiav.Frame,
) error {
	params := t.config.Output
	params.HardwareFrames = nil
	if t.isChained {
		if params.Width != 0 || params.Height != 0 {
			logger.Warnf(ctx, "resizing is not supported for chained hardware codecs, keeping %dx%d", f.Width(), f.Height())
		}
		params.Width, params.Height = 0, 0
		t.output = params
		t.chainedResolution = scaler.ResolutionOf(f)
		return codec.OpenChainedEncoder(ctx, t.decoder, t.encoder, params, t.onPacket)
	}

	if params.Width == 0 && params.Height == 0 {
		params.Width, params.Height = f.Width(), f.Height()
	}
	if params.PixelFormat == astiav.PixelFormatNone {
		params.PixelFormat = pickPixelFormat(t.config.EncoderMode, params.CodecID, hostPixelFormat(f))
		logger.Debugf(ctx, "the output pixel format is not set, using %s", params.PixelFormat)
	}
	t.output = params
	return t.encoder.Open(ctx, params, t.onPacket)
}

// retireStaleChainedEncoder drains and closes a chained encoder once the
// decoder serves pictures of another size (its pool was renegotiated), so
// it gets reopened on the new pool.
func (t *Transcoder) retireStaleChainedEncoder(
	ctx context.Context,
	frameID codec.FrameID,
	f *astiav.Frame,
) error {
	if !t.isChained || !t.encoder.IsOpen() {
		return nil
	}
	res := scaler.ResolutionOf(f)
	if res == t.chainedResolution {
		return nil
	}
	logger.Debugf(ctx, "the decoder switched %s -> %s, reopening the chained encoder", t.chainedResolution, res)
	if err := t.encoder.Flush(ctx, frameID); err != nil {
		return fmt.Errorf("unable to flush the chained encoder: %w", err)
	}
	if err := t.encoder.Close(ctx); err != nil {
		return fmt.Errorf("unable to close the chained encoder: %w", err)
	}
	return nil
}

// scale returns nil if f already fits the encoder.
func (t *Transcoder) scale(
	ctx context.Context,
	f *astiav.Frame,
) (*astiav.Frame, error) {
	dstRes := scaler.Resolution{Width: t.output.Width, Height: t.output.Height}
	dstPixFmt := t.output.PixelFormat
	if scaler.ResolutionOf(f) == dstRes && f.PixelFormat() == dstPixFmt {
		return nil, nil
	}
	if t.scaler != nil && !scaler.Matches(t.scaler, f, dstRes, dstPixFmt) {
		if err := t.scaler.Close(ctx); err != nil {
			logger.Errorf(ctx, "unable to close the scaler: %v", err)
		}
		t.scaler = nil
	}
	if t.scaler == nil {
		s, err := scaler.NewSoftware(ctx, scaler.ResolutionOf(f), f.PixelFormat(), dstRes, dstPixFmt)
		if err != nil {
			return nil, err
		}
		t.scaler = s
	}
	dst := frame.Pool.Get()
	if err := t.scaler.ScaleFrame(ctx, f, dst); err != nil {
		frame.Pool.Put(dst)
		return nil, err
	}
	return dst, nil
}

// hostPixelFormat is the format f has in host memory; device surfaces are
// downloaded as NV12.
func hostPixelFormat(f *astiav.Frame) astiav.PixelFormat {
	if frame.IsHardwarePixelFormat(f.PixelFormat()) {
		return astiav.PixelFormatNv12
	}
	return f.PixelFormat()
}

func pickPixelFormat(
	mode codec.Mode,
	codecID astiav.CodecID,
	preferred astiav.PixelFormat,
) astiav.PixelFormat {
	if mode.IsHardware() {
		return astiav.PixelFormatNv12
	}
	c := astiav.FindEncoder(codecID)
	if c == nil {
		return preferred
	}
	pixFmts := c.PixelFormats()
	for _, pixFmt := range pixFmts {
		if pixFmt == preferred {
			return pixFmt
		}
	}
	if len(pixFmts) > 0 {
		return pixFmts[0]
	}
	return preferred
}
