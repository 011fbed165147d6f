package codec

import (
	"context"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/frame"
	"github.com/xaionaro-go/hwcodec/logger"
	"github.com/xaionaro-go/hwcodec/packet"
)

// DecodeCallback receives every decoded picture together with the ID of the
// packet that produced it. The frame is unreferenced right after the
// callback returns, so it must not be retained (see frame.CloneAsReferenced).
type DecodeCallback func(ctx context.Context, packetID PacketID, f *astiav.Frame) error

type Decoder interface {
	Closer
	Open(ctx context.Context, codecID astiav.CodecID, cb DecodeCallback) error

	// Decode submits one unit and delivers all pictures ready so far.
	// A nil or empty unit only drains.
	Decode(ctx context.Context, packetID PacketID, unit *packet.Unit) error

	// Flush drains everything buffered and resets the decoder, so it may
	// be fed from a new stream position afterwards.
	Flush(ctx context.Context, packetID PacketID) error

	IsOpen() bool

	// HardwareFrames returns the pool the decoder allocates its pictures
	// from; nil for software decoders and before the first picture.
	HardwareFrames() *HardwareFrames

	Mode() Mode
	Channel() Channel
	String() string
}

// decoderCommons implements the drain machinery shared by the decoder backends.
type decoderCommons struct {
	codecInternals
	callback DecodeCallback
}

func (d *decoderCommons) checkOpenArgs(cb DecodeCallback) error {
	if cb == nil {
		return d.errInvalidUsage("the decode callback is not set")
	}
	return nil
}

func (d *decoderCommons) decodePacket(
	ctx context.Context,
	packetID PacketID,
	pkt *astiav.Packet,
	onFrame func(context.Context, *astiav.Frame),
) error {
	f := frame.Pool.Get()
	defer frame.Pool.Put(f)

	t := transfer{
		IsSentinel: pkt == nil,
		Send: func() error {
			return d.codecContext.SendPacket(pkt)
		},
		Receive: func() error {
			return d.codecContext.ReceiveFrame(f)
		},
		Deliver: func() error {
			defer f.Unref()
			if onFrame != nil {
				onFrame(ctx, f)
			}
			return d.callback(ctx, packetID, f)
		},
	}
	if _, err := t.run(ctx); err != nil {
		return d.errTransfer("decoding failed", err)
	}
	return nil
}

func (d *decoderCommons) decodeUnit(
	ctx context.Context,
	packetID PacketID,
	unit *packet.Unit,
	onFrame func(context.Context, *astiav.Frame),
) error {
	if d.state != codecStateOpen {
		return d.errInvalidUsage("Decode is called on a closed decoder")
	}
	if unit.IsSentinel() {
		return d.decodePacket(ctx, packetID, nil, onFrame)
	}

	d.applyFrameRateHint(ctx, unit.FrameRate)

	pkt := packet.Pool.Get()
	defer packet.Pool.Put(pkt)
	if err := unit.ToAstiav(pkt); err != nil {
		return ErrSubmission{Backend: d.mode, Channel: d.channel, Reason: "unable to wrap the unit", Err: err}
	}
	return d.decodePacket(ctx, packetID, pkt, onFrame)
}

// applyFrameRateHint sets the stream frame rate libav guesses durations from.
func (d *decoderCommons) applyFrameRateHint(ctx context.Context, fps uint32) {
	if fps == 0 {
		return
	}
	cur := d.codecContext.Framerate()
	if cur.Den() == 1 && cur.Num() == int(fps) {
		return
	}
	want := astiav.NewRational(int(fps), 1)
	logger.Debugf(ctx, "frame rate hint: %s -> %s", cur, want)
	d.codecContext.SetFramerate(want)
}

func (d *decoderCommons) flush(
	ctx context.Context,
	packetID PacketID,
	onFrame func(context.Context, *astiav.Frame),
) error {
	if d.state != codecStateOpen {
		return nil
	}
	err := d.decodePacket(ctx, packetID, nil, onFrame)
	d.flushBuffers(ctx)
	return err
}

func (d *decoderCommons) close(ctx context.Context) error {
	d.callback = nil
	return d.closeNative(ctx)
}
