package codec

import (
	"context"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/logger"
	"github.com/xaionaro-go/hwcodec/packet"
)

type SoftwareDecoder struct {
	decoderCommons
}

var _ Decoder = (*SoftwareDecoder)(nil)

func NewSoftwareDecoder(chn Channel) *SoftwareDecoder {
	return &SoftwareDecoder{
		decoderCommons: decoderCommons{
			codecInternals: newCodecInternals(ModeSoftware, chn, false, nil),
		},
	}
}

func (d *SoftwareDecoder) Open(
	ctx context.Context,
	codecID astiav.CodecID,
	cb DecodeCallback,
) (_err error) {
	ctx = d.logCtx(ctx)
	defer d.checkCallCount(ctx)()
	logger.Debugf(ctx, "Open(ctx, %s)", codecID)
	defer func() { logger.Debugf(ctx, "/Open(ctx, %s): %v", codecID, _err) }()
	if err := d.checkOpenArgs(cb); err != nil {
		return err
	}
	if err := d.beginOpen(ctx); err != nil {
		return err
	}
	defer func() { d.endOpen(ctx, _err) }()

	d.codec = astiav.FindDecoder(codecID)
	if d.codec == nil {
		return d.errBackendInit("no software decoder for '"+codecID.String()+"'", nil)
	}
	if err := d.allocContext(ctx); err != nil {
		return err
	}
	if err := d.openContext(ctx); err != nil {
		return err
	}
	d.callback = cb
	return nil
}

func (d *SoftwareDecoder) Decode(
	ctx context.Context,
	packetID PacketID,
	unit *packet.Unit,
) error {
	ctx = d.logCtx(ctx)
	defer d.checkCallCount(ctx)()
	logger.Tracef(ctx, "Decode(ctx, %d, %s)", packetID, unit)
	return d.decodeUnit(ctx, packetID, unit, nil)
}

// DecodeRaw submits an already built native packet with PTS := timestamp.
// A nil packet only drains.
func (d *SoftwareDecoder) DecodeRaw(
	ctx context.Context,
	packetID PacketID,
	pkt *astiav.Packet,
	timestamp int64,
) error {
	ctx = d.logCtx(ctx)
	defer d.checkCallCount(ctx)()
	logger.Tracef(ctx, "DecodeRaw(ctx, %d, %p, %d)", packetID, pkt, timestamp)
	if d.state != codecStateOpen {
		return d.errInvalidUsage("DecodeRaw is called on a closed decoder")
	}
	if pkt != nil {
		pkt.SetPts(timestamp)
	}
	return d.decodePacket(ctx, packetID, pkt, nil)
}

func (d *SoftwareDecoder) Flush(
	ctx context.Context,
	packetID PacketID,
) (_err error) {
	ctx = d.logCtx(ctx)
	defer d.checkCallCount(ctx)()
	logger.Debugf(ctx, "Flush(ctx, %d)", packetID)
	defer func() { logger.Debugf(ctx, "/Flush(ctx, %d): %v", packetID, _err) }()
	return d.flush(ctx, packetID, nil)
}

func (d *SoftwareDecoder) Close(ctx context.Context) error {
	ctx = d.logCtx(ctx)
	defer d.checkCallCount(ctx)()
	return d.close(ctx)
}

func (d *SoftwareDecoder) HardwareFrames() *HardwareFrames {
	return nil
}
