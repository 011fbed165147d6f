package codec

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/hwcodec/logger"
)

// OpenChainedEncoder opens enc so that it consumes the device-resident
// pictures of dec without copying them. The decoder stays the owner of the
// pool and must be closed after the encoder.
func OpenChainedEncoder(
	ctx context.Context,
	dec Decoder,
	enc Encoder,
	params EncoderParams,
	cb EncodeCallback,
) error {
	if !dec.IsOpen() {
		return ErrInvalidUsage{Backend: dec.Mode(), Channel: dec.Channel(), Reason: "the decoder is not open"}
	}
	if enc.Mode().IsHardware() {
		if dec.Mode() != enc.Mode() {
			return ErrBackendInit{
				Backend: enc.Mode(),
				Channel: enc.Channel(),
				Reason:  fmt.Sprintf("cannot chain a %s decoder into a %s encoder", dec.Mode(), enc.Mode()),
			}
		}
		frames := dec.HardwareFrames()
		if frames == nil {
			return ErrBackendInit{
				Backend: enc.Mode(),
				Channel: enc.Channel(),
				Reason:  fmt.Sprintf("%s exposes no hardware frames (yet)", dec),
			}
		}
		params.HardwareFrames = frames
	}
	logger.Debugf(ctx, "opening %s chained to %s", enc, dec)
	return enc.Open(ctx, params, cb)
}
