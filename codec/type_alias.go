// type_alias.go defines package-level type aliases for common types.

package codec

import (
	"github.com/xaionaro-go/hwcodec/types"
)

type (
	Closer             = types.Closer
	Mode               = types.Mode
	Channel            = types.Channel
	PacketID           = types.PacketID
	FrameID            = types.FrameID
	HardwareDeviceName = types.HardwareDeviceName
)

const (
	ModeSoftware = types.ModeSoftware
	ModeVAAPI    = types.ModeVAAPI
	ModeQSV      = types.ModeQSV
)
