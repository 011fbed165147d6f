// hardware_device_type.go resolves libav hardware device types by name.

// Package avconv provides conversion utilities between hwcodec and libav values.
package avconv

import (
	"context"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/logger"
)

var knownHardwareDeviceTypes = []astiav.HardwareDeviceType{
	astiav.HardwareDeviceTypeCUDA,
	astiav.HardwareDeviceTypeD3D11VA,
	astiav.HardwareDeviceTypeDRM,
	astiav.HardwareDeviceTypeDXVA2,
	astiav.HardwareDeviceTypeMediaCodec,
	astiav.HardwareDeviceTypeOpenCL,
	astiav.HardwareDeviceTypeQSV,
	astiav.HardwareDeviceTypeVAAPI,
	astiav.HardwareDeviceTypeVDPAU,
	astiav.HardwareDeviceTypeVideoToolbox,
	astiav.HardwareDeviceTypeVulkan,
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Trim(s, " \n\r\t"))
}

// HardwareDeviceTypeFromString maps a name to a device type known to libav;
// HardwareDeviceTypeNone means an unknown name. A known type may still be
// compiled out, that is only detected by creating a device context.
func HardwareDeviceTypeFromString(
	ctx context.Context,
	s string,
) (_ret astiav.HardwareDeviceType) {
	logger.Tracef(ctx, "HardwareDeviceTypeFromString(ctx, '%s')", s)
	defer func() { logger.Tracef(ctx, "/HardwareDeviceTypeFromString(ctx, '%s'): %s", s, _ret) }()
	s = normalizeName(s)
	for _, candidate := range knownHardwareDeviceTypes {
		if normalizeName(candidate.String()) != s {
			continue
		}
		if astiav.FindHardwareDeviceTypeByName(s) != candidate {
			return astiav.HardwareDeviceTypeNone
		}
		return candidate
	}
	return astiav.HardwareDeviceTypeNone
}

// KnownHardwareDeviceTypes lists the device types libav has a name for,
// regardless of whether they are compiled in or present.
func KnownHardwareDeviceTypes() []astiav.HardwareDeviceType {
	var result []astiav.HardwareDeviceType
	for _, candidate := range knownHardwareDeviceTypes {
		if astiav.FindHardwareDeviceTypeByName(candidate.String()) == candidate {
			result = append(result, candidate)
		}
	}
	return result
}

// AvailableHardwareDeviceTypes lists the known device types a default
// device context can be created for on this machine.
func AvailableHardwareDeviceTypes(ctx context.Context) []astiav.HardwareDeviceType {
	var result []astiav.HardwareDeviceType
	for _, candidate := range KnownHardwareDeviceTypes() {
		dev, err := astiav.CreateHardwareDeviceContext(candidate, "", nil, 0)
		if err != nil {
			logger.Debugf(ctx, "the device type %s is not available: %v", candidate, err)
			continue
		}
		dev.Free()
		result = append(result, candidate)
	}
	return result
}

func HardwareDeviceTypeNames(types []astiav.HardwareDeviceType) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}
	if len(names) == 0 {
		return "<none>"
	}
	return strings.Join(names, ", ")
}
