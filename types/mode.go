// mode.go defines the Mode enum selecting a codec backend.

// Package types provides common types and interfaces used throughout the hwcodec project.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode selects the codec backend at construction time.
type Mode int

const (
	ModeSoftware = Mode(iota)
	ModeVAAPI
	ModeQSV
	EndOfMode
)

func Modes() []Mode {
	return []Mode{
		ModeSoftware,
		ModeVAAPI,
		ModeQSV,
	}
}

func (m Mode) String() string {
	switch m {
	case ModeSoftware:
		return "sw"
	case ModeVAAPI:
		return "vaapi"
	case ModeQSV:
		return "qsv"
	}
	return fmt.Sprintf("unknown_%X", int64(m))
}

// IsHardware reports whether the mode is one of the hardware-accelerated backends.
func (m Mode) IsHardware() bool {
	switch m {
	case ModeVAAPI, ModeQSV:
		return true
	}
	return false
}

func (m Mode) IsValid() bool {
	return m >= ModeSoftware && m < EndOfMode
}

// ModeFromString parses a backend name; EndOfMode is returned for unknown names.
func ModeFromString(s string) Mode {
	s = strings.Trim(strings.ToLower(s), " \n\r\t")
	switch s {
	case "software":
		return ModeSoftware
	}
	for _, m := range Modes() {
		if m.String() == s {
			return m
		}
	}
	return EndOfMode
}

func (m *Mode) Set(s string) error {
	v := ModeFromString(s)
	if !v.IsValid() {
		return fmt.Errorf("unknown codec mode: '%s'", s)
	}
	*m = v
	return nil
}

func (m Mode) Type() string {
	return "mode"
}

func (m *Mode) UnmarshalYAML(b []byte) error {
	return m.Set(strings.Trim(string(b), " \"\n\t\r"))
}

func (m Mode) MarshalYAML() ([]byte, error) {
	return json.Marshal(m.String())
}
