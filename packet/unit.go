// unit.go defines the compressed access unit carried into decoders.

// Package packet provides the compressed data carriers of hwcodec.
package packet

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

// Unit is one compressed access unit handed over by a demux/parse
// collaborator. Data may be shared between stages while in flight; nobody
// mutates it after construction.
type Unit struct {
	// Timestamp is the capture/presentation time in the collaborator's time base.
	Timestamp int64
	// FrameRate is an optional frames-per-second hint (zero if unknown);
	// decoders adopt a non-zero hint as the stream frame rate.
	FrameRate uint32
	Data      []byte
}

func NewUnit(ts int64, data []byte) *Unit {
	return &Unit{
		Timestamp: ts,
		Data:      data,
	}
}

// Size returns the byte length of the payload.
func (u *Unit) Size() int {
	if u == nil {
		return 0
	}
	return len(u.Data)
}

// IsSentinel reports whether u signals end-of-stream (nil or empty).
func (u *Unit) IsSentinel() bool {
	return u.Size() == 0
}

func (u *Unit) String() string {
	if u == nil {
		return "Unit(<nil>)"
	}
	return fmt.Sprintf("Unit(ts:%d, size:%d)", u.Timestamp, len(u.Data))
}

// ToAstiav fills dst with a copy of the payload and sets its PTS from Timestamp.
func (u *Unit) ToAstiav(dst *astiav.Packet) error {
	if err := dst.FromData(u.Data); err != nil {
		return fmt.Errorf("unable to fill the packet with %d bytes: %w", len(u.Data), err)
	}
	dst.SetPts(u.Timestamp)
	return nil
}

// UnitFromAstiav copies an emitted native packet so it can outlive the callback.
func UnitFromAstiav(p *astiav.Packet) *Unit {
	data := p.Data()
	u := &Unit{
		Timestamp: p.Pts(),
		Data:      make([]byte, len(data)),
	}
	copy(u.Data, data)
	return u
}
