// ids.go defines the diagnostic channel tag and the correlation identifiers.

package types

import (
	"fmt"
)

// Channel tags one logical stream instance in logs; it has no behavioral meaning.
type Channel int

func (c Channel) String() string {
	return fmt.Sprintf("chn%d", int(c))
}

// PacketID is a caller-assigned token threaded from a decode input to every
// frame produced from it.
type PacketID uint64

// FrameID is a caller-assigned token threaded from an encode input to every
// packet produced from it.
type FrameID uint64
