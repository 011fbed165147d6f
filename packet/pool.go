// pool.go implements a pool for reusing astiav.Packet objects.

package packet

import (
	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/pool"
)

var Pool = pool.NewPool(
	astiav.AllocPacket,
	func(p *astiav.Packet) { p.Unref() },
	func(p *astiav.Packet) { p.Free() },
)

// CloneAsReferenced returns a pooled packet sharing the payload of src.
func CloneAsReferenced(src *astiav.Packet) (*astiav.Packet, error) {
	dst := Pool.Get()
	if err := dst.Ref(src); err != nil {
		Pool.Put(dst)
		return nil, err
	}
	return dst, nil
}
