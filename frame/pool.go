// pool.go implements a pool for reusing astiav.Frame objects.

// Package frame provides helpers around decoded pictures.
package frame

import (
	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/pool"
)

var Pool = pool.NewPool(
	astiav.AllocFrame,
	func(f *astiav.Frame) { f.Unref() },
	func(f *astiav.Frame) { f.Free() },
)

// CloneAsReferenced returns a pooled frame sharing the buffers of src; use it
// to keep a picture beyond the callback it was delivered to.
func CloneAsReferenced(src *astiav.Frame) (*astiav.Frame, error) {
	dst := Pool.Get()
	if err := dst.Ref(src); err != nil {
		Pool.Put(dst)
		return nil, err
	}
	return dst, nil
}
