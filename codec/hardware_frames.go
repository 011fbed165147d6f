// hardware_frames.go implements the shareable handle of a device memory pool.

package codec

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/hwcodec/logger"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// HardwareFrames is a device context plus a pool of device-resident frames.
//
// Exactly one component (the producer that created the pool) owns it. Others
// get a non-owning view via Borrow and hand it back via Return; a borrowed
// view's Release never frees anything.
type HardwareFrames struct {
	*hardwareFramesShared
	isBorrowed bool
	isReturned atomic.Bool
}

type hardwareFramesShared struct {
	locker    xsync.Mutex
	owner     string
	device    *astiav.HardwareDeviceContext
	pool      *astiav.HardwareFramesContext
	lookup    func() *astiav.HardwareFramesContext
	props     HardwareFramesProperties
	borrowers int
	released  bool
	free      func()
}

type HardwareFramesProperties struct {
	DeviceType          astiav.HardwareDeviceType
	HardwarePixelFormat astiav.PixelFormat
	SoftwarePixelFormat astiav.PixelFormat
	Width               int
	Height              int
	InitialPoolSize     int
}

func (p HardwareFramesProperties) String() string {
	return fmt.Sprintf(
		"%s:%s/%s:%dx%d:pool%d",
		p.DeviceType, p.HardwarePixelFormat, p.SoftwarePixelFormat,
		p.Width, p.Height, p.InitialPoolSize,
	)
}

// newHardwareFrames creates an owner handle; free (may be nil) is invoked
// once on Release.
func newHardwareFrames(
	owner string,
	device *astiav.HardwareDeviceContext,
	pool *astiav.HardwareFramesContext,
	props HardwareFramesProperties,
	free func(),
) *HardwareFrames {
	return &HardwareFrames{
		hardwareFramesShared: &hardwareFramesShared{
			owner:  owner,
			device: device,
			pool:   pool,
			props:  props,
			free:   free,
		},
	}
}

// newBoundHardwareFrames creates an owner handle of a pool that libav may
// replace at any time (a decoder renegotiating its surfaces). The pool is
// looked up on every use instead of being cached; nothing is freed on Release.
func newBoundHardwareFrames(
	owner string,
	device *astiav.HardwareDeviceContext,
	lookup func() *astiav.HardwareFramesContext,
	props HardwareFramesProperties,
) *HardwareFrames {
	return &HardwareFrames{
		hardwareFramesShared: &hardwareFramesShared{
			owner:  owner,
			device: device,
			lookup: lookup,
			props:  props,
		},
	}
}

func (f *HardwareFrames) String() string {
	if f == nil {
		return "HardwareFrames(<nil>)"
	}
	props := f.Properties(context.Background())
	if f.isBorrowed {
		return fmt.Sprintf("HardwareFrames(%s, borrowed from %s)", props, f.owner)
	}
	return fmt.Sprintf("HardwareFrames(%s, owned by %s)", props, f.owner)
}

func (f *HardwareFrames) Properties(ctx context.Context) HardwareFramesProperties {
	return xsync.DoR1(ctx, &f.locker, func() HardwareFramesProperties {
		return f.props
	})
}

// setGeometry records the picture size the pool currently serves and
// reports whether it changed.
func (f *HardwareFrames) setGeometry(ctx context.Context, width, height int) bool {
	return xsync.DoR1(ctx, &f.locker, func() bool {
		if f.props.Width == width && f.props.Height == height {
			return false
		}
		logger.Debugf(ctx, "the hardware frames of %s changed %dx%d -> %dx%d", f.owner, f.props.Width, f.props.Height, width, height)
		f.props.Width, f.props.Height = width, height
		return true
	})
}

func (f *HardwareFrames) DeviceType() astiav.HardwareDeviceType {
	return f.props.DeviceType
}

// IsBorrowed reports whether this is a non-owning view.
func (f *HardwareFrames) IsBorrowed() bool {
	return f.isBorrowed
}

func (f *HardwareFrames) Borrowers(ctx context.Context) int {
	return xsync.DoR1(ctx, &f.locker, func() int {
		return f.borrowers
	})
}

func (f *HardwareFrames) IsReleased(ctx context.Context) bool {
	return xsync.DoR1(ctx, &f.locker, func() bool {
		return f.released
	})
}

// Borrow returns a non-owning view. It fails if the owner already released the pool.
func (f *HardwareFrames) Borrow(ctx context.Context) (*HardwareFrames, error) {
	return xsync.DoR2(ctx, &f.locker, func() (*HardwareFrames, error) {
		if f.released {
			return nil, fmt.Errorf("the hardware frames of %s are already released", f.owner)
		}
		f.borrowers++
		logger.Debugf(ctx, "borrowed the hardware frames of %s, borrowers: %d", f.owner, f.borrowers)
		return &HardwareFrames{
			hardwareFramesShared: f.hardwareFramesShared,
			isBorrowed:           true,
		}, nil
	})
}

// Return hands a borrowed view back to the owner; only the first call counts.
func (f *HardwareFrames) Return(ctx context.Context) {
	if !f.isBorrowed {
		logger.Errorf(ctx, "Return is called on the owner handle of %s", f.owner)
		return
	}
	if f.isReturned.Swap(true) {
		return
	}
	f.locker.Do(ctx, func() {
		f.borrowers--
		logger.Debugf(ctx, "returned the hardware frames of %s, borrowers: %d", f.owner, f.borrowers)
	})
}

// Release frees the native pool if called on the owner handle. On a
// borrowed view it only returns the view.
func (f *HardwareFrames) Release(ctx context.Context) {
	if f.isBorrowed {
		f.Return(ctx)
		return
	}
	free := xsync.DoR1(ctx, &f.locker, func() func() {
		if f.released {
			return nil
		}
		f.released = true
		if f.borrowers > 0 {
			logger.Errorf(ctx, "releasing the hardware frames of %s while %d borrower(s) still use them", f.owner, f.borrowers)
		}
		free := f.free
		f.free = nil
		return free
	})
	if free != nil {
		free()
	}
}

// nativePool returns the current native pool; nil once the owner released it.
func (f *HardwareFrames) nativePool(ctx context.Context) *astiav.HardwareFramesContext {
	return xsync.DoR1(ctx, &f.locker, func() *astiav.HardwareFramesContext {
		if f.released {
			return nil
		}
		if f.lookup != nil {
			return f.lookup()
		}
		return f.pool
	})
}
