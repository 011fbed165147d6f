// pool.go implements a generic pool of native objects with finalizers.

// Package pool provides a generic object pool with finalizers.
package pool

import (
	"runtime"
	"sync"
)

// ReuseMemory disables recycling when false, which makes use-after-release
// bugs in callbacks easier to spot under a memory checker.
var ReuseMemory = true

// Pool recycles native objects: ResetFunc drops the references an object
// holds before it goes back, and freeFunc runs only when the GC collects it.
type Pool[T any] struct {
	sync.Pool
	ResetFunc func(*T)
}

func NewPool[T any](
	allocFunc func() *T,
	resetFunc func(*T),
	freeFunc func(*T),
) *Pool[T] {
	return &Pool[T]{
		Pool: sync.Pool{
			New: func() any {
				v := allocFunc()
				runtime.SetFinalizer(v, freeFunc)
				return v
			},
		},
		ResetFunc: resetFunc,
	}
}

func (p *Pool[T]) Get() *T {
	return p.Pool.Get().(*T)
}

// Put resets the items and returns them to the pool; nil items are skipped.
func (p *Pool[T]) Put(items ...*T) {
	for _, item := range items {
		if item == nil {
			continue
		}
		p.ResetFunc(item)
		if !ReuseMemory {
			continue
		}
		p.Pool.Put(item)
	}
}
