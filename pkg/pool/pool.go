// Package pool provides typed object pooling for strata's scratch buffers.
//
// Column storage is owned by the caller and never pooled. What is pooled is
// the short-lived scratch space around it, such as the line buffers of the
// JSON Lines exporter:
//
//	buf := pool.Buffers.Get(4096)[:0]
//	defer func() { pool.Buffers.Put(buf) }()
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a type-safe wrapper around sync.Pool that tracks usage and resets
// objects on return. It is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// New creates a pool. reset is optional and runs before an object is
// returned to the pool.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object, allocating one if the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put returns obj to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the number of objects ever allocated, currently checked out
// and handed out in total.
func (p *Pool[T]) Stats() (allocated, inUse, gets int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.gets)
}

// Buffers is the shared byte buffer pool.
var Buffers = NewBufferPool()

// BufferPool manages byte buffers in power-of-four size buckets. Requests
// larger than the biggest bucket are allocated directly and dropped on Put.
type BufferPool struct {
	pools []*Pool[*[]byte]
	sizes []int
}

// NewBufferPool creates a pool with buckets from 1KB to 4MB.
func NewBufferPool() *BufferPool {
	sizes := []int{
		1 << 10, // 1KB
		1 << 12,
		1 << 14,
		1 << 16, // 64KB
		1 << 18,
		1 << 20,
		1 << 22, // 4MB
	}

	pools := make([]*Pool[*[]byte], len(sizes))
	for i, size := range sizes {
		size := size
		pools[i] = New(
			func() *[]byte {
				b := make([]byte, size)
				return &b
			},
			nil,
		)
	}
	return &BufferPool{pools: pools, sizes: sizes}
}

// Get returns a buffer of length size. Its capacity is the smallest bucket
// that fits.
func (p *BufferPool) Get(size int) []byte {
	for i, s := range p.sizes {
		if s >= size {
			buf := *p.pools[i].Get()
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the bucket matching its capacity. Buffers that grew
// past their bucket or never came from the pool are left to the GC.
func (p *BufferPool) Put(buf []byte) {
	size := cap(buf)
	for i, s := range p.sizes {
		if s == size {
			buf = buf[:size]
			p.pools[i].Put(&buf)
			return
		}
	}
}
