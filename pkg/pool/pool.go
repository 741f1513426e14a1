// Package pool provides object pooling used on the container codec hot path.
// Compression and row encoding reuse byte buffers from here so that writing
// or reading a large file does not allocate per block.
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool is a generic object pool with usage statistics
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)

	allocated int64
	hits      int64
	misses    int64
}

// New creates a new pool. The new function constructs fresh objects, the
// reset function (optional) clears an object before reuse.
func New[T any](newFunc func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.allocated, 1)
		atomic.AddInt64(&p.misses, 1)
		return newFunc()
	}
	return p
}

// Get retrieves an object from the pool
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.hits, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool, resetting it first
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// Stats returns pool usage counters
func (p *Pool[T]) Stats() (allocated, hits, misses int64) {
	return atomic.LoadInt64(&p.allocated), atomic.LoadInt64(&p.hits), atomic.LoadInt64(&p.misses)
}

// Buffers larger than this are dropped instead of pooled so a single oversized
// row block cannot pin memory forever.
const maxPooledBuffer = 4 << 20

var bufferPool = New(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 64*1024)) },
	func(b *bytes.Buffer) { b.Reset() },
)

// GetBuffer retrieves a byte buffer from the shared pool
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get()
}

// PutBuffer returns a byte buffer to the shared pool
func PutBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(b)
}
