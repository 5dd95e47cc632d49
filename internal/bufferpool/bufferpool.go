package bufferpool

import "sync"

// Pool recycles fixed-capacity byte buffers. It serves piece reads during
// hash checks, so every buffer is allocated with the capacity of the longest
// piece and sliced down to the length of the piece being read.
type Pool struct {
	buflen int
	bufs   sync.Pool
}

// New returns a new Pool of buffers with capacity buflen.
func New(buflen int) *Pool {
	p := &Pool{buflen: buflen}
	p.bufs.New = func() interface{} {
		b := make([]byte, buflen)
		return &b
	}
	return p
}

// Cap returns the capacity of the buffers in the pool.
func (p *Pool) Cap() int { return p.buflen }

// Get returns a buffer sliced to datalen bytes. Panics if datalen exceeds
// the capacity given to New. Call Release on the buffer when done with it.
func (p *Pool) Get(datalen int) Buffer {
	if datalen > p.buflen {
		panic("requested buffer length exceeds pool capacity")
	}
	buf := p.bufs.Get().(*[]byte)
	return Buffer{
		Data: (*buf)[:datalen],
		buf:  buf,
		pool: p,
	}
}

// Buffer is a slice of a pooled allocation.
type Buffer struct {
	Data []byte
	buf  *[]byte
	pool *Pool
}

// Release returns the buffer to its Pool. The Buffer must not be used after
// Release.
func (b Buffer) Release() {
	// argument to Put should be pointer-like to avoid allocations
	b.pool.bufs.Put(b.buf)
}
