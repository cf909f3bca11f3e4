// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

// arena is a fixed-size byte buffer with a fill cursor. Bytes in buf[:n] are
// valid; buf[n:] is free space.
type arena struct {
	buf []byte
	n   int
}

func newArena(size int) arena {
	return arena{buf: make([]byte, size)}
}

func (a *arena) bytes() []byte { return a.buf[:a.n] }
func (a *arena) free() []byte  { return a.buf[a.n:] }
func (a *arena) len() int      { return a.n }
func (a *arena) cap() int      { return len(a.buf) }
func (a *arena) reset()        { a.n = 0 }

func (a *arena) advance(n int) {
	a.n += n
}

// append copies p in full or not at all.
func (a *arena) append(p []byte) bool {
	if len(p) > len(a.buf)-a.n {
		return false
	}
	a.n += copy(a.buf[a.n:], p)
	return true
}

// consume drops the first n valid bytes and moves the rest to the front.
func (a *arena) consume(n int) {
	if n >= a.n {
		a.n = 0
		return
	}
	copy(a.buf, a.buf[n:a.n])
	a.n -= n
}
