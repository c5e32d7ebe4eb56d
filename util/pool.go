package util

import "sync"

// DefaultBufSize is the read buffer size used when draining inbound
// scripts (32 KiB).
const DefaultBufSize = 32 * 1024

// BufPool provides reusable byte buffers for the listen sink, which
// drains one connection per received script.
var BufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
