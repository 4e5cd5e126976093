// Package tensor holds the float32 buffers that flow between preprocessing,
// the model runtime and ranking, together with the arena that scopes their
// lifetime to a single detection.
package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Tensor is a dense row-major float32 array.
type Tensor struct {
	Shape []int64
	Data  []float32
}

func Len(shape ...int64) int {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return int(n)
}

func (t *Tensor) String() string {
	return fmt.Sprintf("tensor%v", t.Shape)
}

var (
	poolsMu     sync.Mutex
	pools       = map[int]*sync.Pool{}
	outstanding atomic.Int64
)

func poolFor(n int) *sync.Pool {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	p, ok := pools[n]
	if !ok {
		p = &sync.Pool{New: func() any {
			buf := make([]float32, n)
			return &buf
		}}
		pools[n] = p
	}
	return p
}

func acquire(n int) []float32 {
	buf := *(poolFor(n).Get().(*[]float32))
	clear(buf)
	outstanding.Add(1)
	return buf
}

func release(buf []float32) {
	outstanding.Add(-1)
	poolFor(len(buf)).Put(&buf)
}

// Outstanding reports how many pooled buffers are currently checked out.
func Outstanding() int64 {
	return outstanding.Load()
}
