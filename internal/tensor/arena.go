package tensor

import "errors"

var ErrArenaReleased = errors.New("arena already released")

// Arena owns every buffer and runtime value allocated during one
// preprocessing/inference pass. Release frees them in reverse order.
type Arena struct {
	releases []func()
	done     bool
}

// Scope runs fn with a fresh arena and releases it when fn returns,
// whether or not fn failed.
func Scope(fn func(a *Arena) error) error {
	a := &Arena{}
	defer a.Release()
	return fn(a)
}

// Alloc returns a zeroed tensor of the given shape owned by the arena.
func (a *Arena) Alloc(shape ...int64) (*Tensor, error) {
	if a.done {
		return nil, ErrArenaReleased
	}
	n := Len(shape...)
	if n <= 0 {
		return nil, errors.New("tensor shape must have a positive element count")
	}
	buf := acquire(n)
	a.releases = append(a.releases, func() { release(buf) })
	s := make([]int64, len(shape))
	copy(s, shape)
	return &Tensor{Shape: s, Data: buf}, nil
}

// Defer registers a cleanup for a resource the arena did not allocate,
// such as a native runtime tensor.
func (a *Arena) Defer(fn func()) {
	if a.done {
		fn()
		return
	}
	a.releases = append(a.releases, fn)
}

func (a *Arena) Release() {
	if a.done {
		return
	}
	a.done = true
	for i := len(a.releases) - 1; i >= 0; i-- {
		a.releases[i]()
	}
	a.releases = nil
}
