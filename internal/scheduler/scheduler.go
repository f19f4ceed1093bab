package scheduler

import (
	"fmt"
	"strings"
)

// Disabled is the time of an event that is not scheduled. It compares
// greater than every reachable cycle, so a disabled tag never wins the
// tournament unless every tag is disabled.
const Disabled = ^uint64(0)

// Keeper keeps the earliest of a fixed set of tagged event times.
//
// The times are the leaves of a binary tournament tree stored in a flat
// slice: leaf i lives at size+i and every inner node holds the tag of the
// earlier of its two children, so the root always names the earliest
// event. Setting a time only replays the matches on the path from the leaf
// to the root. When two tags hold the same time the lower tag wins, which
// makes the execution order of same-cycle events follow the declaration
// order of the tags.
type Keeper[ID ~uint8] struct {
	times []uint64
	win   []ID
	size  int
	n     int
}

// NewKeeper returns a Keeper for n tags (0..n-1) with every tag disabled.
func NewKeeper[ID ~uint8](n int) *Keeper[ID] {
	if n <= 0 {
		panic("scheduler: keeper needs at least one tag")
	}

	size := 1
	for size < n {
		size <<= 1
	}

	k := &Keeper[ID]{
		times: make([]uint64, size),
		win:   make([]ID, 2*size),
		size:  size,
		n:     n,
	}
	for i := range k.times {
		k.times[i] = Disabled
	}
	for i := 0; i < size; i++ {
		k.win[size+i] = ID(i)
	}
	for i := size - 1; i > 0; i-- {
		k.win[i] = k.match(2*i, 2*i+1)
	}

	return k
}

// match returns the winner of the two tree nodes a and b.
func (k *Keeper[ID]) match(a, b int) ID {
	wa, wb := k.win[a], k.win[b]
	if k.times[wb] < k.times[wa] {
		return wb
	}
	return wa
}

// Set schedules id at time t. Passing Disabled cancels it.
func (k *Keeper[ID]) Set(id ID, t uint64) {
	k.times[id] = t
	for i := (k.size + int(id)) >> 1; i > 0; i >>= 1 {
		k.win[i] = k.match(2*i, 2*i+1)
	}
}

// Value returns the time id is scheduled at.
func (k *Keeper[ID]) Value(id ID) uint64 {
	return k.times[id]
}

// Min returns the tag of the earliest event.
func (k *Keeper[ID]) Min() ID {
	return k.win[1]
}

// MinValue returns the time of the earliest event.
func (k *Keeper[ID]) MinValue() uint64 {
	return k.times[k.win[1]]
}

// Len returns the number of tags held.
func (k *Keeper[ID]) Len() int {
	return k.n
}

// Rebase subtracts dec from every scheduled time. Disabled tags stay
// disabled.
func (k *Keeper[ID]) Rebase(dec uint64) {
	for i := 0; i < k.n; i++ {
		if k.times[i] != Disabled {
			k.times[i] -= dec
		}
	}
}

func (k *Keeper[ID]) String() string {
	var b strings.Builder
	for i := 0; i < k.n; i++ {
		if k.times[i] == Disabled {
			fmt.Fprintf(&b, "%d:-> ", i)
		} else {
			fmt.Fprintf(&b, "%d:%d-> ", i, k.times[i])
		}
	}
	return strings.TrimSpace(b.String())
}

// Rebase subtracts dec from t unless t is Disabled.
func Rebase(t, dec uint64) uint64 {
	if t == Disabled {
		return t
	}
	return t - dec
}

// Clamp raises t to at least cc unless t is Disabled. Restored times are
// clamped so nothing loaded from a snapshot lies in the past.
func Clamp(t, cc uint64) uint64 {
	if t != Disabled && t < cc {
		return cc
	}
	return t
}
