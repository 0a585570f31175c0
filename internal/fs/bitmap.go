package fs

import (
	"errors"
	"math/bits"
)

var errRange = errors.New("block range out of bounds")

// Bitmap tracks allocated blocks, one bit per block.
type Bitmap struct {
	words []uint64
	n     int
}

func NewBitmap(n int) *Bitmap {
	return &Bitmap{
		words: make([]uint64, (n+63)/64),
		n:     n,
	}
}

func (b *Bitmap) Len() int {
	return b.n
}

func (b *Bitmap) IsSet(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.words[i/64]&(1<<(uint(i)%64)) != 0
}

func (b *Bitmap) SetRange(start, count int) error {
	if start < 0 || count < 0 || start+count > b.n {
		return errRange
	}
	for i := start; i < start+count; i++ {
		b.words[i/64] |= 1 << (uint(i) % 64)
	}
	return nil
}

// ClearRange frees a run of blocks. Bits outside the bitmap are ignored.
func (b *Bitmap) ClearRange(start, count int) {
	if start < 0 || count <= 0 {
		return
	}
	for i := start; i < start+count && i < b.n; i++ {
		b.words[i/64] &^= 1 << (uint(i) % 64)
	}
}

// FindRun returns the first index of count consecutive free blocks, scanning
// from block 0, or -1 if no such run exists.
func (b *Bitmap) FindRun(count int) int {
	if count <= 0 || count > b.n {
		return -1
	}

	run := 0
	for i := 0; i < b.n; i++ {
		if b.IsSet(i) {
			run = 0
			continue
		}
		run++
		if run == count {
			return i - count + 1
		}
	}
	return -1
}

func (b *Bitmap) Used() int {
	used := 0
	for _, w := range b.words {
		used += bits.OnesCount64(w)
	}
	return used
}

func (b *Bitmap) Reset() {
	clear(b.words)
}
