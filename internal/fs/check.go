package fs

import (
	"fmt"

	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
)

// Problem is one inconsistency found by Check.
type Problem struct {
	Entry   int    `json:"entry"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	return fmt.Sprintf("entry %d: %s", p.Entry, p.Message)
}

// Check walks the entry table and the bitmap and reports every broken
// invariant it finds. With deep set, file content is read back from the
// device and compared against the recorded checksums.
func (f *Filesystem) Check(deep bool) []Problem {
	f.mu.Lock()
	defer f.mu.Unlock()

	var problems []Problem
	report := func(id int, format string, args ...any) {
		problems = append(problems, Problem{Entry: id, Message: fmt.Sprintf(format, args...)})
	}

	root := &f.entries[domain.RootID]
	if !root.Used || !root.IsDir() || root.Parent != domain.RootID {
		report(domain.RootID, "root is not a used directory parented to itself")
	}

	type sibling struct {
		parent int
		kind   domain.Kind
		name   string
	}
	seen := make(map[sibling]int)
	shadow := NewBitmap(f.bitmap.Len())

	for i := 1; i < len(f.entries); i++ {
		e := &f.entries[i]
		if !e.Used {
			continue
		}

		if err := f.validName(e.Name); err != nil {
			report(i, "%v", err)
		}
		if p := e.Parent; p < 0 || p >= len(f.entries) || !f.entries[p].Used || !f.entries[p].IsDir() {
			report(i, "parent %d is not a used directory", p)
		} else if !f.reachesRoot(i) {
			report(i, "parent chain does not reach root")
		}

		key := sibling{parent: e.Parent, kind: e.Kind, name: e.Name}
		if first, ok := seen[key]; ok {
			report(i, "duplicate %s name %q, first seen at entry %d", e.Kind, e.Name, first)
		} else {
			seen[key] = i
		}

		if e.IsDir() {
			if e.FirstBlock != domain.NoBlock || e.BlockCount != 0 || e.Size != 0 {
				report(i, "directory owns data")
			}
			continue
		}

		if want := f.geo.BlocksFor(e.Size); e.BlockCount != want {
			report(i, "size %d needs %d blocks, has %d", e.Size, want, e.BlockCount)
		}
		if e.BlockCount == 0 {
			if e.FirstBlock != domain.NoBlock {
				report(i, "empty file points at block %d", e.FirstBlock)
			}
			continue
		}
		if e.FirstBlock < 0 || e.FirstBlock+e.BlockCount > f.bitmap.Len() {
			report(i, "blocks [%d,%d) out of bounds", e.FirstBlock, e.FirstBlock+e.BlockCount)
			continue
		}
		for b := e.FirstBlock; b < e.FirstBlock+e.BlockCount; b++ {
			if shadow.IsSet(b) {
				report(i, "block %d is shared with another file", b)
			}
		}
		shadow.SetRange(e.FirstBlock, e.BlockCount)

		if deep {
			data, err := f.load(e)
			switch {
			case err != nil:
				report(i, "read failed: %v", err)
			case !f.verify(e, data):
				report(i, "checksum mismatch")
			}
		}
	}

	for b := 0; b < f.bitmap.Len(); b++ {
		switch used, owned := f.bitmap.IsSet(b), shadow.IsSet(b); {
		case used && !owned:
			report(domain.RootID, "block %d allocated but owned by no file", b)
		case !used && owned:
			report(domain.RootID, "block %d owned by a file but free in the bitmap", b)
		}
	}
	return problems
}

func (f *Filesystem) reachesRoot(id int) bool {
	cur := id
	for steps := 0; steps < len(f.entries); steps++ {
		if cur == domain.RootID {
			return true
		}
		p := f.entries[cur].Parent
		if p < 0 || p >= len(f.entries) || !f.entries[p].Used {
			return false
		}
		cur = p
	}
	return false
}
