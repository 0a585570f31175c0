package fs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
	"github.com/Alexander-D-Karpov/blockfs/internal/logger"
)

type Options struct {
	MaxEntries int
	MaxNameLen int
}

type Stats struct {
	Geometry    domain.Geometry `json:"geometry"`
	TotalBlocks int             `json:"total_blocks"`
	UsedBlocks  int             `json:"used_blocks"`
	Files       int             `json:"files"`
	Dirs        int             `json:"dirs"`
	Entries     int             `json:"entries"`
	MaxEntries  int             `json:"max_entries"`
}

// Filesystem is a flat table of entries forming a tree through parent
// indices, plus a bitmap of the device blocks owned by files. Only file data
// lives on the device; the table and bitmap are lost when the process exits.
type Filesystem struct {
	mu      sync.Mutex
	dev     domain.BlockDevice
	geo     domain.Geometry
	entries []domain.Entry
	bitmap  *Bitmap
	maxName int
	gen     uint64
}

// New builds a formatted filesystem on dev.
func New(dev domain.BlockDevice, opts Options) *Filesystem {
	if opts.MaxEntries < 1 {
		opts.MaxEntries = 256
	}
	if opts.MaxNameLen < 1 {
		opts.MaxNameLen = 63
	}

	geo := dev.Geometry()
	f := &Filesystem{
		dev:     dev,
		geo:     geo,
		entries: make([]domain.Entry, opts.MaxEntries),
		bitmap:  NewBitmap(geo.Blocks()),
		maxName: opts.MaxNameLen,
	}
	f.format()
	return f
}

// Format drops every file and directory and frees every block. Block
// contents on the device are left alone. Open sessions fall back to root.
func (f *Filesystem) Format() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.format()
}

func (f *Filesystem) format() {
	clear(f.entries)
	f.bitmap.Reset()
	f.entries[domain.RootID] = domain.Entry{
		Used:       true,
		Kind:       domain.KindDir,
		Parent:     domain.RootID,
		Name:       "/",
		FirstBlock: domain.NoBlock,
	}
	f.gen++
	logger.Debug("Filesystem formatted: %s entries=%d", f.geo, len(f.entries))
}

func (f *Filesystem) Geometry() domain.Geometry {
	return f.geo
}

func (f *Filesystem) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := Stats{
		Geometry:    f.geo,
		TotalBlocks: f.bitmap.Len(),
		UsedBlocks:  f.bitmap.Used(),
		MaxEntries:  len(f.entries),
	}
	for i := range f.entries {
		e := &f.entries[i]
		if !e.Used {
			continue
		}
		st.Entries++
		if e.IsDir() {
			st.Dirs++
		} else {
			st.Files++
		}
	}
	return st
}

// NewSession starts a client session with its working directory at root.
func (f *Filesystem) NewSession() *Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &Session{fs: f, cwd: domain.RootID, gen: f.gen}
}

func (f *Filesystem) validName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	case len(name) > f.maxName:
		return fmt.Errorf("%w: longer than %d bytes", domain.ErrInvalidName, f.maxName)
	case strings.ContainsAny(name, "/ \t\r\n"):
		return fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	}
	return nil
}

// allocEntry returns the lowest free slot above root, or -1 if the table is full.
func (f *Filesystem) allocEntry() int {
	for i := 1; i < len(f.entries); i++ {
		if !f.entries[i].Used {
			return i
		}
	}
	return -1
}

// find returns the index of the child of parent with the given name and kind, or -1.
func (f *Filesystem) find(name string, kind domain.Kind, parent int) int {
	for i := 1; i < len(f.entries); i++ {
		e := &f.entries[i]
		if e.Used && e.Parent == parent && e.Kind == kind && e.Name == name {
			return i
		}
	}
	return -1
}

func (f *Filesystem) hasChildren(id int) bool {
	for i := 1; i < len(f.entries); i++ {
		if f.entries[i].Used && f.entries[i].Parent == id {
			return true
		}
	}
	return false
}

func (f *Filesystem) list(dir int) []domain.DirEntry {
	var out []domain.DirEntry
	for i := 1; i < len(f.entries); i++ {
		e := &f.entries[i]
		if !e.Used || e.Parent != dir {
			continue
		}
		out = append(out, domain.DirEntry{ID: i, Name: e.Name, Kind: e.Kind, Size: e.Size})
	}
	return out
}

func (f *Filesystem) path(id int) string {
	var parts []string
	for cur := id; cur != domain.RootID && len(parts) < len(f.entries); cur = f.entries[cur].Parent {
		parts = append(parts, f.entries[cur].Name)
	}
	if len(parts) == 0 {
		return "/"
	}

	var sb strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		sb.WriteByte('/')
		sb.WriteString(parts[i])
	}
	return sb.String()
}

// release frees the blocks of a file and leaves it empty.
func (f *Filesystem) release(e *domain.Entry) {
	if e.FirstBlock != domain.NoBlock {
		f.bitmap.ClearRange(e.FirstBlock, e.BlockCount)
	}
	e.FirstBlock = domain.NoBlock
	e.BlockCount = 0
	e.Size = 0
	e.Checksum = 0
}

// store replaces the content of a file. The old blocks are freed before the
// new run is searched for, so a failed store leaves the file empty.
func (f *Filesystem) store(e *domain.Entry, data []byte) error {
	f.release(e)

	needed := f.geo.BlocksFor(len(data))
	if needed == 0 {
		return nil
	}

	first := f.bitmap.FindRun(needed)
	if first < 0 {
		return fmt.Errorf("%w: no run of %d free blocks", domain.ErrNoSpace, needed)
	}
	if err := f.bitmap.SetRange(first, needed); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNoSpace, err)
	}

	e.FirstBlock = first
	e.BlockCount = needed
	e.Size = len(data)
	e.Checksum = xxh3.Hash(data)

	bs := f.geo.BlockSize
	for i := 0; i < needed; i++ {
		end := (i + 1) * bs
		if end > len(data) {
			end = len(data)
		}
		c, s := f.geo.Locate(first + i)
		if err := f.dev.WriteBlock(c, s, data[i*bs:end]); err != nil {
			logger.Warn("Write of %q stopped at block %d: %v", e.Name, first+i, err)
			return fmt.Errorf("%w: write block %d: %v", domain.ErrDevice, first+i, err)
		}
	}
	return nil
}

// load reads the content of a file back from the device.
func (f *Filesystem) load(e *domain.Entry) ([]byte, error) {
	out := make([]byte, 0, e.Size)
	for i := 0; i < e.BlockCount; i++ {
		c, s := f.geo.Locate(e.FirstBlock + i)
		block, err := f.dev.ReadBlock(c, s)
		if err != nil {
			return nil, fmt.Errorf("%w: read block %d: %v", domain.ErrDevice, e.FirstBlock+i, err)
		}
		chunk := e.Size - len(out)
		if chunk <= 0 {
			break
		}
		if chunk > len(block) {
			chunk = len(block)
		}
		out = append(out, block[:chunk]...)
	}
	return out, nil
}

func (f *Filesystem) verify(e *domain.Entry, data []byte) bool {
	if e.Size == 0 {
		return true
	}
	return xxh3.Hash(data) == e.Checksum
}
