package fs

import (
	"fmt"
	"strings"

	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
	"github.com/Alexander-D-Karpov/blockfs/internal/logger"
)

// Resolve maps an absolute path to an entry. A trailing slash asks for a
// directory; otherwise a file wins over a directory of the same name.
func (f *Filesystem) Resolve(path string) (int, domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wantDir := strings.HasSuffix(path, "/")
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })

	cur := domain.RootID
	for i, name := range parts {
		last := i == len(parts)-1
		if last && !wantDir {
			if id := f.find(name, domain.KindFile, cur); id >= 0 {
				return id, f.entries[id], nil
			}
		}
		id := f.find(name, domain.KindDir, cur)
		if id < 0 {
			return 0, domain.Entry{}, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		cur = id
	}
	return cur, f.entries[cur], nil
}

// ListAt lists the directory with the given id.
func (f *Filesystem) ListAt(id int) ([]domain.DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isKind(id, domain.KindDir) {
		return nil, fmt.Errorf("%w: directory %d", domain.ErrNotFound, id)
	}
	return f.list(id), nil
}

// ReadAt returns the content of the file with the given id.
func (f *Filesystem) ReadAt(id int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isKind(id, domain.KindFile) {
		return nil, fmt.Errorf("%w: file %d", domain.ErrNotFound, id)
	}
	e := &f.entries[id]
	data, err := f.load(e)
	if err != nil {
		return nil, err
	}
	if !f.verify(e, data) {
		logger.Warn("Checksum mismatch reading %s", f.path(id))
	}
	return data, nil
}

// Path returns the absolute path of an entry. Directories end without a slash.
func (f *Filesystem) Path(id int) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id < 0 || id >= len(f.entries) || !f.entries[id].Used {
		return ""
	}
	return f.path(id)
}

func (f *Filesystem) isKind(id int, kind domain.Kind) bool {
	return id >= 0 && id < len(f.entries) && f.entries[id].Used && f.entries[id].Kind == kind
}
