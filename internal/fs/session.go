package fs

import (
	"fmt"

	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
	"github.com/Alexander-D-Karpov/blockfs/internal/logger"
)

// Session is one client's view of the filesystem: the shared namespace seen
// from a private working directory.
type Session struct {
	fs  *Filesystem
	cwd int
	gen uint64
}

// dir returns the working directory, falling back to root when the
// filesystem was formatted since the session last looked. Caller holds fs.mu.
func (s *Session) dir() int {
	if s.gen != s.fs.gen {
		s.cwd = domain.RootID
		s.gen = s.fs.gen
	}
	if e := &s.fs.entries[s.cwd]; !e.Used || !e.IsDir() {
		s.cwd = domain.RootID
	}
	return s.cwd
}

func (s *Session) Format() {
	s.fs.Format()

	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()
	s.cwd = domain.RootID
	s.gen = s.fs.gen
}

func (s *Session) CreateFile(name string) error {
	f := s.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.validName(name); err != nil {
		return err
	}
	cwd := s.dir()
	if f.find(name, domain.KindFile, cwd) >= 0 {
		return fmt.Errorf("%w: %s", domain.ErrExists, name)
	}

	idx := f.allocEntry()
	if idx < 0 {
		return fmt.Errorf("%w: entry table full", domain.ErrNoSpace)
	}
	f.entries[idx] = domain.Entry{
		Used:       true,
		Kind:       domain.KindFile,
		Parent:     cwd,
		Name:       name,
		FirstBlock: domain.NoBlock,
	}
	return nil
}

func (s *Session) DeleteFile(name string) error {
	f := s.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.find(name, domain.KindFile, s.dir())
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	f.release(&f.entries[idx])
	f.entries[idx] = domain.Entry{}
	return nil
}

// WriteFile replaces the whole content of an existing file. The old blocks
// are released first: running out of space leaves the file empty, and a
// device failure part way leaves the new range allocated but partly written.
func (s *Session) WriteFile(name string, data []byte) error {
	f := s.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.find(name, domain.KindFile, s.dir())
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return f.store(&f.entries[idx], data)
}

func (s *Session) ReadFile(name string) ([]byte, error) {
	f := s.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.find(name, domain.KindFile, s.dir())
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}

	e := &f.entries[idx]
	data, err := f.load(e)
	if err != nil {
		return nil, err
	}
	if !f.verify(e, data) {
		logger.Warn("Checksum mismatch reading %s", f.path(idx))
	}
	return data, nil
}

// List returns the children of the working directory in table order.
func (s *Session) List() []domain.DirEntry {
	f := s.fs
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(s.dir())
}

// MakeDir refuses a name already taken by a file or a directory in the
// working directory.
func (s *Session) MakeDir(name string) error {
	f := s.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.validName(name); err != nil {
		return err
	}
	cwd := s.dir()
	if f.find(name, domain.KindFile, cwd) >= 0 || f.find(name, domain.KindDir, cwd) >= 0 {
		return fmt.Errorf("%w: %s", domain.ErrExists, name)
	}

	idx := f.allocEntry()
	if idx < 0 {
		return fmt.Errorf("%w: entry table full", domain.ErrNoSpace)
	}
	f.entries[idx] = domain.Entry{
		Used:       true,
		Kind:       domain.KindDir,
		Parent:     cwd,
		Name:       name,
		FirstBlock: domain.NoBlock,
	}
	return nil
}

func (s *Session) RemoveDir(name string) error {
	f := s.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.find(name, domain.KindDir, s.dir())
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	if f.hasChildren(idx) {
		return fmt.Errorf("%w: %s", domain.ErrNotEmpty, name)
	}
	f.entries[idx] = domain.Entry{}
	return nil
}

// ChangeDir moves the working directory: "/" is root, ".." is the parent
// (root is its own parent), anything else names a child directory.
func (s *Session) ChangeDir(name string) error {
	f := s.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	cwd := s.dir()
	switch name {
	case "/":
		s.cwd = domain.RootID
	case "..":
		s.cwd = f.entries[cwd].Parent
	default:
		idx := f.find(name, domain.KindDir, cwd)
		if idx < 0 {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		s.cwd = idx
	}
	return nil
}

// WorkingDir returns the absolute path of the working directory.
func (s *Session) WorkingDir() string {
	f := s.fs
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path(s.dir())
}
