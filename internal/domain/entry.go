package domain

type Kind uint8

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// RootID is the table index of the root directory.
const RootID = 0

// NoBlock marks an entry that owns no blocks.
const NoBlock = -1

// Entry is one slot of the filesystem's entry table.
type Entry struct {
	Used       bool   `json:"-"`
	Kind       Kind   `json:"kind"`
	Parent     int    `json:"parent"`
	Name       string `json:"name"`
	FirstBlock int    `json:"first_block"`
	BlockCount int    `json:"block_count"`
	Size       int    `json:"size"`
	Checksum   uint64 `json:"checksum"`
}

func (e *Entry) IsDir() bool {
	return e.Kind == KindDir
}

// DirEntry is what a directory listing reports for one child.
type DirEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Size int    `json:"size"`
}
