package domain

import "fmt"

// Geometry describes a simulated disk: Cylinders x Sectors blocks of BlockSize bytes.
type Geometry struct {
	Cylinders int `json:"cylinders"`
	Sectors   int `json:"sectors"`
	BlockSize int `json:"block_size"`
}

func (g Geometry) Blocks() int {
	return g.Cylinders * g.Sectors
}

func (g Geometry) Capacity() int64 {
	return int64(g.Cylinders) * int64(g.Sectors) * int64(g.BlockSize)
}

func (g Geometry) Valid(cylinder, sector int) bool {
	return cylinder >= 0 && cylinder < g.Cylinders && sector >= 0 && sector < g.Sectors
}

// Offset is the byte offset of block (cylinder, sector) in the backing file.
func (g Geometry) Offset(cylinder, sector int) int64 {
	return (int64(cylinder)*int64(g.Sectors) + int64(sector)) * int64(g.BlockSize)
}

// Locate maps a linear block id to its (cylinder, sector) address.
func (g Geometry) Locate(block int) (cylinder, sector int) {
	return block / g.Sectors, block % g.Sectors
}

// BlocksFor returns how many blocks hold n bytes.
func (g Geometry) BlocksFor(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + g.BlockSize - 1) / g.BlockSize
}

func (g Geometry) String() string {
	return fmt.Sprintf("C=%d S=%d B=%d", g.Cylinders, g.Sectors, g.BlockSize)
}
