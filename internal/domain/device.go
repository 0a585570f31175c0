package domain

// BlockDevice is addressed storage made of Geometry().Blocks() blocks. Reads
// return a full block; writes accept up to BlockSize bytes and zero-pad the
// rest. Both the local disk.Device and the network disk.Client satisfy it.
type BlockDevice interface {
	Geometry() Geometry
	ReadBlock(cylinder, sector int) ([]byte, error)
	WriteBlock(cylinder, sector int, data []byte) error
}
