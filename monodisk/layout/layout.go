// Package layout defines the on-disk format of a monodisk image: the
// geometry constants, the superblock, the inode table records and the root
// directory entries. Everything that crosses the block device boundary is
// encoded and decoded here, with explicit field order and width, so the
// image format does not depend on the host's struct layout.
package layout

import "fmt"

const (
	// DefaultBlockSize is the disk block size in bytes.
	DefaultBlockSize uint32 = 4096
	// DefaultTotalBlocks makes the default image 100 MiB.
	DefaultTotalBlocks uint32 = (1024 * 1024 * 100) / DefaultBlockSize
	// DefaultMaxInodes is the default inode table capacity.
	DefaultMaxInodes uint32 = 1024

	// InodeSize is the fixed width of one inode record on disk.
	InodeSize uint32 = 128
	// MaxFilename is the maximum file name length including the NUL
	// terminator, so usable names are at most MaxFilename-1 bytes.
	MaxFilename = 28
	// NumDirectBlocks caps file size at NumDirectBlocks*BlockSize; there is
	// no indirect addressing.
	NumDirectBlocks = 16
)

// Geometry is the format-time configuration of an image. The superblock
// records every derived boundary, so a mounted filesystem only needs the
// block size and total block count to locate block 0.
type Geometry struct {
	BlockSize   uint32
	TotalBlocks uint32
	MaxInodes   uint32
}

// DefaultGeometry returns the geometry of the standard 100 MiB image.
func DefaultGeometry() Geometry {
	return Geometry{
		BlockSize:   DefaultBlockSize,
		TotalBlocks: DefaultTotalBlocks,
		MaxInodes:   DefaultMaxInodes,
	}
}

// ImageSize returns the backing file size in bytes.
func (g Geometry) ImageSize() int64 {
	return int64(g.BlockSize) * int64(g.TotalBlocks)
}

func (g Geometry) validate() error {
	// A multiple of the inode record size keeps records from straddling
	// block boundaries; it also makes the size a multiple of 8 for the
	// bitmap byte math.
	if g.BlockSize == 0 || g.BlockSize%InodeSize != 0 {
		return fmt.Errorf("block size %d is not a positive multiple of %d", g.BlockSize, InodeSize)
	}
	if g.BlockSize < uint32(SuperblockSize) {
		return fmt.Errorf("block size %d cannot hold a superblock", g.BlockSize)
	}
	if g.BlockSize < uint32(DirEntrySize) {
		return fmt.Errorf("block size %d cannot hold a directory entry", g.BlockSize)
	}
	if g.MaxInodes == 0 {
		return fmt.Errorf("max inodes must be positive")
	}
	return nil
}

func divCeil(n, d uint32) uint32 {
	return (n + d - 1) / d
}
