package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Magic identifies a monodisk image. It is NUL-padded to MagicSize on disk
// and compared by exact content on mount.
const Magic = "SIMFSv1"

const (
	// MagicSize is the width of the magic field on disk.
	MagicSize = 8
	// SuperblockSize is the encoded superblock width; the rest of block 0
	// is zero.
	SuperblockSize = MagicSize + 11*4
)

// Superblock is the block 0 record: layout boundaries plus the live free
// space counters. The counters are a cached derivative of the bitmaps and
// are rewritten on every bitmap mutation.
type Superblock struct {
	Magic            [MagicSize]byte
	BlockSize        uint32
	TotalBlocks      uint32
	InodeBlocks      uint32 // blocks occupied by the inode table
	DataBlocks       uint32 // blocks available in the data region
	TotalInodes      uint32
	FreeBlocks       uint32
	FreeInodes       uint32
	BlockBitmapStart uint32
	InodeBitmapStart uint32
	InodeStart       uint32
	DataStart        uint32
}

// Compute lays out a fresh superblock for the given geometry: block 0 holds
// the superblock, then the block bitmap, the inode bitmap, the inode table
// and finally the data region.
func Compute(g Geometry) (Superblock, error) {
	var sb Superblock
	if err := g.validate(); err != nil {
		return sb, err
	}
	blockBitmapBlocks := divCeil(divCeil(g.TotalBlocks, 8), g.BlockSize)
	inodeBitmapBlocks := divCeil(divCeil(g.MaxInodes, 8), g.BlockSize)
	inodeBlocks := divCeil(g.MaxInodes*InodeSize, g.BlockSize)

	meta := 1 + blockBitmapBlocks + inodeBitmapBlocks + inodeBlocks
	if meta >= g.TotalBlocks {
		return sb, fmt.Errorf("geometry leaves no data blocks (%d metadata blocks, %d total)",
			meta, g.TotalBlocks)
	}
	copy(sb.Magic[:], Magic)
	sb.BlockSize = g.BlockSize
	sb.TotalBlocks = g.TotalBlocks
	sb.InodeBlocks = inodeBlocks
	sb.DataBlocks = g.TotalBlocks - meta
	sb.TotalInodes = g.MaxInodes
	sb.FreeBlocks = sb.DataBlocks
	sb.FreeInodes = g.MaxInodes
	sb.BlockBitmapStart = 1
	sb.InodeBitmapStart = sb.BlockBitmapStart + blockBitmapBlocks
	sb.InodeStart = sb.InodeBitmapStart + inodeBitmapBlocks
	sb.DataStart = sb.InodeStart + inodeBlocks
	return sb, nil
}

// CheckMagic reports whether the magic field matches Magic exactly,
// including the NUL padding.
func (sb *Superblock) CheckMagic() bool {
	var want [MagicSize]byte
	copy(want[:], Magic)
	return bytes.Equal(sb.Magic[:], want[:])
}

// MagicString returns the magic with NUL padding stripped.
func (sb *Superblock) MagicString() string {
	return string(bytes.TrimRight(sb.Magic[:], "\x00"))
}

// BlockBitmapBlocks returns the number of blocks the block bitmap spans.
func (sb *Superblock) BlockBitmapBlocks() uint32 {
	return sb.InodeBitmapStart - sb.BlockBitmapStart
}

// InodeBitmapBlocks returns the number of blocks the inode bitmap spans.
func (sb *Superblock) InodeBitmapBlocks() uint32 {
	return sb.InodeStart - sb.InodeBitmapStart
}

// DataEnd returns the first block number past the data region.
func (sb *Superblock) DataEnd() uint32 {
	return sb.DataStart + sb.DataBlocks
}

// CheckLayout verifies the region ordering invariant recorded at format
// time; a superblock that fails it cannot be trusted for any block math.
func (sb *Superblock) CheckLayout() error {
	ordered := sb.BlockBitmapStart > 0 &&
		sb.BlockBitmapStart < sb.InodeBitmapStart &&
		sb.InodeBitmapStart < sb.InodeStart &&
		sb.InodeStart < sb.DataStart &&
		sb.DataEnd() <= sb.TotalBlocks
	if !ordered {
		return fmt.Errorf("superblock regions out of order: bitmap=%d ibitmap=%d inodes=%d data=%d..%d total=%d",
			sb.BlockBitmapStart, sb.InodeBitmapStart, sb.InodeStart,
			sb.DataStart, sb.DataEnd(), sb.TotalBlocks)
	}
	if sb.BlockSize == 0 {
		return fmt.Errorf("superblock has zero block size")
	}
	return nil
}

// Superblock field offsets within block 0.
const (
	sbMagicOff            = 0
	sbBlockSizeOff        = sbMagicOff + MagicSize
	sbTotalBlocksOff      = sbBlockSizeOff + 4
	sbInodeBlocksOff      = sbTotalBlocksOff + 4
	sbDataBlocksOff       = sbInodeBlocksOff + 4
	sbTotalInodesOff      = sbDataBlocksOff + 4
	sbFreeBlocksOff       = sbTotalInodesOff + 4
	sbFreeInodesOff       = sbFreeBlocksOff + 4
	sbBlockBitmapStartOff = sbFreeInodesOff + 4
	sbInodeBitmapStartOff = sbBlockBitmapStartOff + 4
	sbInodeStartOff       = sbInodeBitmapStartOff + 4
	sbDataStartOff        = sbInodeStartOff + 4
)

// Encode writes the superblock into b, which must hold at least
// SuperblockSize bytes.
func (sb *Superblock) Encode(b []byte) error {
	if len(b) < SuperblockSize {
		return fmt.Errorf("superblock buffer too small: %d < %d", len(b), SuperblockSize)
	}
	copy(b[sbMagicOff:sbMagicOff+MagicSize], sb.Magic[:])
	binary.LittleEndian.PutUint32(b[sbBlockSizeOff:], sb.BlockSize)
	binary.LittleEndian.PutUint32(b[sbTotalBlocksOff:], sb.TotalBlocks)
	binary.LittleEndian.PutUint32(b[sbInodeBlocksOff:], sb.InodeBlocks)
	binary.LittleEndian.PutUint32(b[sbDataBlocksOff:], sb.DataBlocks)
	binary.LittleEndian.PutUint32(b[sbTotalInodesOff:], sb.TotalInodes)
	binary.LittleEndian.PutUint32(b[sbFreeBlocksOff:], sb.FreeBlocks)
	binary.LittleEndian.PutUint32(b[sbFreeInodesOff:], sb.FreeInodes)
	binary.LittleEndian.PutUint32(b[sbBlockBitmapStartOff:], sb.BlockBitmapStart)
	binary.LittleEndian.PutUint32(b[sbInodeBitmapStartOff:], sb.InodeBitmapStart)
	binary.LittleEndian.PutUint32(b[sbInodeStartOff:], sb.InodeStart)
	binary.LittleEndian.PutUint32(b[sbDataStartOff:], sb.DataStart)
	return nil
}

// DecodeSuperblock parses a superblock from b. It does not validate the
// magic; mount does that so it can distinguish "not a monodisk image" from
// a short read.
func DecodeSuperblock(b []byte) (Superblock, error) {
	var sb Superblock
	if len(b) < SuperblockSize {
		return sb, fmt.Errorf("superblock buffer too small: %d < %d", len(b), SuperblockSize)
	}
	copy(sb.Magic[:], b[sbMagicOff:sbMagicOff+MagicSize])
	sb.BlockSize = binary.LittleEndian.Uint32(b[sbBlockSizeOff:])
	sb.TotalBlocks = binary.LittleEndian.Uint32(b[sbTotalBlocksOff:])
	sb.InodeBlocks = binary.LittleEndian.Uint32(b[sbInodeBlocksOff:])
	sb.DataBlocks = binary.LittleEndian.Uint32(b[sbDataBlocksOff:])
	sb.TotalInodes = binary.LittleEndian.Uint32(b[sbTotalInodesOff:])
	sb.FreeBlocks = binary.LittleEndian.Uint32(b[sbFreeBlocksOff:])
	sb.FreeInodes = binary.LittleEndian.Uint32(b[sbFreeInodesOff:])
	sb.BlockBitmapStart = binary.LittleEndian.Uint32(b[sbBlockBitmapStartOff:])
	sb.InodeBitmapStart = binary.LittleEndian.Uint32(b[sbInodeBitmapStartOff:])
	sb.InodeStart = binary.LittleEndian.Uint32(b[sbInodeStartOff:])
	sb.DataStart = binary.LittleEndian.Uint32(b[sbDataStartOff:])
	return sb, nil
}
