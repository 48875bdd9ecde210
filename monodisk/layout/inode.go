package layout

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Kind tags an inode as a regular file or a directory.
type Kind uint8

const (
	KindNone Kind = 0
	KindFile Kind = 1
	KindDir  Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "none"
	}
}

// Inode is one fixed-width record of the inode table. Block pointers are
// absolute block numbers; zero means unallocated, which works because block
// 0 always holds the superblock.
type Inode struct {
	Ino    uint32
	Size   uint32
	Blocks [NumDirectBlocks]uint32
	Kind   Kind
	Used   bool
	Ctime  time.Time
	Mtime  time.Time
}

// MaxFileSize is the hard cap imposed by direct-only addressing.
func MaxFileSize(blockSize uint32) uint32 {
	return NumDirectBlocks * blockSize
}

// Inode record field offsets. The record is zero-padded to InodeSize.
const (
	inoNumOff    = 0
	inoSizeOff   = inoNumOff + 4
	inoBlocksOff = inoSizeOff + 4
	inoKindOff   = inoBlocksOff + NumDirectBlocks*4
	inoUsedOff   = inoKindOff + 1
	inoCtimeOff  = inoUsedOff + 1 + 6 // pad to an 8-byte boundary
	inoMtimeOff  = inoCtimeOff + 8
	inoEnd       = inoMtimeOff + 8 // 96, leaving 32 bytes of padding
)

// EncodeInode writes the record into b, which must hold at least InodeSize
// bytes; the padding bytes are zeroed.
func EncodeInode(ino *Inode, b []byte) error {
	if len(b) < int(InodeSize) {
		return fmt.Errorf("inode buffer too small: %d < %d", len(b), InodeSize)
	}
	for i := 0; i < int(InodeSize); i++ {
		b[i] = 0
	}
	binary.LittleEndian.PutUint32(b[inoNumOff:], ino.Ino)
	binary.LittleEndian.PutUint32(b[inoSizeOff:], ino.Size)
	for i := 0; i < NumDirectBlocks; i++ {
		binary.LittleEndian.PutUint32(b[inoBlocksOff+i*4:], ino.Blocks[i])
	}
	b[inoKindOff] = byte(ino.Kind)
	if ino.Used {
		b[inoUsedOff] = 1
	}
	binary.LittleEndian.PutUint64(b[inoCtimeOff:], uint64(ino.Ctime.Unix()))
	binary.LittleEndian.PutUint64(b[inoMtimeOff:], uint64(ino.Mtime.Unix()))
	return nil
}

// DecodeInode parses one record from b.
func DecodeInode(b []byte) (Inode, error) {
	var ino Inode
	if len(b) < int(InodeSize) {
		return ino, fmt.Errorf("inode buffer too small: %d < %d", len(b), InodeSize)
	}
	ino.Ino = binary.LittleEndian.Uint32(b[inoNumOff:])
	ino.Size = binary.LittleEndian.Uint32(b[inoSizeOff:])
	for i := 0; i < NumDirectBlocks; i++ {
		ino.Blocks[i] = binary.LittleEndian.Uint32(b[inoBlocksOff+i*4:])
	}
	ino.Kind = Kind(b[inoKindOff])
	ino.Used = b[inoUsedOff] != 0
	ino.Ctime = time.Unix(int64(binary.LittleEndian.Uint64(b[inoCtimeOff:])), 0)
	ino.Mtime = time.Unix(int64(binary.LittleEndian.Uint64(b[inoMtimeOff:])), 0)
	return ino, nil
}
