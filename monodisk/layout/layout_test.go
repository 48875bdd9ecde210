package layout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDefaultGeometry(t *testing.T) {
	sb, err := Compute(DefaultGeometry())
	require.NoError(t, err)
	assert.True(t, sb.CheckMagic())
	assert.Equal(t, "SIMFSv1", sb.MagicString())
	assert.Equal(t, uint32(4096), sb.BlockSize)
	assert.Equal(t, uint32(25600), sb.TotalBlocks)
	assert.Equal(t, uint32(1024), sb.TotalInodes)
	// 1024 inodes of 128 bytes is exactly 32 blocks.
	assert.Equal(t, uint32(32), sb.InodeBlocks)
	require.NoError(t, sb.CheckLayout())
	assert.Equal(t, uint32(1), sb.BlockBitmapStart)
	assert.Equal(t, sb.BlockBitmapStart+sb.BlockBitmapBlocks(), sb.InodeBitmapStart)
	assert.Equal(t, sb.InodeBitmapStart+sb.InodeBitmapBlocks(), sb.InodeStart)
	assert.Equal(t, sb.InodeStart+sb.InodeBlocks, sb.DataStart)
	assert.Equal(t, sb.TotalBlocks-sb.DataStart, sb.DataBlocks)
	assert.Equal(t, sb.DataBlocks, sb.FreeBlocks)
	assert.Equal(t, sb.TotalInodes, sb.FreeInodes)
}

func TestComputeRejectsBadGeometry(t *testing.T) {
	_, err := Compute(Geometry{BlockSize: 0, TotalBlocks: 10, MaxInodes: 8})
	assert.Error(t, err)
	// Inode records must not straddle block boundaries.
	_, err = Compute(Geometry{BlockSize: 200, TotalBlocks: 64, MaxInodes: 8})
	assert.Error(t, err)
	_, err = Compute(Geometry{BlockSize: 4096 + 8, TotalBlocks: 64, MaxInodes: 8})
	assert.Error(t, err)
	// All blocks eaten by metadata.
	_, err = Compute(Geometry{BlockSize: 4096, TotalBlocks: 3, MaxInodes: 1024})
	assert.Error(t, err)
}

func TestSuperblockCodecRoundTrip(t *testing.T) {
	sb, err := Compute(Geometry{BlockSize: 4096, TotalBlocks: 128, MaxInodes: 32})
	require.NoError(t, err)
	sb.FreeBlocks = 7
	sb.FreeInodes = 3

	buf := make([]byte, 4096)
	require.NoError(t, sb.Encode(buf))
	got, err := DecodeSuperblock(buf)
	require.NoError(t, err)
	assert.Equal(t, sb, got)

	_, err = DecodeSuperblock(buf[:SuperblockSize-1])
	assert.Error(t, err)
	assert.Error(t, sb.Encode(buf[:10]))
}

func TestSuperblockBadMagic(t *testing.T) {
	sb, err := Compute(Geometry{BlockSize: 4096, TotalBlocks: 128, MaxInodes: 32})
	require.NoError(t, err)
	assert.True(t, sb.CheckMagic())
	sb.Magic[0] = 'X'
	assert.False(t, sb.CheckMagic())
}

func TestInodeCodecRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ino := Inode{
		Ino:   42,
		Size:  9000,
		Kind:  KindFile,
		Used:  true,
		Ctime: now,
		Mtime: now.Add(time.Minute),
	}
	ino.Blocks[0] = 77
	ino.Blocks[15] = 100

	buf := make([]byte, InodeSize)
	require.NoError(t, EncodeInode(&ino, buf))
	got, err := DecodeInode(buf)
	require.NoError(t, err)
	assert.Equal(t, ino, got)

	_, err = DecodeInode(buf[:InodeSize-1])
	assert.Error(t, err)
}

func TestInodeEncodeClearsStaleBytes(t *testing.T) {
	buf := make([]byte, InodeSize)
	for i := range buf {
		buf[i] = 0xff
	}
	require.NoError(t, EncodeInode(&Inode{Ino: 1}, buf))
	got, err := DecodeInode(buf)
	require.NoError(t, err)
	assert.False(t, got.Used)
	assert.Equal(t, KindNone, got.Kind)
	for i := 0; i < NumDirectBlocks; i++ {
		assert.Equal(t, uint32(0), got.Blocks[i])
	}
}

func TestDirEntryCodecRoundTrip(t *testing.T) {
	e := DirEntry{Name: "a.txt", Ino: 5, Valid: true}
	buf := make([]byte, DirEntrySize)
	require.NoError(t, EncodeDirEntry(&e, buf))
	got, err := DecodeDirEntry(buf)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = DecodeDirEntry(buf[:DirEntrySize-1])
	assert.Error(t, err)
}

func TestDirEntriesPerBlock(t *testing.T) {
	// 4096 / 36 entries, including the "." slot.
	assert.Equal(t, 113, DirEntriesPerBlock(4096))
}

func TestValidateName(t *testing.T) {
	assert.Error(t, ValidateName(""))
	assert.Error(t, ValidateName("0123456789012345678901234567"))   // 28 bytes
	assert.NoError(t, ValidateName("012345678901234567890123456")) // 27 bytes
	assert.NoError(t, ValidateName("a.txt"))
}

func TestMaxFileSize(t *testing.T) {
	assert.Equal(t, uint32(16*4096), MaxFileSize(4096))
}
