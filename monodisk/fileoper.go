package monodisk

import (
	"fmt"

	"github.com/rarydzu/monodisk/monodisk/layout"
)

// CreateFile allocates an inode for a new empty file and links it into the
// root directory. If the directory turns out to be full after the inode was
// claimed, the claim is rolled back so nothing leaks.
func (d *Monodisk) CreateFile(name string) (uint32, error) {
	if !d.Mounted() {
		return 0, ErrNotMounted
	}
	if err := layout.ValidateName(name); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	root, err := d.readRootDir()
	if err != nil {
		return 0, err
	}
	if idx, _, err := root.findEntry(name); err != nil {
		return 0, err
	} else if idx >= 0 {
		return 0, fmt.Errorf("create %q: %w", name, ErrAlreadyExists)
	}

	ino, err := d.findFreeInode()
	if err != nil {
		return 0, err
	}
	now := d.Clock.Now()
	rec := layout.Inode{
		Ino:   ino,
		Kind:  layout.KindFile,
		Used:  true,
		Ctime: now,
		Mtime: now,
	}
	// Persist the record before claiming the bitmap bit: a failed write
	// then leaks nothing.
	if err := d.writeInode(ino, &rec); err != nil {
		return 0, err
	}
	if err := d.setInodeBitmap(ino, true); err != nil {
		return 0, err
	}

	slot, err := root.findFreeSlot()
	if err != nil {
		d.rollbackInode(ino)
		return 0, err
	}
	if slot < 0 {
		d.rollbackInode(ino)
		return 0, fmt.Errorf("create %q: %w", name, ErrDirectoryFull)
	}
	entry := layout.DirEntry{Name: name, Ino: ino, Valid: true}
	if err := root.putEntryAt(slot, &entry); err != nil {
		d.rollbackInode(ino)
		return 0, err
	}
	if err := d.flushRootDir(root); err != nil {
		d.rollbackInode(ino)
		return 0, err
	}
	d.touchRootDir(root)
	d.log.Debugf("created %q as inode %d (slot %d)", name, ino, slot)
	return ino, nil
}

// rollbackInode releases a just-claimed inode after a later step of
// CreateFile failed.
func (d *Monodisk) rollbackInode(ino uint32) {
	if err := d.setInodeBitmap(ino, false); err != nil {
		d.log.Errorf("rolling back inode %d: %v", ino, err)
	}
}

// OpenFile resolves a name to its inode number.
func (d *Monodisk) OpenFile(name string) (uint32, error) {
	if !d.Mounted() {
		return 0, ErrNotMounted
	}
	root, err := d.readRootDir()
	if err != nil {
		return 0, err
	}
	idx, entry, err := root.findEntry(name)
	if err != nil {
		return 0, err
	}
	if idx < 0 {
		return 0, fmt.Errorf("open %q: %w", name, ErrNotFound)
	}
	return entry.Ino, nil
}

// DeleteFile releases every data block the file holds, zeroes its inode,
// clears its bitmap bit and tombstones its directory entry.
func (d *Monodisk) DeleteFile(name string) error {
	if !d.Mounted() {
		return ErrNotMounted
	}
	root, err := d.readRootDir()
	if err != nil {
		return err
	}
	slot, entry, err := root.findEntry(name)
	if err != nil {
		return err
	}
	if slot < 0 {
		return fmt.Errorf("delete %q: %w", name, ErrNotFound)
	}
	rec, err := d.readFileInode(entry.Ino)
	if err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	for i := 0; i < layout.NumDirectBlocks; i++ {
		if rec.Blocks[i] == 0 {
			continue
		}
		if err := d.setBlockBitmap(rec.Blocks[i], false); err != nil {
			return err
		}
		rec.Blocks[i] = 0
	}
	rec = layout.Inode{Ino: entry.Ino}
	if err := d.writeInode(entry.Ino, &rec); err != nil {
		return err
	}
	if err := d.setInodeBitmap(entry.Ino, false); err != nil {
		return err
	}
	entry.Valid = false
	if err := root.putEntryAt(slot, &entry); err != nil {
		return err
	}
	if err := d.flushRootDir(root); err != nil {
		return err
	}
	d.touchRootDir(root)
	d.log.Debugf("deleted %q (inode %d)", name, entry.Ino)
	return nil
}

// WriteFileAt writes data at the byte offset, allocating data blocks as it
// crosses into unallocated block indices and read-modify-writing blocks it
// only partially covers. The inode's size grows (never shrinks) to cover
// the highest byte written and its modify time is bumped.
//
// The write stops at the 16-direct-block ceiling: the bytes written so far
// are returned together with ErrFileTooLarge. Running out of data blocks
// mid-write similarly returns the short count with ErrNoFreeBlock.
func (d *Monodisk) WriteFileAt(ino uint32, data []byte, offset int64) (int, error) {
	if !d.Mounted() {
		return 0, ErrNotMounted
	}
	if offset < 0 {
		return 0, fmt.Errorf("write inode %d: negative offset %d", ino, offset)
	}
	rec, err := d.readFileInode(ino)
	if err != nil {
		return 0, err
	}

	blockSize := int64(d.super.BlockSize)
	written := 0
	var stopErr error
	for written < len(data) {
		cur := offset + int64(written)
		blockIdx := cur / blockSize
		if blockIdx >= layout.NumDirectBlocks {
			stopErr = ErrFileTooLarge
			break
		}
		var block []byte
		blockNum := rec.Blocks[blockIdx]
		if blockNum == 0 {
			blockNum, err = d.findFreeBlock()
			if err != nil {
				stopErr = err
				break
			}
			if err := d.setBlockBitmap(blockNum, true); err != nil {
				stopErr = err
				break
			}
			rec.Blocks[blockIdx] = blockNum
			// Fresh block: zero-fill so the bytes around the write are
			// defined.
			block = make([]byte, blockSize)
		} else {
			block, err = d.dev.ReadBlock(blockNum)
			if err != nil {
				stopErr = err
				break
			}
		}
		inBlock := cur % blockSize
		n := copy(block[inBlock:], data[written:])
		if err := d.dev.WriteBlock(blockNum, block); err != nil {
			stopErr = err
			break
		}
		written += n
	}

	if end := offset + int64(written); end > int64(rec.Size) {
		rec.Size = uint32(end)
	}
	rec.Mtime = d.Clock.Now()
	if err := d.writeInode(ino, &rec); err != nil {
		return written, err
	}
	if stopErr != nil {
		return written, fmt.Errorf("write inode %d at %d: %w", ino, offset, stopErr)
	}
	return written, nil
}

// ReadFileAt reads up to size bytes at the byte offset, clamped to the
// file size. A read at or past end of file returns an empty slice and no
// error.
func (d *Monodisk) ReadFileAt(ino uint32, size int, offset int64) ([]byte, error) {
	if !d.Mounted() {
		return nil, ErrNotMounted
	}
	if offset < 0 {
		return nil, fmt.Errorf("read inode %d: negative offset %d", ino, offset)
	}
	if size < 0 {
		return nil, fmt.Errorf("read inode %d: negative size %d", ino, size)
	}
	rec, err := d.readFileInode(ino)
	if err != nil {
		return nil, err
	}
	if offset >= int64(rec.Size) {
		return []byte{}, nil
	}
	want := int64(size)
	if rest := int64(rec.Size) - offset; rest < want {
		want = rest
	}
	if want == 0 {
		return []byte{}, nil
	}

	blockSize := int64(d.super.BlockSize)
	out := make([]byte, want)
	read := int64(0)
	for read < want {
		cur := offset + read
		blockIdx := cur / blockSize
		// Unreachable in a well-formed inode, handled defensively: stop
		// with what was copied.
		if blockIdx >= layout.NumDirectBlocks || rec.Blocks[blockIdx] == 0 {
			break
		}
		block, err := d.dev.ReadBlock(rec.Blocks[blockIdx])
		if err != nil {
			return nil, err
		}
		inBlock := cur % blockSize
		read += int64(copy(out[read:], block[inBlock:]))
	}
	return out[:read], nil
}
