package monodisk

import (
	"fmt"

	"github.com/rarydzu/monodisk/monodisk/layout"
)

// inodePos locates an inode record inside the inode table region. Records
// are packed with no padding between them; with the default geometry each
// block holds exactly 32 records, but the math holds for any block size
// that is a multiple of the record size.
func (d *Monodisk) inodePos(ino uint32) (block uint32, offset uint32) {
	byteOff := uint64(d.super.InodeStart)*uint64(d.super.BlockSize) + uint64(ino)*uint64(layout.InodeSize)
	return uint32(byteOff / uint64(d.super.BlockSize)), uint32(byteOff % uint64(d.super.BlockSize))
}

func (d *Monodisk) readInode(ino uint32) (layout.Inode, error) {
	if ino >= d.super.TotalInodes {
		return layout.Inode{}, fmt.Errorf("inode %d of %d: %w", ino, d.super.TotalInodes, ErrInvalidHandle)
	}
	block, off := d.inodePos(ino)
	buf, err := d.dev.ReadBlock(block)
	if err != nil {
		return layout.Inode{}, err
	}
	return layout.DecodeInode(buf[off:])
}

// writeInode persists one record, read-modify-writing the block that holds
// it so neighboring records are untouched.
func (d *Monodisk) writeInode(ino uint32, rec *layout.Inode) error {
	if ino >= d.super.TotalInodes {
		return fmt.Errorf("inode %d of %d: %w", ino, d.super.TotalInodes, ErrInvalidHandle)
	}
	block, off := d.inodePos(ino)
	buf, err := d.dev.ReadBlock(block)
	if err != nil {
		return err
	}
	if err := layout.EncodeInode(rec, buf[off:]); err != nil {
		return err
	}
	return d.dev.WriteBlock(block, buf)
}

// readFileInode reads an inode that must be a live regular file.
func (d *Monodisk) readFileInode(ino uint32) (layout.Inode, error) {
	rec, err := d.readInode(ino)
	if err != nil {
		return rec, err
	}
	if !rec.Used || rec.Kind != layout.KindFile {
		return rec, fmt.Errorf("inode %d (%s, used=%v): %w", ino, rec.Kind, rec.Used, ErrInvalidHandle)
	}
	return rec, nil
}
