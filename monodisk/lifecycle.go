package monodisk

import (
	"fmt"

	"github.com/rarydzu/monodisk/monodisk/blockdev"
	"github.com/rarydzu/monodisk/monodisk/layout"
)

// Format destructively initializes the image: a fresh superblock, zeroed
// bitmaps, a zeroed inode table, and a root directory holding only the
// synthetic "." entry. The image is left unmounted.
func (d *Monodisk) Format() error {
	if d.state == StateMounted {
		return fmt.Errorf("format %s: %w", d.path, ErrMounted)
	}
	sb, err := layout.Compute(d.geom)
	if err != nil {
		return err
	}
	dev, err := blockdev.Create(d.path, d.geom.BlockSize, d.geom.TotalBlocks)
	if err != nil {
		return err
	}
	d.dev = dev
	d.super = sb
	if err := d.format(); err != nil {
		dev.Close()
		d.dev = nil
		return fmt.Errorf("format %s: %w", d.path, err)
	}
	if err := dev.Sync(); err != nil {
		dev.Close()
		d.dev = nil
		return err
	}
	if err := dev.Close(); err != nil {
		d.dev = nil
		return err
	}
	d.dev = nil
	d.state = StateFormatted
	d.log.Infof("formatted %s: %d blocks of %d bytes, %d inodes, %d data blocks",
		d.path, sb.TotalBlocks, sb.BlockSize, sb.TotalInodes, sb.DataBlocks)
	return nil
}

func (d *Monodisk) format() error {
	if err := d.writeSuperblock(); err != nil {
		return err
	}
	zero := make([]byte, d.super.BlockSize)
	for i := uint32(0); i < d.super.BlockBitmapBlocks(); i++ {
		if err := d.dev.WriteBlock(d.super.BlockBitmapStart+i, zero); err != nil {
			return err
		}
	}
	for i := uint32(0); i < d.super.InodeBitmapBlocks(); i++ {
		if err := d.dev.WriteBlock(d.super.InodeBitmapStart+i, zero); err != nil {
			return err
		}
	}
	if err := d.initInodeTable(); err != nil {
		return err
	}

	// Root directory: inode 0, one data block, a single "." entry.
	rootBlock, err := d.findFreeBlock()
	if err != nil {
		return err
	}
	now := d.Clock.Now()
	root := layout.Inode{
		Ino:   RootIno,
		Size:  d.super.BlockSize,
		Kind:  layout.KindDir,
		Used:  true,
		Ctime: now,
		Mtime: now,
	}
	root.Blocks[0] = rootBlock
	if err := d.writeInode(RootIno, &root); err != nil {
		return err
	}
	if err := d.setInodeBitmap(RootIno, true); err != nil {
		return err
	}
	if err := d.setBlockBitmap(rootBlock, true); err != nil {
		return err
	}
	dirBlock := make([]byte, d.super.BlockSize)
	dot := layout.DirEntry{Name: ".", Ino: RootIno, Valid: true}
	if err := layout.EncodeDirEntry(&dot, dirBlock); err != nil {
		return err
	}
	return d.dev.WriteBlock(rootBlock, dirBlock)
}

// initInodeTable writes every inode record as unused, with its own number
// already in place.
func (d *Monodisk) initInodeTable() error {
	perBlock := d.super.BlockSize / layout.InodeSize
	buf := make([]byte, d.super.BlockSize)
	ino := uint32(0)
	for b := uint32(0); b < d.super.InodeBlocks; b++ {
		for i := range buf {
			buf[i] = 0
		}
		for s := uint32(0); s < perBlock && ino < d.super.TotalInodes; s++ {
			rec := layout.Inode{Ino: ino}
			if err := layout.EncodeInode(&rec, buf[s*layout.InodeSize:]); err != nil {
				return err
			}
			ino++
		}
		if err := d.dev.WriteBlock(d.super.InodeStart+b, buf); err != nil {
			return err
		}
	}
	return nil
}

// Mount opens the image, validates the superblock and transitions to
// Mounted. Mounting an already mounted session is a no-op success.
//
// The persisted free counters are recomputed from the bitmaps here rather
// than trusted: a crash between a bitmap write and the following superblock
// write may leave them behind by one. A mismatch is corrected in memory and
// logged.
func (d *Monodisk) Mount() error {
	if d.state == StateMounted {
		d.log.Debugf("mount %s: already mounted", d.path)
		return nil
	}
	if d.state == StateUnformatted {
		return fmt.Errorf("mount %s: %w", d.path, ErrNotFormatted)
	}
	dev, err := blockdev.Open(d.path, d.geom.BlockSize, d.geom.TotalBlocks)
	if err != nil {
		return err
	}
	buf, err := dev.ReadBlock(0)
	if err != nil {
		dev.Close()
		return err
	}
	sb, err := layout.DecodeSuperblock(buf)
	if err != nil {
		dev.Close()
		return err
	}
	if !sb.CheckMagic() {
		dev.Close()
		return fmt.Errorf("mount %s: magic %q: %w", d.path, sb.MagicString(), ErrBadMagic)
	}
	// The device was opened with the configured geometry; every block
	// address from here on comes from the superblock. The two must agree
	// or block math runs off the buffers the device hands out.
	if sb.BlockSize != d.geom.BlockSize || sb.TotalBlocks != d.geom.TotalBlocks {
		dev.Close()
		return fmt.Errorf("mount %s: image is %dx%d, configured %dx%d: %w",
			d.path, sb.TotalBlocks, sb.BlockSize, d.geom.TotalBlocks, d.geom.BlockSize, ErrBadGeometry)
	}
	if err := sb.CheckLayout(); err != nil {
		dev.Close()
		return fmt.Errorf("mount %s: %w", d.path, err)
	}
	d.dev = dev
	d.super = sb
	if err := d.recountFree(); err != nil {
		d.dev = nil
		dev.Close()
		return fmt.Errorf("mount %s: %w", d.path, err)
	}
	d.state = StateMounted
	d.log.Infof("mounted %s: %s, %d/%d blocks free, %d/%d inodes free",
		d.path, sb.MagicString(), d.super.FreeBlocks, d.super.DataBlocks,
		d.super.FreeInodes, d.super.TotalInodes)
	return nil
}

func (d *Monodisk) recountFree() error {
	freeBlocks, err := d.countFreeBits(d.super.BlockBitmapStart, d.super.BlockBitmapBlocks(), d.super.DataBlocks)
	if err != nil {
		return err
	}
	freeInodes, err := d.countFreeBits(d.super.InodeBitmapStart, d.super.InodeBitmapBlocks(), d.super.TotalInodes)
	if err != nil {
		return err
	}
	if freeBlocks != d.super.FreeBlocks || freeInodes != d.super.FreeInodes {
		d.log.Warnf("superblock free counters out of sync with bitmaps: blocks %d->%d, inodes %d->%d",
			d.super.FreeBlocks, freeBlocks, d.super.FreeInodes, freeInodes)
		d.super.FreeBlocks = freeBlocks
		d.super.FreeInodes = freeInodes
	}
	return nil
}

// Unmount flushes the superblock and closes the image. Unmounting an
// unmounted session is a no-op success.
func (d *Monodisk) Unmount() error {
	if d.state != StateMounted {
		return nil
	}
	if err := d.writeSuperblock(); err != nil {
		return err
	}
	if err := d.dev.Sync(); err != nil {
		return err
	}
	if err := d.dev.Close(); err != nil {
		return err
	}
	d.dev = nil
	d.state = StateUnmounted
	d.log.Infof("unmounted %s", d.path)
	return nil
}
