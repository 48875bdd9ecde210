package monodisk

import (
	"fmt"
	"math/bits"
)

// The bitmaps are the sole source of truth for allocation; the superblock
// free counters are a cached derivative kept in lock-step. Every setter
// persists the touched bitmap block and the superblock before returning,
// so each allocation or free event is individually durable. On any failure
// the on-disk state is restored byte for byte.

func (d *Monodisk) writeSuperblock() error {
	buf := make([]byte, d.super.BlockSize)
	if err := d.super.Encode(buf); err != nil {
		return err
	}
	return d.dev.WriteBlock(0, buf)
}

// setBlockBitmap flips the in-use bit of one data block. The free counter
// moves only when the bit actually changes value.
func (d *Monodisk) setBlockBitmap(block uint32, used bool) error {
	if block < d.super.DataStart || block >= d.super.DataEnd() {
		return fmt.Errorf("block %d outside data region [%d,%d)",
			block, d.super.DataStart, d.super.DataEnd())
	}
	idx := block - d.super.DataStart
	return d.setBitmapBit(d.super.BlockBitmapStart, d.super.BlockBitmapBlocks(), idx, used, &d.super.FreeBlocks)
}

// setInodeBitmap flips the in-use bit of one inode.
func (d *Monodisk) setInodeBitmap(ino uint32, used bool) error {
	if ino >= d.super.TotalInodes {
		return fmt.Errorf("inode %d of %d out of range", ino, d.super.TotalInodes)
	}
	return d.setBitmapBit(d.super.InodeBitmapStart, d.super.InodeBitmapBlocks(), ino, used, &d.super.FreeInodes)
}

func (d *Monodisk) setBitmapBit(start, blocks, idx uint32, used bool, free *uint32) error {
	bitsPerBlock := d.super.BlockSize * 8
	blockIdx := idx / bitsPerBlock
	if blockIdx >= blocks {
		return fmt.Errorf("bitmap bit %d beyond bitmap of %d blocks", idx, blocks)
	}
	target := start + blockIdx
	buf, err := d.dev.ReadBlock(target)
	if err != nil {
		return err
	}
	bitInBlock := idx % bitsPerBlock
	byt := bitInBlock / 8
	bit := bitInBlock % 8
	mask := byte(1) << bit

	old := buf[byt]
	changed := false
	if used {
		if old&mask == 0 {
			buf[byt] = old | mask
			*free--
			changed = true
		}
	} else {
		if old&mask != 0 {
			buf[byt] = old &^ mask
			*free++
			changed = true
		}
	}
	if !changed {
		return nil
	}
	restore := func() {
		if used {
			*free++
		} else {
			*free--
		}
	}
	if err := d.dev.WriteBlock(target, buf); err != nil {
		restore()
		return err
	}
	if err := d.writeSuperblock(); err != nil {
		// Put the bitmap block back so the bit and the counter never
		// diverge on disk.
		buf[byt] = old
		if werr := d.dev.WriteBlock(target, buf); werr != nil {
			d.log.Errorf("bitmap rollback failed, image may need a remount recount: %v", werr)
		}
		restore()
		return err
	}
	return nil
}

// findFreeBlock scans the block bitmap first-fit from index 0 and returns
// an absolute block number.
func (d *Monodisk) findFreeBlock() (uint32, error) {
	idx, err := d.findFreeBit(d.super.BlockBitmapStart, d.super.BlockBitmapBlocks(), d.super.DataBlocks)
	if err != nil {
		return 0, err
	}
	if idx == d.super.DataBlocks {
		return 0, ErrNoFreeBlock
	}
	return d.super.DataStart + idx, nil
}

// findFreeInode scans the inode bitmap first-fit from inode 0.
func (d *Monodisk) findFreeInode() (uint32, error) {
	idx, err := d.findFreeBit(d.super.InodeBitmapStart, d.super.InodeBitmapBlocks(), d.super.TotalInodes)
	if err != nil {
		return 0, err
	}
	if idx == d.super.TotalInodes {
		return 0, ErrNoFreeInode
	}
	return idx, nil
}

// findFreeBit returns the index of the first zero bit, or total when every
// bit below total is set.
func (d *Monodisk) findFreeBit(start, blocks, total uint32) (uint32, error) {
	bitsPerBlock := d.super.BlockSize * 8
	for b := uint32(0); b < blocks; b++ {
		buf, err := d.dev.ReadBlock(start + b)
		if err != nil {
			return 0, err
		}
		base := b * bitsPerBlock
		for byt := uint32(0); byt < d.super.BlockSize; byt++ {
			if buf[byt] == 0xff {
				continue
			}
			for bit := uint32(0); bit < 8; bit++ {
				idx := base + byt*8 + bit
				if idx >= total {
					return total, nil
				}
				if buf[byt]&(1<<bit) == 0 {
					return idx, nil
				}
			}
		}
	}
	return total, nil
}

// countFreeBits counts zero bits below total, used by mount to cross-check
// the persisted free counters.
func (d *Monodisk) countFreeBits(start, blocks, total uint32) (uint32, error) {
	bitsPerBlock := d.super.BlockSize * 8
	used := uint32(0)
	remaining := total
	for b := uint32(0); b < blocks && remaining > 0; b++ {
		buf, err := d.dev.ReadBlock(start + b)
		if err != nil {
			return 0, err
		}
		n := bitsPerBlock
		if remaining < n {
			n = remaining
		}
		wholeBytes := n / 8
		for byt := uint32(0); byt < wholeBytes; byt++ {
			used += uint32(bits.OnesCount8(buf[byt]))
		}
		if rest := n % 8; rest != 0 {
			tail := buf[wholeBytes] & (1<<rest - 1)
			used += uint32(bits.OnesCount8(tail))
		}
		remaining -= n
	}
	return total - used, nil
}
