package monodisk

import (
	"fmt"

	"github.com/rarydzu/monodisk/monodisk/layout"
)

// rootDir is the root directory's inode plus its (single) data block,
// staged in memory for the duration of one operation.
type rootDir struct {
	inode layout.Inode
	block uint32 // data block number holding the entries
	buf   []byte
}

func (d *Monodisk) readRootDir() (*rootDir, error) {
	inode, err := d.readInode(RootIno)
	if err != nil {
		return nil, err
	}
	if !inode.Used || inode.Kind != layout.KindDir {
		return nil, fmt.Errorf("root inode is not a directory (%s, used=%v)", inode.Kind, inode.Used)
	}
	if inode.Blocks[0] == 0 {
		return nil, fmt.Errorf("root directory has no data block")
	}
	buf, err := d.dev.ReadBlock(inode.Blocks[0])
	if err != nil {
		return nil, err
	}
	return &rootDir{inode: inode, block: inode.Blocks[0], buf: buf}, nil
}

func (r *rootDir) capacity() int {
	return layout.DirEntriesPerBlock(uint32(len(r.buf)))
}

func (r *rootDir) entryAt(i int) (layout.DirEntry, error) {
	return layout.DecodeDirEntry(r.buf[i*layout.DirEntrySize:])
}

func (r *rootDir) putEntryAt(i int, e *layout.DirEntry) error {
	return layout.EncodeDirEntry(e, r.buf[i*layout.DirEntrySize:])
}

// findEntry scans the valid entries for an exact name match, skipping the
// "." slot. It returns the slot index.
func (r *rootDir) findEntry(name string) (int, layout.DirEntry, error) {
	for i := 1; i < r.capacity(); i++ {
		e, err := r.entryAt(i)
		if err != nil {
			return 0, e, err
		}
		if e.Valid && e.Name == name {
			return i, e, nil
		}
	}
	return -1, layout.DirEntry{}, nil
}

// findFreeSlot returns the first tombstoned or never-used slot past ".".
func (r *rootDir) findFreeSlot() (int, error) {
	for i := 1; i < r.capacity(); i++ {
		e, err := r.entryAt(i)
		if err != nil {
			return 0, err
		}
		if !e.Valid {
			return i, nil
		}
	}
	return -1, nil
}

// flush writes the staged directory block back.
func (d *Monodisk) flushRootDir(r *rootDir) error {
	return d.dev.WriteBlock(r.block, r.buf)
}

// touchRootDir bumps the root directory's modify time. A failure here is
// logged and swallowed: the caller's operation has already taken effect.
func (d *Monodisk) touchRootDir(r *rootDir) {
	r.inode.Mtime = d.Clock.Now()
	if err := d.writeInode(RootIno, &r.inode); err != nil {
		d.log.Warnf("updating root directory mtime: %v", err)
	}
}

// ListFiles returns the valid directory entries in on-disk order, without
// the synthetic "." entry.
func (d *Monodisk) ListFiles() ([]layout.DirEntry, error) {
	if !d.Mounted() {
		return nil, ErrNotMounted
	}
	root, err := d.readRootDir()
	if err != nil {
		return nil, err
	}
	var out []layout.DirEntry
	for i := 1; i < root.capacity(); i++ {
		e, err := root.entryAt(i)
		if err != nil {
			return nil, err
		}
		if e.Valid {
			out = append(out, e)
		}
	}
	return out, nil
}
