// Package monodisk emulates a block-based filesystem on top of a single
// flat image file: superblock, block and inode bitmaps, a fixed inode
// table, one flat root directory and direct-block file I/O.
//
// The package performs no internal locking. It assumes at most one
// operation is in flight at a time; the worker package serializes calls
// with a coarse mutex. A caller that wants parallelism must shard across
// independent images.
package monodisk

import (
	"fmt"
	"os"

	"github.com/jacobsa/timeutil"
	"github.com/jinzhu/copier"
	"github.com/rarydzu/monodisk/monodisk/blockdev"
	"github.com/rarydzu/monodisk/monodisk/config"
	"github.com/rarydzu/monodisk/monodisk/layout"
	"go.uber.org/zap"
)

// RootIno is the inode of the root directory.
const RootIno uint32 = 0

// State tracks the mount lifecycle of a session.
type State int

const (
	StateUnformatted State = iota
	StateFormatted
	StateMounted
	StateUnmounted
)

func (s State) String() string {
	switch s {
	case StateUnformatted:
		return "unformatted"
	case StateFormatted:
		return "formatted"
	case StateMounted:
		return "mounted"
	case StateUnmounted:
		return "unmounted"
	default:
		return "unknown"
	}
}

// Monodisk is one filesystem session over one image file.
type Monodisk struct {
	Name  string
	Clock timeutil.Clock

	log   *zap.SugaredLogger
	path  string
	geom  layout.Geometry
	dev   *blockdev.Device
	super layout.Superblock
	state State
}

// NewMonodisk creates a session for the image at cfg.Path. The image is not
// opened until Format or Mount.
func NewMonodisk(cfg *config.Config, log *zap.SugaredLogger) (*Monodisk, error) {
	geom := cfg.Geometry()
	if _, err := layout.Compute(geom); err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	state := StateUnformatted
	if _, err := os.Stat(cfg.Path); err == nil {
		// An existing image may already hold a filesystem; mount will
		// verify the magic either way.
		state = StateFormatted
	}
	return &Monodisk{
		Name:  cfg.FilesystemName,
		Clock: timeutil.RealClock(),
		log:   log,
		path:  cfg.Path,
		geom:  geom,
		state: state,
	}, nil
}

// Path returns the backing image path.
func (d *Monodisk) Path() string { return d.path }

// State returns the lifecycle state.
func (d *Monodisk) State() State { return d.state }

// Mounted reports whether file operations are currently allowed.
func (d *Monodisk) Mounted() bool { return d.state == StateMounted }

// Stat returns a read-only snapshot of the in-memory superblock.
func (d *Monodisk) Stat() (layout.Superblock, error) {
	var snap layout.Superblock
	if !d.Mounted() {
		return snap, ErrNotMounted
	}
	if err := copier.Copy(&snap, &d.super); err != nil {
		return snap, err
	}
	return snap, nil
}

// IsInodeUsed reports whether the inode record is live, for diagnostics.
func (d *Monodisk) IsInodeUsed(ino uint32) (bool, error) {
	if !d.Mounted() {
		return false, ErrNotMounted
	}
	if ino >= d.super.TotalInodes {
		return false, fmt.Errorf("inode %d of %d: %w", ino, d.super.TotalInodes, ErrInvalidHandle)
	}
	rec, err := d.readInode(ino)
	if err != nil {
		return false, err
	}
	return rec.Used, nil
}

// FileSize returns the byte size recorded in a live inode.
func (d *Monodisk) FileSize(ino uint32) (uint32, error) {
	if !d.Mounted() {
		return 0, ErrNotMounted
	}
	rec, err := d.readInode(ino)
	if err != nil {
		return 0, err
	}
	if !rec.Used {
		return 0, fmt.Errorf("inode %d: %w", ino, ErrInvalidHandle)
	}
	return rec.Size, nil
}
