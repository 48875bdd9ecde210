// Package blockdev provides fixed-size block I/O over a single flat image
// file. It is the only layer that touches the backing file; there is no
// caching, every call is one positioned read or write.
package blockdev

import (
	"errors"
	"fmt"
	"os"

	"github.com/ztrue/tracerr"
)

// ErrOutOfRange is returned for any block number at or past the device end.
var ErrOutOfRange = errors.New("block number out of range")

// Device is an open image file addressed in whole blocks.
type Device struct {
	f           *os.File
	path        string
	blockSize   uint32
	totalBlocks uint32
}

// Create opens path read-write, creating it if needed, and truncates it to
// exactly totalBlocks blocks. Existing content beyond the new size is
// discarded; content within it is kept, the formatter overwrites what it
// needs to.
func Create(path string, blockSize, totalBlocks uint32) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, tracerr.Errorf("create image %s: %w", path, err)
	}
	if err := f.Truncate(int64(blockSize) * int64(totalBlocks)); err != nil {
		f.Close()
		return nil, tracerr.Errorf("truncate image %s: %w", path, err)
	}
	return &Device{f: f, path: path, blockSize: blockSize, totalBlocks: totalBlocks}, nil
}

// Open opens an existing image read-write.
func Open(path string, blockSize, totalBlocks uint32) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, tracerr.Errorf("open image %s: %w", path, err)
	}
	return &Device{f: f, path: path, blockSize: blockSize, totalBlocks: totalBlocks}, nil
}

// BlockSize returns the device block size in bytes.
func (d *Device) BlockSize() uint32 { return d.blockSize }

// TotalBlocks returns the device capacity in blocks.
func (d *Device) TotalBlocks() uint32 { return d.totalBlocks }

// Path returns the backing file path.
func (d *Device) Path() string { return d.path }

// ReadBlock reads block n into a fresh buffer of one block.
func (d *Device) ReadBlock(n uint32) ([]byte, error) {
	if n >= d.totalBlocks {
		return nil, fmt.Errorf("read block %d of %d: %w", n, d.totalBlocks, ErrOutOfRange)
	}
	buf := make([]byte, d.blockSize)
	if _, err := d.f.ReadAt(buf, int64(n)*int64(d.blockSize)); err != nil {
		return nil, tracerr.Errorf("read block %d: %w", n, err)
	}
	return buf, nil
}

// WriteBlock writes exactly one block at block number n.
func (d *Device) WriteBlock(n uint32, buf []byte) error {
	if n >= d.totalBlocks {
		return fmt.Errorf("write block %d of %d: %w", n, d.totalBlocks, ErrOutOfRange)
	}
	if uint32(len(buf)) != d.blockSize {
		return fmt.Errorf("write block %d: buffer is %d bytes, want %d", n, len(buf), d.blockSize)
	}
	if _, err := d.f.WriteAt(buf, int64(n)*int64(d.blockSize)); err != nil {
		return tracerr.Errorf("write block %d: %w", n, err)
	}
	return nil
}

// Sync flushes the image file to stable storage.
func (d *Device) Sync() error {
	if err := d.f.Sync(); err != nil {
		return tracerr.Errorf("sync image %s: %w", d.path, err)
	}
	return nil
}

// Close closes the image file.
func (d *Device) Close() error {
	return d.f.Close()
}
