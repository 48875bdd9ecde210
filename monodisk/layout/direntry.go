package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// DirEntrySize is the fixed width of one directory entry: the name buffer,
// the inode number, the valid flag and 3 pad bytes.
const DirEntrySize = MaxFilename + 4 + 1 + 3

// DirEntry is one slot of the root directory block. Deleted entries keep
// their slot with Valid false (a tombstone); slots are never compacted.
type DirEntry struct {
	Name  string
	Ino   uint32
	Valid bool
}

// DirEntriesPerBlock is the root directory capacity, including the
// synthetic "." entry in slot 0.
func DirEntriesPerBlock(blockSize uint32) int {
	return int(blockSize) / DirEntrySize
}

// ValidateName rejects empty names and names that do not fit the fixed
// name buffer with its NUL terminator.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty file name")
	}
	if len(name) >= MaxFilename {
		return fmt.Errorf("file name %q longer than %d bytes", name, MaxFilename-1)
	}
	return nil
}

const (
	deNameOff  = 0
	deInoOff   = deNameOff + MaxFilename
	deValidOff = deInoOff + 4
)

// EncodeDirEntry writes the entry into b, which must hold at least
// DirEntrySize bytes. The name is NUL-padded and silently truncated to the
// buffer; callers are expected to have validated it.
func EncodeDirEntry(e *DirEntry, b []byte) error {
	if len(b) < DirEntrySize {
		return fmt.Errorf("direntry buffer too small: %d < %d", len(b), DirEntrySize)
	}
	for i := 0; i < DirEntrySize; i++ {
		b[i] = 0
	}
	name := e.Name
	if len(name) > MaxFilename-1 {
		name = name[:MaxFilename-1]
	}
	copy(b[deNameOff:deNameOff+MaxFilename-1], name)
	binary.LittleEndian.PutUint32(b[deInoOff:], e.Ino)
	if e.Valid {
		b[deValidOff] = 1
	}
	return nil
}

// DecodeDirEntry parses one entry from b, trimming the name at the first
// NUL.
func DecodeDirEntry(b []byte) (DirEntry, error) {
	var e DirEntry
	if len(b) < DirEntrySize {
		return e, fmt.Errorf("direntry buffer too small: %d < %d", len(b), DirEntrySize)
	}
	name := b[deNameOff : deNameOff+MaxFilename]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	e.Name = string(name)
	e.Ino = binary.LittleEndian.Uint32(b[deInoOff:])
	e.Valid = b[deValidOff] != 0
	return e, nil
}
