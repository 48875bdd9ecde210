package monodisk

import "errors"

// Operation failures callers are expected to branch on. Backing store I/O
// failures are not in this list; they are surfaced wrapped, as-is, and are
// never retried internally.
var (
	ErrNotFormatted  = errors.New("filesystem not formatted")
	ErrNotMounted    = errors.New("filesystem not mounted")
	ErrMounted       = errors.New("filesystem is mounted")
	ErrBadMagic      = errors.New("bad filesystem magic")
	ErrBadGeometry   = errors.New("image geometry does not match configuration")
	ErrNotFound      = errors.New("no such file")
	ErrInvalidName   = errors.New("invalid file name")
	ErrAlreadyExists = errors.New("file already exists")
	ErrNoFreeInode   = errors.New("no free inode")
	ErrNoFreeBlock   = errors.New("no free data block")
	ErrDirectoryFull = errors.New("root directory is full")
	ErrFileTooLarge  = errors.New("file exceeds the direct block limit")
	ErrInvalidHandle = errors.New("inode is not a live file")
)
