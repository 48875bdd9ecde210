// Package config carries the runtime configuration of a monodisk session.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rarydzu/monodisk/monodisk/layout"
)

type Config struct {
	// Path to the backing disk image file.
	Path string `envconfig:"PATH" default:"/tmp/monodisk.img"`
	// FilesystemName names the session in logs and stats output.
	FilesystemName string `envconfig:"NAME" default:"monodisk"`
	// BlockSize is the disk block size in bytes (format time only).
	BlockSize uint32 `envconfig:"BLOCK_SIZE" default:"4096"`
	// TotalBlocks is the image capacity in blocks (format time only).
	TotalBlocks uint32 `envconfig:"TOTAL_BLOCKS" default:"25600"`
	// MaxInodes is the inode table capacity (format time only).
	MaxInodes uint32 `envconfig:"MAX_INODES" default:"1024"`
	// DebugMode runs with a development logger.
	DebugMode bool `envconfig:"DEBUG" default:"false"`
	// ShutdownTimeout bounds how long a shutdown may take before the
	// process force-exits.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"60s"`
	// QueueDepth is the task queue capacity of the worker front end.
	QueueDepth int `envconfig:"QUEUE_DEPTH" default:"64"`
}

// FromEnv builds a Config from MONODISK_* environment variables, falling
// back to the defaults above.
func FromEnv() (*Config, error) {
	var c Config
	if err := envconfig.Process("monodisk", &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

// Geometry returns the format-time image geometry.
func (c *Config) Geometry() layout.Geometry {
	return layout.Geometry{
		BlockSize:   c.BlockSize,
		TotalBlocks: c.TotalBlocks,
		MaxInodes:   c.MaxInodes,
	}
}
