package monodisk

import (
	"path/filepath"
	"testing"

	"github.com/rarydzu/monodisk/monodisk/config"
	"github.com/rarydzu/monodisk/monodisk/layout"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testGeom keeps images tiny so exhaustion cases stay cheap: 64 blocks of
// 512 bytes, 8 inodes. The root directory block holds 14 entry slots.
var testGeom = layout.Geometry{BlockSize: 512, TotalBlocks: 64, MaxInodes: 8}

func newTestDisk(t *testing.T, geom layout.Geometry) *Monodisk {
	t.Helper()
	cfg := &config.Config{
		Path:           filepath.Join(t.TempDir(), "disk.img"),
		FilesystemName: "test",
		BlockSize:      geom.BlockSize,
		TotalBlocks:    geom.TotalBlocks,
		MaxInodes:      geom.MaxInodes,
	}
	d, err := NewMonodisk(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return d
}

// newDiskAt builds a session over an existing image path, for tests that
// reopen one image under different configurations.
func newDiskAt(t *testing.T, path string, geom layout.Geometry) *Monodisk {
	t.Helper()
	cfg := &config.Config{
		Path:           path,
		FilesystemName: "test",
		BlockSize:      geom.BlockSize,
		TotalBlocks:    geom.TotalBlocks,
		MaxInodes:      geom.MaxInodes,
	}
	d, err := NewMonodisk(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return d
}

func newMountedDisk(t *testing.T, geom layout.Geometry) *Monodisk {
	t.Helper()
	d := newTestDisk(t, geom)
	require.NoError(t, d.Format())
	require.NoError(t, d.Mount())
	t.Cleanup(func() {
		if d.Mounted() {
			require.NoError(t, d.Unmount())
		}
	})
	return d
}
