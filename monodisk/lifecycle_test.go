package monodisk

import (
	"os"
	"testing"

	"github.com/rarydzu/monodisk/monodisk/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMountUnmount(t *testing.T) {
	d := newTestDisk(t, testGeom)
	assert.Equal(t, StateUnformatted, d.State())

	require.NoError(t, d.Format())
	assert.Equal(t, StateFormatted, d.State())

	require.NoError(t, d.Mount())
	assert.Equal(t, StateMounted, d.State())

	st, err := d.Stat()
	require.NoError(t, err)
	assert.Equal(t, testGeom.MaxInodes-1, st.FreeInodes, "only the root inode is used")
	assert.Equal(t, st.DataBlocks-1, st.FreeBlocks, "only the root directory block is used")

	require.NoError(t, d.Unmount())
	assert.Equal(t, StateUnmounted, d.State())
}

func TestMountUnformatted(t *testing.T) {
	d := newTestDisk(t, testGeom)
	assert.ErrorIs(t, d.Mount(), ErrNotFormatted)
}

func TestMountBadMagic(t *testing.T) {
	d := newTestDisk(t, testGeom)
	require.NoError(t, d.Format())

	f, err := os.OpenFile(d.Path(), os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("BOGUS"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.ErrorIs(t, d.Mount(), ErrBadMagic)
	assert.NotEqual(t, StateMounted, d.State())
}

func TestMountRejectsMismatchedBlockSize(t *testing.T) {
	d := newTestDisk(t, testGeom)
	require.NoError(t, d.Format())

	// A session configured with a smaller block size over the same image:
	// the superblock's addresses would run off every buffer the device
	// hands out.
	other := newDiskAt(t, d.Path(), layout.Geometry{BlockSize: 256, TotalBlocks: 128, MaxInodes: 8})
	err := other.Mount()
	assert.ErrorIs(t, err, ErrBadGeometry)
	assert.NotEqual(t, StateMounted, other.State())
}

func TestMountRejectsMismatchedTotalBlocks(t *testing.T) {
	d := newTestDisk(t, testGeom)
	require.NoError(t, d.Format())

	geom := testGeom
	geom.TotalBlocks = testGeom.TotalBlocks * 2
	other := newDiskAt(t, d.Path(), geom)
	err := other.Mount()
	assert.ErrorIs(t, err, ErrBadGeometry)
	assert.NotEqual(t, StateMounted, other.State())

	// The matching geometry still mounts and reads sane counters.
	same := newDiskAt(t, d.Path(), testGeom)
	require.NoError(t, same.Mount())
	st, err := same.Stat()
	require.NoError(t, err)
	assert.Equal(t, st.DataBlocks-1, st.FreeBlocks)
	assert.Equal(t, testGeom.MaxInodes-1, st.FreeInodes)
	require.NoError(t, same.Unmount())
}

func TestRemountIsNoop(t *testing.T) {
	d := newMountedDisk(t, testGeom)
	require.NoError(t, d.Mount())
	assert.Equal(t, StateMounted, d.State())
}

func TestUnmountNotMountedIsNoop(t *testing.T) {
	d := newTestDisk(t, testGeom)
	require.NoError(t, d.Unmount())
	require.NoError(t, d.Format())
	require.NoError(t, d.Unmount())
	assert.Equal(t, StateFormatted, d.State())
}

func TestFormatWhileMounted(t *testing.T) {
	d := newMountedDisk(t, testGeom)
	assert.ErrorIs(t, d.Format(), ErrMounted)
}

func TestOperationsRequireMount(t *testing.T) {
	d := newTestDisk(t, testGeom)
	require.NoError(t, d.Format())

	if _, err := d.CreateFile("a"); !assert.ErrorIs(t, err, ErrNotMounted) {
		t.Fatal("create succeeded on an unmounted disk")
	}
	_, err := d.OpenFile("a")
	assert.ErrorIs(t, err, ErrNotMounted)
	assert.ErrorIs(t, d.DeleteFile("a"), ErrNotMounted)
	_, err = d.WriteFileAt(1, []byte("x"), 0)
	assert.ErrorIs(t, err, ErrNotMounted)
	_, err = d.ReadFileAt(1, 1, 0)
	assert.ErrorIs(t, err, ErrNotMounted)
	_, err = d.ListFiles()
	assert.ErrorIs(t, err, ErrNotMounted)
	_, err = d.Stat()
	assert.ErrorIs(t, err, ErrNotMounted)
}

func TestDataSurvivesRemount(t *testing.T) {
	d := newMountedDisk(t, testGeom)
	ino, err := d.CreateFile("keep.txt")
	require.NoError(t, err)
	_, err = d.WriteFileAt(ino, []byte("still here"), 0)
	require.NoError(t, err)
	require.NoError(t, d.Unmount())

	require.NoError(t, d.Mount())
	ino2, err := d.OpenFile("keep.txt")
	require.NoError(t, err)
	assert.Equal(t, ino, ino2)
	data, err := d.ReadFileAt(ino2, 32, 0)
	require.NoError(t, err)
	assert.Equal(t, "still here", string(data))
}

func TestMountRecountsFreeCounters(t *testing.T) {
	d := newMountedDisk(t, testGeom)
	ino, err := d.CreateFile("f")
	require.NoError(t, err)
	_, err = d.WriteFileAt(ino, []byte("x"), 0)
	require.NoError(t, err)

	st, err := d.Stat()
	require.NoError(t, err)

	// Simulate a crash between a bitmap write and the superblock write:
	// persist counters that disagree with the bitmaps.
	d.super.FreeBlocks++
	d.super.FreeInodes++
	require.NoError(t, d.Unmount())

	require.NoError(t, d.Mount())
	fixed, err := d.Stat()
	require.NoError(t, err)
	assert.Equal(t, st.FreeBlocks, fixed.FreeBlocks)
	assert.Equal(t, st.FreeInodes, fixed.FreeInodes)
}
