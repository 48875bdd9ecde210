package worker

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rarydzu/monodisk/utils"
	"github.com/shirou/gopsutil/v3/disk"
)

// info renders the filesystem statistics plus the usage of the host
// partition holding the image.
func (w *Worker) info() Result {
	st, err := w.disk.Stat()
	if err != nil {
		return Result{Err: err}
	}
	usedBlocks := st.DataBlocks - st.FreeBlocks
	var b strings.Builder
	fmt.Fprintf(&b, "filesystem:   %s (%s)\n", w.cfg.FilesystemName, st.MagicString())
	fmt.Fprintf(&b, "image:        %s\n", w.disk.Path())
	fmt.Fprintf(&b, "block size:   %s\n", utils.ByteCountIEC(uint64(st.BlockSize)))
	fmt.Fprintf(&b, "capacity:     %s (%d blocks)\n",
		utils.ByteCountIEC(uint64(st.TotalBlocks)*uint64(st.BlockSize)), st.TotalBlocks)
	fmt.Fprintf(&b, "data blocks:  %d used / %d free / %d total\n",
		usedBlocks, st.FreeBlocks, st.DataBlocks)
	fmt.Fprintf(&b, "data used:    %s\n", utils.ByteCountIEC(uint64(usedBlocks)*uint64(st.BlockSize)))
	fmt.Fprintf(&b, "inodes:       %d used / %d free / %d total\n",
		st.TotalInodes-st.FreeInodes, st.FreeInodes, st.TotalInodes)

	// Host partition holding the image; informational only, failures are
	// not worth surfacing to the caller.
	if usage, err := disk.Usage(filepath.Dir(w.disk.Path())); err == nil {
		fmt.Fprintf(&b, "host path:    %s, %s free of %s (%.1f%% used)\n",
			usage.Path, utils.ByteCountIEC(usage.Free), utils.ByteCountIEC(usage.Total),
			usage.UsedPercent)
	} else {
		w.log.Debugf("host partition usage: %v", err)
	}
	return Result{Output: b.String()}
}
