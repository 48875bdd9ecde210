package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rarydzu/monodisk/monodisk"
	"github.com/rarydzu/monodisk/monodisk/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	cfg := &config.Config{
		Path:            filepath.Join(t.TempDir(), "disk.img"),
		FilesystemName:  "test",
		BlockSize:       512,
		TotalBlocks:     128,
		MaxInodes:       16,
		ShutdownTimeout: 0,
		QueueDepth:      8,
	}
	w, err := New(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	require.NoError(t, w.Disk().Format())
	require.NoError(t, w.Start())
	t.Cleanup(func() {
		require.NoError(t, w.Stop())
	})
	return w
}

func TestSubmitBasicFlow(t *testing.T) {
	w := newTestWorker(t)
	ctx := context.Background()

	res, err := w.Submit(ctx, Task{Kind: TaskTouch, Args: []string{"a.txt"}})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	res, err = w.Submit(ctx, Task{Kind: TaskWrite, Args: []string{"a.txt", "0", "hello", "worker"}})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, "wrote 12 bytes\n", res.Output)

	res, err = w.Submit(ctx, Task{Kind: TaskCat, Args: []string{"a.txt"}})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, "hello worker", res.Output)

	res, err = w.Submit(ctx, Task{Kind: TaskList, Args: nil})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output, "a.txt")

	res, err = w.Submit(ctx, Task{Kind: TaskRemove, Args: []string{"a.txt"}})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	res, err = w.Submit(ctx, Task{Kind: TaskCat, Args: []string{"a.txt"}})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, monodisk.ErrNotFound)
}

func TestWriteCreatesMissingFile(t *testing.T) {
	w := newTestWorker(t)
	res, err := w.Submit(context.Background(), Task{Kind: TaskWrite, Args: []string{"new", "0", "data"}})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	res, err = w.Submit(context.Background(), Task{Kind: TaskCat, Args: []string{"new"}})
	require.NoError(t, err)
	assert.Equal(t, "data", res.Output)
}

func TestCopy(t *testing.T) {
	w := newTestWorker(t)
	ctx := context.Background()
	_, err := w.Submit(ctx, Task{Kind: TaskWrite, Args: []string{"src", "0", "payload"}})
	require.NoError(t, err)

	res, err := w.Submit(ctx, Task{Kind: TaskCopy, Args: []string{"src", "dst"}})
	require.NoError(t, err)
	require.NoError(t, res.Err)

	res, err = w.Submit(ctx, Task{Kind: TaskCat, Args: []string{"dst"}})
	require.NoError(t, err)
	assert.Equal(t, "payload", res.Output)

	res, err = w.Submit(ctx, Task{Kind: TaskCopy, Args: []string{"absent", "x"}})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, monodisk.ErrNotFound)
}

func TestInfo(t *testing.T) {
	w := newTestWorker(t)
	res, err := w.Submit(context.Background(), Task{Kind: TaskInfo})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output, "filesystem:   test")
	assert.Contains(t, res.Output, "block size:   512 B")
	assert.Contains(t, res.Output, "inodes:")
}

func TestEmptyAndUnknown(t *testing.T) {
	w := newTestWorker(t)
	res, err := w.Submit(context.Background(), Task{Kind: TaskEmpty})
	require.NoError(t, err)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Output)

	res, err = w.Submit(context.Background(), Task{Kind: TaskUnknown, Args: []string{"frobnicate"}})
	require.NoError(t, err)
	assert.ErrorContains(t, res.Err, "frobnicate")
}

// Concurrent submitters racing to create the same name: serialization must
// let exactly one create succeed.
func TestConcurrentDuplicateCreates(t *testing.T) {
	w := newTestWorker(t)
	const racers = 8
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := w.Submit(context.Background(), Task{Kind: TaskTouch, Args: []string{"same"}})
			if err != nil {
				errs <- err
				return
			}
			errs <- res.Err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, monodisk.ErrAlreadyExists):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, racers-1, dup)
}

func TestSubmitHonorsContext(t *testing.T) {
	w := newTestWorker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Submit(ctx, Task{Kind: TaskList})
	// Either the canceled context or a completed list is acceptable; the
	// executor may win the race.
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestStartTwice(t *testing.T) {
	w := newTestWorker(t)
	assert.Error(t, w.Start())
}

func TestStopIsIdempotent(t *testing.T) {
	cfg := &config.Config{
		Path:        filepath.Join(t.TempDir(), "disk.img"),
		BlockSize:   512,
		TotalBlocks: 128,
		MaxInodes:   16,
		QueueDepth:  4,
	}
	w, err := New(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	require.NoError(t, w.Disk().Format())
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, err = w.Submit(context.Background(), Task{Kind: TaskList})
	assert.Error(t, err)
}

func TestSequentialFill(t *testing.T) {
	w := newTestWorker(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("f%d", i)
		res, err := w.Submit(ctx, Task{Kind: TaskWrite, Args: []string{name, "0", name}})
		require.NoError(t, err)
		require.NoError(t, res.Err)
	}
	res, err := w.Submit(ctx, Task{Kind: TaskList})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.Contains(t, res.Output, fmt.Sprintf("f%d", i))
	}
}
