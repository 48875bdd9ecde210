// Package worker serializes access to a monodisk session. The core
// performs no locking of its own, so every operation is funneled through
// a single executor goroutine consuming a FIFO task queue.
package worker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jinzhu/copier"
	"github.com/rarydzu/monodisk/monodisk"
	"github.com/rarydzu/monodisk/monodisk/config"
	"github.com/rarydzu/monodisk/processor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TaskKind selects the operation a Task performs.
type TaskKind int

const (
	TaskEmpty TaskKind = iota
	TaskList
	TaskCat
	TaskTouch
	TaskWrite
	TaskRemove
	TaskCopy
	TaskInfo
	TaskExit
	TaskUnknown
)

func (k TaskKind) String() string {
	switch k {
	case TaskEmpty:
		return "empty"
	case TaskList:
		return "ls"
	case TaskCat:
		return "cat"
	case TaskTouch:
		return "touch"
	case TaskWrite:
		return "write"
	case TaskRemove:
		return "rm"
	case TaskCopy:
		return "copy"
	case TaskInfo:
		return "info"
	case TaskExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Task is one queued operation.
type Task struct {
	Kind TaskKind
	Args []string
}

// Result carries a task's printable output and its error, if any.
type Result struct {
	Output string
	Err    error
}

type envelope struct {
	task  Task
	reply chan Result
}

type Worker struct {
	active bool
	sync.Mutex
	Processor *processor.Processor
	log       *zap.SugaredLogger
	cfg       *config.Config
	disk      *monodisk.Monodisk
	tasks     chan envelope
	g         *errgroup.Group
}

// New builds a worker over its own copy of the configuration. The disk is
// not mounted until Start.
func New(cfg *config.Config, log *zap.SugaredLogger) (*Worker, error) {
	w := &Worker{
		log: log,
		cfg: &config.Config{},
	}
	if err := copier.Copy(w.cfg, cfg); err != nil {
		return nil, err
	}
	disk, err := monodisk.NewMonodisk(w.cfg, log)
	if err != nil {
		return nil, err
	}
	w.disk = disk
	w.tasks = make(chan envelope, w.cfg.QueueDepth)
	return w, nil
}

// Disk exposes the underlying session for read-only inspection. Callers
// must not invoke core operations on it while the worker is active.
func (w *Worker) Disk() *monodisk.Monodisk { return w.disk }

// Start mounts the disk and launches the executor goroutine. Shutdown is
// registered with the processor so SIGINT/SIGTERM stops the worker.
func (w *Worker) Start() error {
	w.Lock()
	defer w.Unlock()
	if w.active {
		return fmt.Errorf("worker already active")
	}
	if err := w.disk.Mount(); err != nil {
		return err
	}
	w.active = true
	w.tasks = make(chan envelope, w.cfg.QueueDepth)
	w.Processor = processor.New(w.cfg.ShutdownTimeout, w.log)
	if err := w.Processor.Register(processor.Shutdown, "disk", w.Stop); err != nil {
		return err
	}
	w.g = &errgroup.Group{}
	w.g.Go(w.run)
	return w.Processor.Run()
}

// run is the single executor: tasks are performed strictly in submission
// order. It exits when the task channel closes.
func (w *Worker) run() error {
	for env := range w.tasks {
		res := w.execute(env.task)
		if res.Err != nil {
			w.log.Debugf("task %s %v: %v", env.task.Kind, env.task.Args, res.Err)
		}
		env.reply <- res
	}
	return nil
}

// Submit queues a task and blocks until its result arrives or the context
// is canceled. The lock is held across the enqueue so Stop can never close
// the channel under a sender.
func (w *Worker) Submit(ctx context.Context, task Task) (Result, error) {
	env := envelope{task: task, reply: make(chan Result, 1)}
	w.Lock()
	if !w.active {
		w.Unlock()
		return Result{}, fmt.Errorf("worker not active")
	}
	select {
	case w.tasks <- env:
		w.Unlock()
	case <-ctx.Done():
		w.Unlock()
		return Result{}, ctx.Err()
	}
	select {
	case res := <-env.reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Stop drains the queue, waits for the executor and unmounts the disk.
// Stopping an inactive worker is a no-op.
func (w *Worker) Stop() error {
	w.Lock()
	if !w.active {
		w.Unlock()
		return nil
	}
	w.active = false
	close(w.tasks)
	w.Unlock()
	if err := w.g.Wait(); err != nil {
		w.log.Errorf("executor: %v", err)
	}
	return w.disk.Unmount()
}

// Wait blocks until the processor's shutdown sequence has run.
func (w *Worker) Wait() {
	w.Processor.Wait()
}

func (w *Worker) execute(task Task) Result {
	switch task.Kind {
	case TaskEmpty:
		return Result{}
	case TaskList:
		return w.list()
	case TaskCat:
		return w.cat(task.Args)
	case TaskTouch:
		return w.touch(task.Args)
	case TaskWrite:
		return w.write(task.Args)
	case TaskRemove:
		return w.remove(task.Args)
	case TaskCopy:
		return w.copyFile(task.Args)
	case TaskInfo:
		return w.info()
	case TaskExit:
		return Result{}
	default:
		name := ""
		if len(task.Args) > 0 {
			name = task.Args[0]
		}
		return Result{Err: fmt.Errorf("unknown command %q", name)}
	}
}

func needArgs(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func (w *Worker) list() Result {
	entries, err := w.disk.ListFiles()
	if err != nil {
		return Result{Err: err}
	}
	var b strings.Builder
	for _, e := range entries {
		size, err := w.disk.FileSize(e.Ino)
		if err != nil {
			return Result{Err: err}
		}
		fmt.Fprintf(&b, "%-28s %8d  inode %d\n", e.Name, size, e.Ino)
	}
	return Result{Output: b.String()}
}

func (w *Worker) cat(args []string) Result {
	if err := needArgs(args, 1, "cat <name>"); err != nil {
		return Result{Err: err}
	}
	ino, err := w.disk.OpenFile(args[0])
	if err != nil {
		return Result{Err: err}
	}
	size, err := w.disk.FileSize(ino)
	if err != nil {
		return Result{Err: err}
	}
	data, err := w.disk.ReadFileAt(ino, int(size), 0)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Output: string(data)}
}

func (w *Worker) touch(args []string) Result {
	if err := needArgs(args, 1, "touch <name>"); err != nil {
		return Result{Err: err}
	}
	ino, err := w.disk.CreateFile(args[0])
	if err != nil {
		return Result{Err: err}
	}
	return Result{Output: fmt.Sprintf("created %s (inode %d)\n", args[0], ino)}
}

// write appends nothing fancy: "write <name> <offset> <data...>" writes the
// remaining words joined by spaces at the byte offset, creating the file
// if it does not exist yet.
func (w *Worker) write(args []string) Result {
	if len(args) < 3 {
		return Result{Err: fmt.Errorf("usage: write <name> <offset> <data>")}
	}
	offset, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return Result{Err: fmt.Errorf("offset %q: %v", args[1], err)}
	}
	ino, err := w.disk.OpenFile(args[0])
	if err != nil {
		ino, err = w.disk.CreateFile(args[0])
		if err != nil {
			return Result{Err: err}
		}
	}
	data := []byte(strings.Join(args[2:], " "))
	n, err := w.disk.WriteFileAt(ino, data, offset)
	if err != nil {
		return Result{Output: fmt.Sprintf("wrote %d of %d bytes\n", n, len(data)), Err: err}
	}
	return Result{Output: fmt.Sprintf("wrote %d bytes\n", n)}
}

func (w *Worker) remove(args []string) Result {
	if err := needArgs(args, 1, "rm <name>"); err != nil {
		return Result{Err: err}
	}
	if err := w.disk.DeleteFile(args[0]); err != nil {
		return Result{Err: err}
	}
	return Result{Output: fmt.Sprintf("removed %s\n", args[0])}
}

// copyFile reads the source fully and writes it under the destination
// name, built purely on the core operations.
func (w *Worker) copyFile(args []string) Result {
	if err := needArgs(args, 2, "copy <src> <dst>"); err != nil {
		return Result{Err: err}
	}
	src, dst := args[0], args[1]
	srcIno, err := w.disk.OpenFile(src)
	if err != nil {
		return Result{Err: err}
	}
	size, err := w.disk.FileSize(srcIno)
	if err != nil {
		return Result{Err: err}
	}
	data, err := w.disk.ReadFileAt(srcIno, int(size), 0)
	if err != nil {
		return Result{Err: err}
	}
	dstIno, err := w.disk.CreateFile(dst)
	if err != nil {
		return Result{Err: err}
	}
	if len(data) > 0 {
		if _, err := w.disk.WriteFileAt(dstIno, data, 0); err != nil {
			// Leave no half-copied file behind.
			if derr := w.disk.DeleteFile(dst); derr != nil {
				w.log.Errorf("removing half-copied %s: %v", dst, derr)
			}
			return Result{Err: err}
		}
	}
	return Result{Output: fmt.Sprintf("copied %s -> %s (%d bytes)\n", src, dst, size)}
}

// Commands returns the task verbs the worker understands, for help output.
func Commands() []string {
	kinds := []TaskKind{TaskList, TaskCat, TaskTouch, TaskWrite, TaskRemove, TaskCopy, TaskInfo, TaskExit}
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	sort.Strings(out)
	return out
}
