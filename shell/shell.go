package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rarydzu/monodisk/worker"
	"go.uber.org/zap"
)

const prompt = "monodisk> "

// Shell reads commands from In, submits them to the worker and prints
// results to Out.
type Shell struct {
	In  io.Reader
	Out io.Writer

	w   *worker.Worker
	log *zap.SugaredLogger
}

func New(w *worker.Worker, in io.Reader, out io.Writer, log *zap.SugaredLogger) *Shell {
	return &Shell{In: in, Out: out, w: w, log: log}
}

// Run loops until exit, EOF or context cancellation. Errors from
// individual commands are printed, not fatal.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintf(s.Out, "commands: %s\n", strings.Join(worker.Commands(), " "))
	scanner := bufio.NewScanner(s.In)
	for {
		fmt.Fprint(s.Out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.Out)
			return scanner.Err()
		}
		task := Parse(scanner.Text())
		if task.Kind == worker.TaskExit {
			return nil
		}
		res, err := s.w.Submit(ctx, task)
		if err != nil {
			// The worker is gone or the context fired; stop the loop.
			return err
		}
		if res.Err != nil {
			fmt.Fprintf(s.Out, "error: %v\n", res.Err)
			continue
		}
		fmt.Fprint(s.Out, res.Output)
	}
}
