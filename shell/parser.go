// Package shell turns command lines into worker tasks and runs the
// interactive loop.
package shell

import (
	"strings"

	"github.com/rarydzu/monodisk/worker"
)

var verbs = map[string]worker.TaskKind{
	"ls":    worker.TaskList,
	"cat":   worker.TaskCat,
	"touch": worker.TaskTouch,
	"write": worker.TaskWrite,
	"rm":    worker.TaskRemove,
	"copy":  worker.TaskCopy,
	"info":  worker.TaskInfo,
	"exit":  worker.TaskExit,
	"quit":  worker.TaskExit,
}

// Parse maps one input line to a task. Blank lines become TaskEmpty;
// an unrecognized verb becomes TaskUnknown carrying the verb as its first
// argument.
func Parse(line string) worker.Task {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return worker.Task{Kind: worker.TaskEmpty}
	}
	kind, ok := verbs[fields[0]]
	if !ok {
		return worker.Task{Kind: worker.TaskUnknown, Args: fields}
	}
	return worker.Task{Kind: kind, Args: fields[1:]}
}
