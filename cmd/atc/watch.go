package main

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
)

// watchLoop builds once, then watches every file the build opened and
// rebuilds on writes. Failed builds keep the previous output in place and
// keep watching.
func watchLoop(root string, build func() ([]string, error)) int {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = watcher.Close() }()

	rebuild := func() {
		deps, err := build()
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		if len(deps) == 0 {
			deps = []string{root}
		}
		for _, d := range deps {
			// Add is idempotent; errors on vanished files are not fatal,
			// the next rebuild re-adds them.
			if err := watcher.Add(d); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "atc: watch %s: %v\n", d, err)
			}
		}
	}

	rebuild()
	_, _ = fmt.Fprintln(os.Stderr, "atc: watching for changes, press Ctrl+C to stop")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return 0
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				rebuild()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return 0
			}
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
	}
}
