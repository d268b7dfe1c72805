// Package watch drives an edit session from a file on disk. Each save is an
// edit; the session state is printed whenever it settles.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mcncl/gotyper-live/internal/errors"
	"github.com/mcncl/gotyper-live/internal/logging"
	"github.com/mcncl/gotyper-live/internal/models"
	"github.com/mcncl/gotyper-live/internal/session"
	"go.uber.org/zap"
)

// Status lines shown above the output
const (
	ValidLine   = "JSON is Valid ✔"
	InvalidLine = "JSON is Not Valid"
)

// Render formats a settled session for a terminal
func Render(s models.EditSession) string {
	var b strings.Builder
	if s.IsValid {
		b.WriteString(ValidLine)
	} else {
		b.WriteString(InvalidLine)
	}
	b.WriteString("\n")

	switch {
	case s.HasRequestError():
		fmt.Fprintf(&b, "Request Error: %s\n", s.ErrorMessage)
	case s.Result != "":
		b.WriteString(strings.TrimRight(s.Result, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// Watcher feeds a file into a session controller and prints each settled state
type Watcher struct {
	path       string
	controller *session.Controller
	out        io.Writer
	logger     *zap.SugaredLogger

	mu           sync.Mutex
	lastRendered uint64
}

// New creates a Watcher for path. Output goes to out.
func New(path string, controller *session.Controller, out io.Writer, logger *zap.SugaredLogger) *Watcher {
	return &Watcher{
		path:       filepath.Clean(path),
		controller: controller,
		out:        out,
		logger:     logging.OrNop(logger),
	}
}

// Run watches the file until ctx is done. The containing directory is
// watched so editors that save by renaming are still followed.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := os.Stat(w.path); err != nil {
		return errors.NewInputError(fmt.Sprintf("cannot watch '%s'", w.path), errors.Wrap(errors.ErrFileNotFound, err.Error()))
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return errors.Wrapf(err, "failed to watch %s", w.path)
	}

	unsubscribe := w.controller.Subscribe(w.render)
	defer unsubscribe()

	w.logger.Infow("Watching file", "path", w.path)
	w.reload()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Debugw("File changed", "path", w.path, "op", event.Op.String())
				w.reload()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warnw("Failed to read watched file", "path", w.path, "error", err)
		return
	}
	w.controller.OnTextChanged(string(data))
}

// render prints settled snapshots; in-flight ones carry nothing new to show
func (w *Watcher) render(s models.EditSession) {
	if s.IsRequestInFlight {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if s.Version <= w.lastRendered {
		return
	}
	w.lastRendered = s.Version

	if _, err := io.WriteString(w.out, Render(s)); err != nil {
		w.logger.Warnw("Failed to write output", "error", err)
	}
}
