package logging

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

// Setup initializes the global slog logger using charmbracelet/log as the backend.
// Logs go to stderr so stdout only carries the run report.
func Setup(verbose bool) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, verbose, isTerminal(os.Stderr))))
}

// NewHandler returns a charmbracelet/log handler writing to w.
// Colored text on a terminal, JSON otherwise.
func NewHandler(w io.Writer, verbose, tty bool) *charmlog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "nixpr",
	})

	if verbose {
		handler.SetLevel(charmlog.DebugLevel)
	} else {
		handler.SetLevel(charmlog.InfoLevel)
	}

	if !tty {
		handler.SetFormatter(charmlog.JSONFormatter)
	}

	return handler
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
