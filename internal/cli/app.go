package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lumastack/routelog/internal/geo"
	"github.com/lumastack/routelog/internal/store"
	"github.com/lumastack/routelog/internal/sync"
)

// app bundles the collaborators a command needs. Built per invocation,
// closed when the command returns.
type app struct {
	opts   *RootOptions
	store  *store.Store
	engine *sync.Engine
	geo    *geo.Client
	out    *OutputFormatter
}

func openApp(opts *RootOptions, w *OutputFormatter) (*app, error) {
	if dir := filepath.Dir(opts.cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "create database directory", err)
		}
	}
	st, err := store.Open(opts.cfg.DBPath, store.Options{OfficePolicy: opts.cfg.OfficePolicy})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}

	engine := sync.New(st, opts.cfg.Wire(), sync.Options{
		Probe:  sync.DialProbe(opts.cfg.Wire()),
		Logger: slog.Default(),
	})

	return &app{
		opts:   opts,
		store:  st,
		engine: engine,
		geo:    geo.New(nil, opts.cfg.Geo(), st, slog.Default()),
		out:    w,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func formatter(opts *RootOptions, w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: w, Verbose: opts.Verbose}
}

// stopLabel renders a stop for text output.
func stopLabel(i int, total int) string {
	switch i {
	case 0:
		return "office out"
	case total - 1:
		return "office in"
	default:
		return fmt.Sprintf("stop %d", i)
	}
}
