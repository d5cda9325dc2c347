// Package inputs expands command line arguments into the ordered list of
// event files handed to the scheduler.
package inputs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrInputNotFound indicates that an argument names neither a file nor a directory.
var ErrInputNotFound = errors.New("input path not found")

// Options controls directory expansion.
type Options struct {
	IgnorePatterns []string // gitignore-style patterns, relative to each directory argument
	Extensions     []string // accepted extensions inside directories, e.g. ".slcio"; empty accepts all
	MaxFiles       int      // cap on the number of files returned; 0 means no cap
	Logger         slog.Handler
}

// Collect returns the files named by args in order. File arguments are taken
// as given. Directory arguments are walked in lexical order, skipping
// symbolic links, ignored paths and files with other extensions. Duplicates
// keep their first position.
func Collect(ctx context.Context, args []string, opts Options) ([]string, error) {
	handler := opts.Logger
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	logger := slog.New(handler).With(slog.String("component", "inputs"))

	c := &collector{
		opts:   opts,
		logger: logger,
		exts:   normalizeExtensions(opts.Extensions),
		seen:   make(map[string]struct{}),
	}
	for _, arg := range args {
		if c.full() {
			break
		}
		info, err := os.Stat(arg)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrInputNotFound, arg)
			}
			return nil, fmt.Errorf("could not stat input %s: %w", arg, err)
		}
		if !info.IsDir() {
			c.add(arg)
			continue
		}
		if err := c.walk(ctx, arg); err != nil {
			return nil, err
		}
	}
	logger.Debug("Inputs collected", slog.Int("files", len(c.files)), slog.Int("arguments", len(args)))
	return c.files, nil
}

type collector struct {
	opts   Options
	logger *slog.Logger
	exts   map[string]struct{}
	seen   map[string]struct{}
	files  []string
}

func (c *collector) full() bool {
	return c.opts.MaxFiles > 0 && len(c.files) >= c.opts.MaxFiles
}

func (c *collector) add(path string) {
	key := filepath.Clean(path)
	if _, dup := c.seen[key]; dup {
		c.logger.Debug("Skipping duplicate input", slog.String("path", path))
		return
	}
	c.seen[key] = struct{}{}
	c.files = append(c.files, path)
}

func (c *collector) accepts(name string) bool {
	if len(c.exts) == 0 {
		return true
	}
	_, ok := c.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}

var errFull = errors.New("max files reached")

func (c *collector) walk(ctx context.Context, dir string) error {
	matcher, err := newIgnoreMatcher(dir, c.opts.IgnorePatterns, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize ignore patterns for %s: %w", dir, err)
	}
	c.logger.Debug("Walking input directory", slog.String("path", dir), slog.Int("ignorePatterns", matcher.patternCount()))

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("could not read input directory %s: %w", dir, err)
			}
			c.logger.Warn("Error accessing path during walk", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.Type()&fs.ModeSymlink != 0 {
			c.logger.Debug("Skipping symbolic link", slog.String("path", path))
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if ignored, by := matcher.Match(rel, d.IsDir()); ignored {
			c.logger.Debug("Path ignored", slog.String("path", rel), slog.String("pattern", by))
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !c.accepts(d.Name()) {
			return nil
		}
		c.add(path)
		if c.full() {
			return errFull
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errFull) {
		return walkErr
	}
	return nil
}

func normalizeExtensions(exts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out[e] = struct{}{}
	}
	return out
}
