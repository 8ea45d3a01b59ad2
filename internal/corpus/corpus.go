// Package corpus encodes discovered source files into hypergraphs
// concurrently, consulting the graph cache when one is configured.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/codeclass/internal/discover"
	"github.com/phobologic/codeclass/internal/encode"
	"github.com/phobologic/codeclass/internal/lang"
	"github.com/phobologic/codeclass/internal/metrics"
	"github.com/phobologic/codeclass/internal/model"
	"github.com/phobologic/codeclass/internal/store"
)

// ErrFileTooLarge is returned for files over Options.MaxFileSize.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// Options bound the work done by an Encoder.
type Options struct {
	// MaxFileSize skips larger files (0 = unlimited).
	MaxFileSize int64
	// Timeout bounds parsing and encoding of one file (0 = none). Go
	// sources are parsed to completion; the deadline is enforced while
	// they are encoded.
	Timeout time.Duration
	// Workers is the number of files encoded at once (0 = GOMAXPROCS).
	Workers int
	// Limits applies to every encoded tree.
	Limits encode.Options
}

// Encoder turns files into graphs. Cache, Metrics and Logger are optional.
type Encoder struct {
	Options Options
	Cache   *store.Cache
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Summary counts the outcome of an EncodeFiles call.
type Summary struct {
	Encoded   int
	CacheHits int
	Skipped   int
}

func (e *Encoder) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Encoder) workers(n int) int {
	w := e.Options.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	return max(1, min(w, n))
}

// EncodeFile encodes a single file below root. Unlike EncodeFiles it
// returns every failure to the caller.
func (e *Encoder) EncodeFile(ctx context.Context, root string, f discover.FileEntry) (*model.Graph, error) {
	l, ok := lang.Languages[f.Language]
	if !ok {
		return nil, fmt.Errorf("%s: unsupported language %q", f.Path, f.Language)
	}
	g, _, err := e.encodeOne(ctx, l.NewParser(), root, f)
	return g, err
}

// EncodeFiles encodes files below root with a bounded pool of workers.
// Graphs come back in input order. Files that fail to read, parse or
// encode are logged and skipped; only cancellation of ctx is an error.
func (e *Encoder) EncodeFiles(ctx context.Context, root string, files []discover.FileEntry) ([]*model.Graph, Summary, error) {
	graphs := make([]*model.Graph, len(files))
	hits := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers(len(files)))

	for i, f := range files {
		l, ok := lang.Languages[f.Language]
		if !ok {
			e.logger().Warn("skipping file", "path", f.Path, "error", "unsupported language "+f.Language)
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Each goroutine gets its own parser.
			graph, hit, err := e.encodeOne(gctx, l.NewParser(), root, f)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				e.logger().Warn("skipping file", "path", f.Path, "language", f.Language, "error", err)
				return nil
			}
			graphs[i], hits[i] = graph, hit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, err
	}

	var (
		out []*model.Graph
		sum Summary
	)
	for i, graph := range graphs {
		if graph == nil {
			sum.Skipped++
			continue
		}
		out = append(out, graph)
		sum.Encoded++
		if hits[i] {
			sum.CacheHits++
		}
	}
	return out, sum, nil
}

// encodeOne reads, parses and encodes f, recording the outcome.
func (e *Encoder) encodeOne(ctx context.Context, p lang.Parser, root string, f discover.FileEntry) (*model.Graph, bool, error) {
	absPath := filepath.Join(root, f.Path)

	if e.Options.MaxFileSize > 0 {
		fi, err := os.Stat(absPath)
		if err != nil {
			e.Metrics.FileEncoded(f.Language, metrics.ResultError)
			return nil, false, err
		}
		if fi.Size() > e.Options.MaxFileSize {
			e.Metrics.FileEncoded(f.Language, metrics.ResultTooLarge)
			return nil, false, fmt.Errorf("%s: %w (%d > %d bytes)", f.Path, ErrFileTooLarge, fi.Size(), e.Options.MaxFileSize)
		}
	}

	source, err := os.ReadFile(absPath)
	if err != nil {
		e.Metrics.FileEncoded(f.Language, metrics.ResultError)
		return nil, false, err
	}

	var hash string
	if e.Cache != nil {
		hash = store.Hash(source)
		cached, ok, err := e.Cache.Get(ctx, f.Path, hash)
		if err != nil {
			e.logger().Warn("cache lookup failed", "path", f.Path, "error", err)
		}
		e.Metrics.CacheLookup(ok)
		if ok {
			cached.File, cached.Label = f.Path, f.Label
			e.Metrics.FileEncoded(f.Language, metrics.ResultOK)
			return cached, true, nil
		}
	}

	if e.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Options.Timeout)
		defer cancel()
	}

	start := time.Now()
	g, err := parseAndEncode(ctx, p, f.Path, source, e.Options.Limits)
	if err != nil {
		e.Metrics.FileEncoded(f.Language, resultOf(err))
		return nil, false, err
	}
	e.Metrics.ObserveEncode(f.Language, time.Since(start), g.NumNodes())
	e.Metrics.FileEncoded(f.Language, metrics.ResultOK)

	g.File, g.Label = f.Path, f.Label
	if e.Cache != nil {
		if err := e.Cache.Put(ctx, f.Path, hash, f.Language, g); err != nil {
			e.logger().Warn("cache write failed", "path", f.Path, "error", err)
		}
	}
	return g, false, nil
}

func parseAndEncode(ctx context.Context, p lang.Parser, path string, source []byte, limits encode.Options) (*model.Graph, error) {
	tree, err := p.Parse(ctx, path, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	g, err := encode.EncodeContext(ctx, tree.Root, limits)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", path, err)
	}
	return g, nil
}

func resultOf(err error) string {
	var perr *encode.ParseError
	switch {
	case errors.As(err, &perr):
		return metrics.ResultParseError
	case errors.Is(err, encode.ErrTooDeep), errors.Is(err, encode.ErrTooLarge):
		return metrics.ResultTooLarge
	}
	return metrics.ResultError
}
