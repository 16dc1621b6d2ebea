// Package ingest imports seed files into the document store, skipping files
// that have not changed since the last import.
package ingest

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/logging"
	"github.com/theirongolddev/fintrack/internal/source"
)

// Store is the subset of *docstore.Store the importer writes to.
type Store interface {
	PutBatch(ctx context.Context, collection string, entries []docstore.Entry) error
	TrackedFiles(ctx context.Context) (map[string]docstore.FileInfo, error)
	TrackFile(ctx context.Context, path string, fi docstore.FileInfo) error
}

// ProgressFunc is called as files are parsed.
// current is the number of files processed so far, total is the total count.
type ProgressFunc func(current, total int)

// Options tune an import.
type Options struct {
	// Force re-imports files even when unchanged.
	Force    bool
	Progress ProgressFunc
	Logger   logrus.FieldLogger
}

// Result summarizes an import.
type Result struct {
	TotalFiles  int
	Skipped     int // unchanged since the last import
	Imported    int
	FileErrors  int
	ParseErrors int
	Documents   int
	Collections map[string]int // documents written per collection
}

// Import discovers seed files under dir, parses changed ones in parallel and
// writes each file's documents in one batch.
func Import(ctx context.Context, store Store, dir string, opts Options) (*Result, error) {
	log := logging.Component(opts.Logger, "ingest")

	files, err := source.ScanDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	result := &Result{
		TotalFiles:  len(files),
		Collections: make(map[string]int),
	}
	if len(files) == 0 {
		return result, nil
	}

	tracked, err := store.TrackedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading file tracker: %w", err)
	}

	// Diff: partition into changed and unchanged
	type pending struct {
		file source.DiscoveredFile
		info docstore.FileInfo
	}
	var toParse []pending
	for _, f := range files {
		st, err := os.Stat(f.Path)
		if err != nil {
			result.FileErrors++
			continue
		}
		fi := docstore.FileInfo{MtimeNs: st.ModTime().UnixNano(), SizeBytes: st.Size()}
		if prev, ok := tracked[f.Path]; ok && prev == fi && !opts.Force {
			result.Skipped++
			continue
		}
		toParse = append(toParse, pending{file: f, info: fi})
	}

	if len(toParse) == 0 {
		return result, nil
	}

	// Parallel parsing with bounded worker count
	results := make([]source.ParseResult, len(toParse))
	var processed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(runtime.GOMAXPROCS(0), 1))
	for i := range toParse {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = source.ParseFile(toParse[i].file)
			n := processed.Add(1)
			if opts.Progress != nil {
				opts.Progress(int(n)+result.Skipped, result.TotalFiles)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Writes go through one connection; keep them sequential
	for i, pr := range results {
		f := toParse[i].file
		if pr.Err != nil {
			result.FileErrors++
			log.WithField("file", f.Path).WithError(pr.Err).Warn("seed file unreadable")
			continue
		}
		result.ParseErrors += pr.ParseErrors
		if pr.ParseErrors > 0 {
			log.WithFields(logrus.Fields{"file": f.Path, "skipped": pr.ParseErrors}).Warn("malformed seed entries skipped")
		}

		if err := store.PutBatch(ctx, f.Collection, pr.Entries); err != nil {
			return result, fmt.Errorf("importing %s: %w", f.Path, err)
		}
		if err := store.TrackFile(ctx, f.Path, toParse[i].info); err != nil {
			return result, err
		}

		result.Imported++
		result.Documents += len(pr.Entries)
		result.Collections[f.Collection] += len(pr.Entries)
		log.WithFields(logrus.Fields{
			"file":       f.Path,
			"collection": f.Collection,
			"documents":  len(pr.Entries),
		}).Debug("seed file imported")
	}

	return result, nil
}
