package reconcile

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/pokerledger/internal/ledger"
	"github.com/rickgao/pokerledger/internal/model"
)

// errStopped cancels the rest of a run after a failure when the session asks
// to stop on the first one.
var errStopped = errors.New("import stopped after failure")

// ImportFiles parses sources in parallel and imports them. Files for different
// session dates are imported concurrently; files sharing a date are imported
// one at a time in name order so ordinals are minted deterministically.
// Every failure is recorded in the returned summary.
func (e *Engine) ImportFiles(ctx context.Context, sess *Session, sources []ledger.Source) Summary {
	files := e.parseAll(ctx, sess, sources)

	groups := make(map[string][]*ledger.File)
	var dates []string
	for _, f := range files {
		if f == nil {
			continue
		}
		d := f.Date.Format(model.DateLayout)
		if _, ok := groups[d]; !ok {
			dates = append(dates, d)
		}
		groups[d] = append(groups[d], f)
	}
	sort.Strings(dates)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sess.opts.Concurrency)
	for _, d := range dates {
		group := groups[d]
		sort.Slice(group, func(i, j int) bool { return group[i].Name < group[j].Name })
		g.Go(func() error {
			for i, f := range group {
				if gctx.Err() != nil {
					sess.recordSkipped(len(group) - i)
					return nil
				}
				if err := e.importOne(gctx, sess, f); err != nil && sess.opts.StopOnFailure {
					sess.recordSkipped(len(group) - i - 1)
					return errStopped
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	sum := sess.Summary()
	sess.logger.Info("import run finished",
		"files", sum.FilesProcessed,
		"failed", sum.FilesFailed,
		"skipped", sum.FilesSkipped,
		"added", sum.EntriesAdded,
		"duplicates", sum.EntriesSkipped,
		"games", len(sum.Games),
		"players", len(sum.Players),
		"failures", len(sum.Failures),
		"duration", sum.Duration,
	)
	return sum
}

// parseAll reads every source. Slots for files that failed to parse are nil.
func (e *Engine) parseAll(ctx context.Context, sess *Session, sources []ledger.Source) []*ledger.File {
	files := make([]*ledger.File, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sess.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if gctx.Err() != nil {
				sess.recordSkipped(1)
				return nil
			}
			f, err := ledger.Read(src, e.cfg.Schema, sess.opts.FailFast)
			if err != nil {
				sess.recordFile(false)
				sess.recordError(src.Name, err)
				if sess.opts.StopOnFailure {
					return errStopped
				}
				return nil
			}
			sess.recordRejected(f.Rejected)
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// A parse failure with stop-on-failure set means nothing is imported.
		n := 0
		for i, f := range files {
			if f != nil {
				files[i] = nil
				n++
			}
		}
		sess.recordSkipped(n)
	}
	return files
}

func (e *Engine) importOne(ctx context.Context, sess *Session, f *ledger.File) error {
	res, err := e.ImportFile(ctx, sess, f)
	if err != nil {
		sess.recordFile(false)
		sess.recordError(f.Name, err)
		return err
	}
	sess.recordResult(res)
	sess.recordFile(true)
	return nil
}
