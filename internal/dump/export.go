package dump

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jward/tsls/internal/store"
)

// Stats summarises one Export run.
type Stats struct {
	Exported int
	Skipped  int
	Removed  int
}

type exportOptions struct {
	workers int
	log     zerolog.Logger
	prune   bool
	now     func() time.Time
}

// ExportOption configures Export.
type ExportOption func(*exportOptions)

// WithWorkers bounds the number of documents extracted concurrently.
func WithWorkers(n int) ExportOption {
	return func(o *exportOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger used for progress messages.
func WithLogger(log zerolog.Logger) ExportOption {
	return func(o *exportOptions) { o.log = log }
}

// WithPrune removes exported documents that are absent from the snapshot.
func WithPrune(prune bool) ExportOption {
	return func(o *exportOptions) { o.prune = prune }
}

// Export writes every document of snap to s.
//
//	Phase A (serial):   skip documents whose hash matches the stored row.
//	Phase B (parallel): build one Batch per document.
//	Phase C (serial):   commit each Batch in its own transaction.
func Export(ctx context.Context, s *Store, snap *store.Snapshot, opts ...ExportOption) (Stats, error) {
	o := exportOptions{
		workers: runtime.GOMAXPROCS(0),
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var stats Stats

	// ---- Phase A ----
	var pending []*store.Document
	for _, doc := range snap.Documents() {
		old, err := s.DocumentByURI(doc.URI)
		if err != nil {
			return stats, err
		}
		if old != nil && old.Hash == doc.Hash && old.Version == doc.Version {
			stats.Skipped++
			continue
		}
		pending = append(pending, doc)
	}

	// ---- Phase B ----
	batches := make([]*Batch, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	exportedAt := o.now()
	for i, doc := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := BuildBatch(doc, exportedAt)
			if err != nil {
				return fmt.Errorf("extract %s: %w", doc.URI, err)
			}
			batches[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	// ---- Phase C ----
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := s.CommitBatch(b); err != nil {
			return stats, err
		}
		stats.Exported++
		o.log.Debug().
			Str("uri", b.Document.URI).
			Int("symbols", len(b.Symbols)).
			Int("diagnostics", len(b.Diagnostics)).
			Msg("exported")
	}

	if o.prune {
		n, err := s.prune(snap)
		if err != nil {
			return stats, err
		}
		stats.Removed = n
	}

	o.log.Info().
		Int("exported", stats.Exported).
		Int("skipped", stats.Skipped).
		Int("removed", stats.Removed).
		Msg("export finished")
	return stats, nil
}

func (s *Store) prune(snap *store.Snapshot) (int, error) {
	docs, err := s.Documents()
	if err != nil {
		return 0, err
	}
	var stale []int64
	for _, d := range docs {
		if _, ok := snap.Get(d.URI); !ok {
			stale = append(stale, d.ID)
		}
	}
	if err := s.DeleteDocuments(stale); err != nil {
		return 0, err
	}
	return len(stale), nil
}
