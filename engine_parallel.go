package tsls

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/jward/tsls/internal/store"
	"github.com/jward/tsls/internal/syntax"
)

// workItem holds everything a worker needs to analyse one file.
type workItem struct {
	path string
	uri  string
	lang string
	src  []byte
}

// OpenFiles opens the given file paths with version 0. Unsupported or
// filtered-out files are skipped, as are files whose content matches the
// document already open under the same URI.
//
// With WithParallel enabled (the default) it runs a three-phase pipeline:
//
//	Phase A (serial):   detect language, read, and hash-check each file.
//	Phase B (parallel): parse and analyse in a worker pool, one parser per
//	                    worker and language.
//	Phase C (serial):   publish each document under its URI lock.
//
// Errors on individual files are collected; processing continues.
func (e *Engine) OpenFiles(ctx context.Context, paths []string) error {
	if e.useParallel {
		return e.openFilesParallel(ctx, paths)
	}
	return e.openFilesSerial(ctx, paths)
}

func (e *Engine) openFilesSerial(ctx context.Context, paths []string) error {
	var errs []error
	for _, path := range paths {
		item, skip, err := e.prepareFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		if _, err := e.Open(ctx, item.uri, item.lang, 0, item.src); err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", path, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("tsls: opening had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (e *Engine) openFilesParallel(ctx context.Context, paths []string) error {
	// ---- Phase A: serial preparation ----
	var (
		items []workItem
		errs  []error
	)
	for _, path := range paths {
		item, skip, err := e.prepareFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		items = append(items, item)
	}

	if len(items) > 0 {
		// ---- Phase B: parallel parse and analysis ----
		numWorkers := max(min(runtime.GOMAXPROCS(0), len(items)), 1)

		workCh := make(chan workItem, len(items))
		for _, item := range items {
			workCh <- item
		}
		close(workCh)

		type result struct {
			item workItem
			doc  *store.Document
			err  error
		}
		resultCh := make(chan result, len(items))

		var wg sync.WaitGroup
		for range numWorkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				// Parsers are not goroutine-safe; each worker keeps its own.
				parsers := make(map[string]*syntax.Parser)
				defer func() {
					for _, p := range parsers {
						p.Close()
					}
				}()
				for item := range workCh {
					doc, err := e.analyzeFile(ctx, parsers, item)
					resultCh <- result{item: item, doc: doc, err: err}
				}
			}()
		}

		go func() {
			wg.Wait()
			close(resultCh)
		}()

		// ---- Phase C: serial publish ----
		for res := range resultCh {
			if res.err != nil {
				errs = append(errs, fmt.Errorf("open %s: %w", res.item.path, res.err))
				continue
			}
			if !e.publishFromDisk(res.doc) {
				e.log.Debug().Str("uri", res.item.uri).Msg("skipped, opened by the editor during analysis")
				continue
			}
			e.log.Debug().
				Str("uri", res.item.uri).
				Str("language", res.item.lang).
				Int("diagnostics", len(res.doc.Diagnostics)).
				Msg("opened")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("tsls: parallel opening had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// prepareFile does Phase A work for a single file. skip=true means the file
// is unsupported, filtered out, unchanged, or held open by the editor.
func (e *Engine) prepareFile(path string) (workItem, bool, error) {
	lang, ok := syntax.LanguageForFile(path)
	if !ok {
		return workItem{}, true, nil
	}
	if e.languages != nil && !e.languages[lang] {
		return workItem{}, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}

	uri := FileURI(path)
	if existing, ok := e.store.Get(uri); ok {
		if existing.Hash == store.ContentHash(content) {
			return workItem{}, true, nil // unchanged
		}
		if existing.Version > 0 {
			return workItem{}, true, nil // the editor's buffer wins over disk
		}
	}
	return workItem{path: path, uri: uri, lang: lang, src: content}, false, nil
}

// publishFromDisk does Phase C work for a single document read from disk.
// The store is re-checked under the URI lock: a document the editor opened
// (version > 0) since Phase A is left alone.
func (e *Engine) publishFromDisk(doc *Document) bool {
	unlock := e.store.Lock(doc.URI)
	defer unlock()

	if cur, ok := e.store.Get(doc.URI); ok && cur.Version > 0 {
		return false
	}
	e.store.Put(doc)
	return true
}

// analyzeFile does Phase B work for a single file.
func (e *Engine) analyzeFile(ctx context.Context, parsers map[string]*syntax.Parser, item workItem) (*Document, error) {
	parser, ok := parsers[item.lang]
	if !ok {
		var err error
		parser, err = syntax.NewParser(item.lang)
		if err != nil {
			return nil, err
		}
		parsers[item.lang] = parser
	}
	return e.parseWith(ctx, parser, item.uri, 0, item.src)
}
