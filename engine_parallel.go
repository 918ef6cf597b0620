package ctxgraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/jward/ctxgraph/internal/ctxerr"
	"github.com/jward/ctxgraph/internal/lang"
	"github.com/jward/ctxgraph/internal/store"
)

// workItem holds everything a parallel extraction worker needs to turn
// one file's bytes into a committable batch.
type workItem struct {
	relPath string
	fileID  int64
	batch   *store.BatchedStore

	// before holds the file's previously stored symbols, captured ahead
	// of deletion, for blast-radius comparison once the batch commits.
	before []*store.Symbol
}

// IndexFilesParallel indexes files using a three-phase pipeline:
//
//	Phase A (serial):   hash check, delete stale data, prepare file records.
//	Phase B (parallel):  parse + extract into a per-item BatchedStore.
//	Phase C (serial):   commit batches to SQLite, compute blast radius.
func (e *Engine) IndexFilesParallel(ctx context.Context, repositoryID int64, root string, paths []string) error {
	if e.blastRadius == nil {
		e.blastRadius = make(map[int64]bool)
	}

	// ---- Phase A: serial file preparation ----
	// A single file's prepare error (e.g. a permission problem on one
	// path) is collected rather than aborting the loop, so a missing or
	// broken file never drops the rest of the batch — see prepareFile's
	// own handling of a deleted path, which reports skip=true rather than
	// an error at all.
	var items []workItem
	var prepErrs []error
	for _, p := range paths {
		item, skip, err := e.prepareFile(repositoryID, root, p)
		if err != nil {
			prepErrs = append(prepErrs, fmt.Errorf("prepare %s: %w", p, err))
			continue
		}
		if skip {
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		if len(prepErrs) > 0 {
			return fmt.Errorf("parallel indexing had %d error(s): %w", len(prepErrs), prepErrs[0])
		}
		return nil
	}

	// ---- Phase B: parallel extraction ----
	numWorkers := min(runtime.NumCPU(), len(items))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item workItem
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				select {
				case <-ctx.Done():
					resultCh <- result{item: item, err: ctx.Err()}
					continue
				default:
				}
				err := extractFile(root, repositoryID, item)
				resultCh <- result{item: item, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: serial commit ----
	errs := prepErrs
	for res := range resultCh {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("extract %s: %w", res.item.relPath, res.err))
			continue
		}

		if err := e.store.CommitBatch(res.item.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", res.item.relPath, err))
			continue
		}

		after, err := e.captureSymbolKeys(res.item.fileID)
		if err != nil {
			errs = append(errs, fmt.Errorf("capture new symbols %s: %w", res.item.relPath, err))
			continue
		}
		changed := store.ComputeBlastRadius(res.item.before, after)
		e.markBlastRadius(repositoryID, res.item.fileID, changed)
	}

	if len(errs) > 0 {
		return fmt.Errorf("parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// prepareFile does Phase A work for a single file: hash check, cleanup,
// file record. Returns (item, skip, error); skip means unchanged, over
// the size gate, or unsupported.
func (e *Engine) prepareFile(repositoryID int64, root, relPath string) (workItem, bool, error) {
	l := lang.ForExtension(filepath.Ext(relPath))
	if l == nil {
		return workItem{}, true, nil
	}
	if e.languages != nil && !e.languages[l.Name] {
		return workItem{}, true, nil
	}

	absPath := filepath.Join(root, relPath)
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			if delErr := e.handleMissingFile(repositoryID, relPath); delErr != nil {
				return workItem{}, false, fmt.Errorf("handle missing file: %w", delErr)
			}
			return workItem{}, true, nil
		}
		return workItem{}, false, fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > e.maxFileSize {
		return workItem{}, true, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(content)

	file := &store.File{
		RepositoryID: repositoryID,
		Path:         relPath,
		Language:     l.Name,
		Hash:         hash,
		LastIndexed:  time.Now(),
	}
	fileID, previousHash, err := e.store.UpsertFile(file)
	if err != nil {
		return workItem{}, false, fmt.Errorf("upsert file: %w", err)
	}
	if previousHash == hash {
		return workItem{}, true, nil
	}

	var before []*store.Symbol
	if previousHash != "" {
		before, err = e.captureSymbolKeys(fileID)
		if err != nil {
			return workItem{}, false, fmt.Errorf("capture old symbols: %w", err)
		}
	}

	if err := e.store.DeleteFileData(fileID); err != nil {
		return workItem{}, false, fmt.Errorf("delete old data: %w", err)
	}
	// DeleteFileData also removes the file row; re-create it so the fresh
	// symbols have a row to belong to.
	if fileID, _, err = e.store.UpsertFile(file); err != nil {
		return workItem{}, false, fmt.Errorf("re-create file row: %w", err)
	}

	return workItem{
		relPath: relPath,
		fileID:  fileID,
		batch:   store.NewBatchedStore(e.store),
		before:  before,
	}, false, nil
}

// extractFile runs the language extractor for a single file and buffers
// the resulting symbols/references into item.batch. Tree-sitter parsers
// are not safe for concurrent use from a single instance, but each call
// here creates its own via lang.Language.Extract, so this is safe to run
// from multiple goroutines simultaneously.
func extractFile(root string, repositoryID int64, item workItem) error {
	l := lang.ForExtension(filepath.Ext(item.relPath))
	if l == nil {
		return nil
	}
	content, err := os.ReadFile(filepath.Join(root, item.relPath))
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	result := l.Extract(content, item.relPath)
	if len(result.Symbols) == 0 && len(content) > 0 {
		slog.Warn("extractor produced no symbols", "path", item.relPath, "error", ctxerr.ErrParse)
	}
	if _, err := insertForest(item.batch, repositoryID, item.fileID, item.relPath, nil, result.Symbols); err != nil {
		return fmt.Errorf("insert extracted symbols: %w", err)
	}
	return nil
}
