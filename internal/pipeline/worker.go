package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/richconv/internal/convert"
	"github.com/dgallion1/richconv/internal/doctree"
	"github.com/dgallion1/richconv/internal/parser"
	"github.com/dgallion1/richconv/internal/store"
)

// Worker processes a single batch job.
type Worker struct {
	conv  *convert.Converter
	store store.Store
	log   *slog.Logger

	maxConcurrentConvert int
	maxConcurrentStore   int

	backoff func(attempt int) time.Duration
}

func NewWorker(conv *convert.Converter, st store.Store, log *slog.Logger, maxConvert, maxStore int) *Worker {
	return &Worker{
		conv:                 conv,
		store:                st,
		log:                  log,
		maxConcurrentConvert: max(maxConvert, 1),
		maxConcurrentStore:   max(maxStore, 1),
		backoff:              Backoff,
	}
}

// Process converts every item, then stores the results if the job asks for
// it. Items fail independently.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "user_id", job.UserID)
	items := job.Items()

	// Phase 1: Convert with bounded concurrency.
	job.SetStatus(StatusConverting, "converting")
	html := make([]string, len(items))
	var wg sync.WaitGroup
	sem := make(chan struct{}, w.maxConcurrentConvert)

	for i, it := range items {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			res, out, err := w.convertItem(it)
			if err != nil {
				log.Error("convert failed", "doc_id", it.DocID, "error", err)
				job.AddError(fmt.Sprintf("%s: %s", it.DocID, err))
				job.SetResult(i, ItemResult{DocID: it.DocID, Status: ItemFailed, Error: err.Error()})
				return
			}
			html[i] = out
			if !job.Store {
				res.HTML = out
			}
			job.SetResult(i, res)
		}()
	}
	wg.Wait()

	// Phase 2: Store converted items.
	if job.Store {
		job.SetStatus(StatusStoring, "storing")
		storeSem := make(chan struct{}, w.maxConcurrentStore)
		for i, it := range items {
			res := job.Result(i)
			if res.Status != ItemConverted {
				continue
			}
			storeSem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-storeSem }()
				status, err := w.storeItem(ctx, job.UserID, res, html[i])
				if err != nil {
					log.Error("store failed", "doc_id", it.DocID, "error", err)
					job.AddError(fmt.Sprintf("store %s: %s", it.DocID, err))
					res.Status = ItemFailed
					res.Error = err.Error()
				} else {
					res.Status = status
				}
				job.SetResult(i, res)
			}()
		}
		wg.Wait()
	}

	snap := job.Snapshot()
	failed := 0
	for _, r := range snap.Results {
		if r.Status == ItemFailed {
			failed++
		}
	}
	log.Info("batch complete",
		"items", len(items),
		"converted", snap.Progress.ItemsConverted,
		"stored", snap.Progress.ItemsStored,
		"unchanged", snap.Progress.ItemsUnchanged,
		"failed", failed)

	switch {
	case failed == 0:
		job.SetStatus(StatusCompleted, "done")
	case failed < len(items):
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusFailed, "done")
	}
}

// convertItem imports an item and canonicalizes it by deserializing and
// serializing again. A panicking rule fails the item, not the worker.
func (w *Worker) convertItem(it Item) (res ItemResult, out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule panic: %v", r)
		}
	}()

	p, err := parser.ForFormat(it.Format)
	if err != nil {
		return res, "", err
	}
	src, err := p.Parse(strings.NewReader(it.Content), it.DocID)
	if err != nil {
		return res, "", err
	}
	nodes, err := w.conv.DeserializeNodes(src.Nodes)
	if err != nil {
		return res, "", fmt.Errorf("deserialize: %w", err)
	}
	out, err = w.conv.Serialize(nodes...)
	if err != nil {
		return res, "", fmt.Errorf("serialize: %w", err)
	}

	title := it.Title
	if title == "" {
		title = src.Title
	}
	return ItemResult{
		DocID:       it.DocID,
		Status:      ItemConverted,
		Title:       title,
		Nodes:       doctree.Count(nodes),
		ContentHash: store.ContentHash(out),
	}, out, nil
}

// storeItem writes one document, skipping the write when the stored copy
// already has the same content hash.
func (w *Worker) storeItem(ctx context.Context, userID string, res ItemResult, html string) (string, error) {
	key := store.DocumentKey(userID, res.DocID)

	existing, err := w.store.Get(ctx, key)
	switch {
	case err == nil && existing.ContentHash == res.ContentHash && existing.Title == res.Title:
		return ItemUnchanged, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		w.log.Warn("dedup check failed, proceeding", "key", key, "error", err)
	}

	rec := store.Record{
		Key:         key,
		Title:       res.Title,
		HTML:        html,
		ContentHash: res.ContentHash,
	}
	var lastErr error
	for attempt := range MaxRetries {
		lastErr = w.store.Put(ctx, rec)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		w.log.Warn("retryable store error", "key", key, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return ItemStored, nil
}
