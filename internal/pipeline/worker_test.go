package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/richconv/internal/config"
	"github.com/dgallion1/richconv/internal/convert"
	"github.com/dgallion1/richconv/internal/doctree"
	"github.com/dgallion1/richconv/internal/markup"
	"github.com/dgallion1/richconv/internal/pathstore"
	"github.com/dgallion1/richconv/internal/rules"
	"github.com/dgallion1/richconv/internal/schema"
	"github.com/dgallion1/richconv/internal/store"
)

// memStore is an in-memory store.Store with injectable Put failures.
type memStore struct {
	mu       sync.Mutex
	recs     map[string]store.Record
	puts     int
	failPuts int   // fail this many Puts before succeeding
	failErr  error // error returned by failing Puts
}

func newMemStore() *memStore {
	return &memStore{recs: map[string]store.Record{}}
}

func (m *memStore) Put(_ context.Context, rec store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failPuts > 0 {
		m.failPuts--
		return m.failErr
	}
	m.recs[rec.Key] = rec
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (*store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, key)
	return nil
}

func (m *memStore) List(_ context.Context, prefix string, _ int) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Record
	for k, r := range m.recs {
		if strings.HasPrefix(k, prefix+"/") {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(st store.Store) *Worker {
	w := NewWorker(schema.NewConverter(), st, testLogger(), 2, 2)
	w.backoff = func(int) time.Duration { return time.Millisecond }
	return w
}

func TestWorker_ConvertOnly(t *testing.T) {
	job := NewJob("u1", []Item{
		{DocID: "a", Content: "<div><p>Hello <b>World</b></p></div>"},
		{DocID: "b", Format: "markdown", Content: "# Title\n\nBody *text*\n"},
	}, false)

	newTestWorker(newMemStore()).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (%v)", snap.Status, snap.Progress.Errors)
	}
	if got := snap.Results[0].HTML; got != "<p>Hello <strong>World</strong></p>" {
		t.Errorf("unexpected canonical html %q", got)
	}
	if got := snap.Results[1].HTML; got != "<h1>Title</h1><p>Body <em>text</em></p>" {
		t.Errorf("unexpected markdown html %q", got)
	}
	if snap.Results[1].Title != "Title" {
		t.Errorf("expected title from h1, got %q", snap.Results[1].Title)
	}
	if snap.Progress.ItemsConverted != 2 {
		t.Errorf("expected 2 converted, got %d", snap.Progress.ItemsConverted)
	}
}

func TestWorker_StoreAndDedup(t *testing.T) {
	st := newMemStore()
	w := newTestWorker(st)
	items := []Item{{DocID: "a", Title: "A", Content: "<p>x</p>"}}

	first := NewJob("u1", items, true)
	w.Process(context.Background(), first)
	if s := first.Snapshot(); s.Status != StatusCompleted || s.Results[0].Status != ItemStored {
		t.Fatalf("expected stored, got %+v", s)
	}
	if first.Snapshot().Results[0].HTML != "" {
		t.Error("stored jobs should not echo html")
	}

	rec, err := st.Get(context.Background(), store.DocumentKey("u1", "a"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.HTML != "<p>x</p>" || rec.Title != "A" {
		t.Errorf("unexpected record %+v", rec)
	}

	second := NewJob("u1", items, true)
	w.Process(context.Background(), second)
	if got := second.Snapshot().Results[0].Status; got != ItemUnchanged {
		t.Errorf("expected unchanged on resubmit, got %q", got)
	}
	if st.puts != 1 {
		t.Errorf("expected 1 put, got %d", st.puts)
	}
}

func TestWorker_RetriesRetryableStoreErrors(t *testing.T) {
	st := newMemStore()
	st.failPuts = 2
	st.failErr = &pathstore.RetryableError{StatusCode: 503, Message: "busy"}

	job := NewJob("u1", []Item{{DocID: "a", Content: "<p>x</p>"}}, true)
	newTestWorker(st).Process(context.Background(), job)

	if s := job.Snapshot(); s.Status != StatusCompleted {
		t.Fatalf("expected completed after retries, got %q (%v)", s.Status, s.Progress.Errors)
	}
	if st.puts != 3 {
		t.Errorf("expected 3 put attempts, got %d", st.puts)
	}
}

func TestWorker_PermanentStoreErrorFailsItem(t *testing.T) {
	st := newMemStore()
	st.failPuts = 1
	st.failErr = errors.New("disk full")

	job := NewJob("u1", []Item{{DocID: "a", Content: "<p>x</p>"}}, true)
	newTestWorker(st).Process(context.Background(), job)

	s := job.Snapshot()
	if s.Status != StatusFailed {
		t.Errorf("expected failed, got %q", s.Status)
	}
	if st.puts != 1 {
		t.Errorf("expected no retry for permanent error, got %d puts", st.puts)
	}
	if !strings.Contains(s.Results[0].Error, "disk full") {
		t.Errorf("expected error recorded, got %q", s.Results[0].Error)
	}
}

func TestWorker_PartialOnItemFailure(t *testing.T) {
	job := NewJob("u1", []Item{
		{DocID: "ok", Content: "<p>fine</p>"},
		{DocID: "bad", Format: "rtf", Content: "{\\rtf1}"},
	}, false)
	newTestWorker(newMemStore()).Process(context.Background(), job)

	s := job.Snapshot()
	if s.Status != StatusPartial {
		t.Errorf("expected partial, got %q", s.Status)
	}
	if s.Results[1].Status != ItemFailed {
		t.Errorf("expected bad item failed, got %q", s.Results[1].Status)
	}
	if len(s.Progress.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", s.Progress.Errors)
	}
}

func TestWorker_RulePanicFailsItem(t *testing.T) {
	boom := rules.Rule{
		Name: "boom",
		Deserialize: func(el *markup.Element, _ rules.Recurse) (doctree.Node, bool, error) {
			if el.Tag == "blink" {
				panic("bad rule")
			}
			return nil, false, nil
		},
	}
	w := NewWorker(convert.New([]rules.Rule{boom}), newMemStore(), testLogger(), 1, 1)

	job := NewJob("u1", []Item{{DocID: "a", Content: "<blink>x</blink>"}}, false)
	w.Process(context.Background(), job)

	s := job.Snapshot()
	if s.Status != StatusFailed {
		t.Errorf("expected failed, got %q", s.Status)
	}
	if !strings.Contains(s.Results[0].Error, "bad rule") {
		t.Errorf("expected panic message, got %q", s.Results[0].Error)
	}
}

func TestOrchestrator_SubmitAndComplete(t *testing.T) {
	cfg := config.Config{WorkerCount: 2, MaxQueueSize: 4, MaxConcurrentConvert: 2, MaxConcurrentStore: 2, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, schema.NewConverter(), newMemStore(), testLogger())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("u1", []Item{{DocID: "a", Content: "<p>x</p>"}}, true)
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.GetJob(job.ID) != job {
		t.Fatal("expected job to be registered")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job.Snapshot().Status == StatusCompleted {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job did not complete, status %q", job.Snapshot().Status)
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	// Not started: nothing drains the queue.
	o := NewOrchestrator(cfg, schema.NewConverter(), newMemStore(), testLogger())

	if err := o.Submit(NewJob("u", nil, false)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second := NewJob("u", nil, false)
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full error")
	}
	if second.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job marked failed, got %q", second.Snapshot().Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}
