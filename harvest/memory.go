package harvest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore keeps documents in memory for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	meta DocumentMeta
}

// NewMemoryStore creates an in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put stores a document.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, meta DocumentMeta) (DocumentRef, error) {
	_ = ctx
	if key == "" {
		return DocumentRef{}, NewError(KindValidation, "document key is required", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return DocumentRef{}, err
	}
	meta.Size = int64(len(data))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, meta: meta}
	s.mu.Unlock()

	return DocumentRef{Key: key, Meta: meta}, nil
}

// Open reads a document.
func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, DocumentMeta, error) {
	_ = ctx
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, DocumentMeta{}, NewError(KindNotFound, fmt.Sprintf("document %q not found", key), nil)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.meta, nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// MemoryTracker keeps export history in memory.
type MemoryTracker struct {
	mu      sync.RWMutex
	records map[string]ExportRecord
	counter uint64
	Now     func() time.Time
}

// NewMemoryTracker creates an in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{records: make(map[string]ExportRecord), Now: time.Now}
}

// Start creates a new record.
func (t *MemoryTracker) Start(ctx context.Context, record ExportRecord) (string, error) {
	_ = ctx
	if record.ID == "" {
		record.ID = t.nextID()
	}
	if record.State == "" {
		record.State = StateQueued
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = t.now()
	}

	t.mu.Lock()
	t.records[record.ID] = record
	t.mu.Unlock()
	return record.ID, nil
}

// SetState updates the record state.
func (t *MemoryTracker) SetState(ctx context.Context, id string, state ExportState) error {
	_ = ctx
	return t.update(id, func(record *ExportRecord) {
		record.State = state
		if state == StateRunning && record.StartedAt.IsZero() {
			record.StartedAt = t.now()
		}
	})
}

// Fail records the failure and its message.
func (t *MemoryTracker) Fail(ctx context.Context, id string, err error) error {
	_ = ctx
	return t.update(id, func(record *ExportRecord) {
		record.State = StateFailed
		if err != nil {
			record.Error = err.Error()
		}
		record.CompletedAt = t.now()
	})
}

// Complete marks the export as completed.
func (t *MemoryTracker) Complete(ctx context.Context, id string, outcome ExportOutcome) error {
	_ = ctx
	return t.update(id, func(record *ExportRecord) {
		record.State = StateCompleted
		record.DocumentKey = outcome.DocumentKey
		record.Bytes = outcome.Bytes
		record.Layout = outcome.Layout
		record.CompletedAt = t.now()
	})
}

// Status returns a record by ID.
func (t *MemoryTracker) Status(ctx context.Context, id string) (ExportRecord, error) {
	_ = ctx
	t.mu.RLock()
	record, ok := t.records[id]
	t.mu.RUnlock()
	if !ok {
		return ExportRecord{}, NewError(KindNotFound, fmt.Sprintf("export %q not found", id), nil)
	}
	return record, nil
}

// List returns records newest first.
func (t *MemoryTracker) List(ctx context.Context, filter ExportFilter) ([]ExportRecord, error) {
	_ = ctx
	t.mu.RLock()
	records := make([]ExportRecord, 0, len(t.records))
	for _, record := range t.records {
		if filter.State != "" && record.State != filter.State {
			continue
		}
		if filter.Template != "" && record.Template != filter.Template {
			continue
		}
		records = append(records, record)
	}
	t.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records, nil
}

func (t *MemoryTracker) update(id string, fn func(record *ExportRecord)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[id]
	if !ok {
		return NewError(KindNotFound, fmt.Sprintf("export %q not found", id), nil)
	}
	fn(&record)
	t.records[id] = record
	return nil
}

func (t *MemoryTracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *MemoryTracker) nextID() string {
	id := atomic.AddUint64(&t.counter, 1)
	return fmt.Sprintf("exp-%d", id)
}
