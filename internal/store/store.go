package store

import (
    "context"
    "sync"
    "time"
)

// Record describes one finished conversion, kept as long as its storage entry.
type Record struct {
    ID         string    `json:"id"`
    Pages      int       `json:"pages"`
    Skipped    []string  `json:"skipped,omitempty"`
    Filename   string    `json:"filename"`
    Size       int64     `json:"size"`
    ArchiveURL string    `json:"archive_url,omitempty"`
    CreatedAt  time.Time `json:"created_at"`
}

// Store keeps conversion records with a time to live.
type Store interface {
    Save(ctx context.Context, rec Record, ttl time.Duration) error
    Get(ctx context.Context, id string) (Record, bool, error)
    SetArchiveURL(ctx context.Context, id, url string) error
    Ping(ctx context.Context) error
    Close() error
}

type memEntry struct {
    rec     Record
    expires time.Time
}

// MemoryStore is the in-process Store used when no Redis is configured.
type MemoryStore struct {
    mu      sync.Mutex
    records map[string]memEntry
    now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
    return &MemoryStore{records: map[string]memEntry{}, now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, rec Record, ttl time.Duration) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.purgeLocked()
    m.records[rec.ID] = memEntry{rec: rec, expires: m.now().Add(ttl)}
    return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Record, bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    e, ok := m.records[id]
    if !ok { return Record{}, false, nil }
    if !m.now().Before(e.expires) {
        delete(m.records, id)
        return Record{}, false, nil
    }
    return e.rec, true, nil
}

func (m *MemoryStore) SetArchiveURL(_ context.Context, id, url string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if e, ok := m.records[id]; ok {
        e.rec.ArchiveURL = url
        m.records[id] = e
    }
    return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// purgeLocked drops expired records so the map does not grow past the retention window.
func (m *MemoryStore) purgeLocked() {
    now := m.now()
    for id, e := range m.records {
        if !now.Before(e.expires) { delete(m.records, id) }
    }
}
