package store

import (
	"sort"
	"sync"
	"time"

	"animbridge/pkg/models"
)

// MemoryStore is an in-process ThreadStore used when no database path is
// configured and in tests. Threads do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*models.Thread
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{threads: make(map[string]*models.Thread)}
}

func (s *MemoryStore) Ready() bool { return true }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Create(t models.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedTS == 0 {
		t.CreatedTS = time.Now().UTC().UnixNano()
	}
	t.UpdatedTS = t.CreatedTS
	cp := t
	cp.Messages = append([]models.Message(nil), t.Messages...)
	s.threads[t.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(id string) (models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[id]
	if !ok {
		return models.Thread{}, ErrNotFound
	}
	cp := *t
	cp.Messages = append([]models.Message(nil), t.Messages...)
	return cp, nil
}

func (s *MemoryStore) AppendMessage(threadID string, m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrNotFound
	}
	if m.TS == 0 {
		m.TS = time.Now().UTC().UnixNano()
	}
	t.Messages = append(t.Messages, m)
	t.UpdatedTS = time.Now().UTC().UnixNano()
	return nil
}

func (s *MemoryStore) SetStatus(threadID, status string) error {
	return s.update(threadID, func(t *models.Thread) { t.Status = status })
}

func (s *MemoryStore) SetArtifact(threadID, url string) error {
	return s.update(threadID, func(t *models.Thread) { t.ArtifactURL = url })
}

func (s *MemoryStore) update(threadID string, fn func(*models.Thread)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrNotFound
	}
	fn(t)
	t.UpdatedTS = time.Now().UTC().UnixNano()
	return nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return ErrNotFound
	}
	delete(s.threads, id)
	return nil
}

func (s *MemoryStore) DeleteAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.threads)
	s.threads = make(map[string]*models.Thread)
	return n, nil
}

func (s *MemoryStore) List() ([]models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Thread, 0, len(s.threads))
	for _, t := range s.threads {
		cp := *t
		cp.Messages = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedTS < out[j].CreatedTS })
	return out, nil
}
