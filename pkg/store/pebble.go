package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"animbridge/pkg/logger"
	"animbridge/pkg/models"
)

// PebbleStore keeps threads in a Pebble database. Metadata lives under
// thread:<id>; each message gets its own key with a sortable timestamp
// prefix, so concurrent appends never clobber each other.
type PebbleStore struct {
	db *pebble.DB
	// seq breaks ties when messages share a nanosecond timestamp.
	seq uint64
	// mu guards read-modify-write of thread metadata.
	mu sync.Mutex
}

// OpenPebble opens (or creates) a Pebble database at path.
func OpenPebble(path string) (*PebbleStore, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("pebble_opened", "path", path)
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	logger.Info("pebble_closed")
	return err
}

func (s *PebbleStore) Ready() bool { return s.db != nil }

func metaKey(threadID string) []byte {
	return []byte("thread:" + threadID)
}

func msgPrefix(threadID string) []byte {
	return []byte("thread:" + threadID + ":msg:")
}

func (s *PebbleStore) msgKey(threadID string) []byte {
	ts := time.Now().UTC().UnixNano()
	n := atomic.AddUint64(&s.seq, 1)
	return []byte(fmt.Sprintf("thread:%s:msg:%020d-%06d", threadID, ts, n))
}

// Create writes the thread metadata and any seed messages. Messages are not
// stored inside the metadata record.
func (s *PebbleStore) Create(t models.Thread) error {
	msgs := t.Messages
	t.Messages = nil
	if t.CreatedTS == 0 {
		t.CreatedTS = time.Now().UTC().UnixNano()
	}
	t.UpdatedTS = t.CreatedTS
	if err := s.putMeta(t); err != nil {
		return err
	}
	for _, m := range msgs {
		if err := s.appendRaw(t.ID, m); err != nil {
			return err
		}
	}
	logger.Info("thread_created", "thread", t.ID, "messages", len(msgs))
	return nil
}

func (s *PebbleStore) putMeta(t models.Thread) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	return s.db.Set(metaKey(t.ID), b, pebble.Sync)
}

func (s *PebbleStore) getMeta(id string) (models.Thread, error) {
	v, closer, err := s.db.Get(metaKey(id))
	if err == pebble.ErrNotFound {
		return models.Thread{}, ErrNotFound
	}
	if err != nil {
		return models.Thread{}, err
	}
	defer closer.Close()
	var t models.Thread
	if err := json.Unmarshal(v, &t); err != nil {
		return models.Thread{}, fmt.Errorf("invalid thread metadata: %w", err)
	}
	return t, nil
}

func (s *PebbleStore) appendRaw(threadID string, m models.Message) error {
	if m.TS == 0 {
		m.TS = time.Now().UTC().UnixNano()
	}
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return s.db.Set(s.msgKey(threadID), b, pebble.Sync)
}

// AppendMessage adds one message to the thread and bumps its updated
// timestamp.
func (s *PebbleStore) AppendMessage(threadID string, m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.getMeta(threadID)
	if err != nil {
		return err
	}
	if err := s.appendRaw(threadID, m); err != nil {
		logger.Error("append_message_failed", "thread", threadID, "error", err)
		return err
	}
	t.UpdatedTS = time.Now().UTC().UnixNano()
	return s.putMeta(t)
}

// SetStatus updates the thread's lifecycle status.
func (s *PebbleStore) SetStatus(threadID, status string) error {
	return s.updateMeta(threadID, func(t *models.Thread) { t.Status = status })
}

// SetArtifact records the signed artifact URL.
func (s *PebbleStore) SetArtifact(threadID, url string) error {
	return s.updateMeta(threadID, func(t *models.Thread) { t.ArtifactURL = url })
}

func (s *PebbleStore) updateMeta(threadID string, fn func(*models.Thread)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.getMeta(threadID)
	if err != nil {
		return err
	}
	fn(&t)
	t.UpdatedTS = time.Now().UTC().UnixNano()
	return s.putMeta(t)
}

// Get assembles the thread from its metadata and message keys.
func (s *PebbleStore) Get(id string) (models.Thread, error) {
	t, err := s.getMeta(id)
	if err != nil {
		return models.Thread{}, err
	}
	msgs, err := s.listMessages(id)
	if err != nil {
		return models.Thread{}, err
	}
	t.Messages = msgs
	return t, nil
}

func (s *PebbleStore) listMessages(threadID string) ([]models.Message, error) {
	prefix := msgPrefix(threadID)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("invalid message record: %w", err)
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// Delete removes the thread metadata and every message key under it.
func (s *PebbleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.getMeta(id); err != nil {
		return err
	}
	if err := s.db.Delete(metaKey(id), pebble.Sync); err != nil {
		return err
	}
	prefix := msgPrefix(id)
	end := append(append([]byte(nil), prefix...), 0xff)
	if err := s.db.DeleteRange(prefix, end, pebble.Sync); err != nil {
		return err
	}
	logger.Info("thread_deleted", "thread", id)
	return nil
}

// DeleteAll removes every thread and returns how many were deleted.
func (s *PebbleStore) DeleteAll() (int, error) {
	threads, err := s.List()
	if err != nil {
		return 0, err
	}
	for _, t := range threads {
		if err := s.Delete(t.ID); err != nil && err != ErrNotFound {
			return 0, err
		}
	}
	logger.Info("threads_purged", "count", len(threads))
	return len(threads), nil
}

// List returns metadata for every thread, without messages.
func (s *PebbleStore) List() ([]models.Thread, error) {
	prefix := []byte("thread:")
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Thread
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		k := iter.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		// Skip message keys; metadata keys have no second colon.
		if bytes.Contains(k[len(prefix):], []byte(":")) {
			continue
		}
		var t models.Thread
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			return nil, fmt.Errorf("invalid thread metadata: %w", err)
		}
		out = append(out, t)
	}
	return out, iter.Error()
}
