package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in a map. Expired records linger until Sweep runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	id, now := documentID(key), now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[id]; ok && record.live(now) {
		return record.claim(fingerprint)
	}
	record := pendingRecord(key, fingerprint, now, ttlOrDefault(ttl))
	s.records[id] = record
	return Reservation{State: ReservationStateNew, Record: record}, nil
}

func (s *MemoryStore) SaveResponse(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	id := documentID(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, found := s.records[id]
	record, err := completion(stored, found, key, fingerprint)
	if err != nil {
		return err
	}
	s.records[id] = record.completed(resp, now.UTC(), ttlOrDefault(ttl))
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, documentID(key))
	s.mu.Unlock()
	return nil
}

// Sweep removes records expired at now and returns how many it dropped.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.records)
	for id, record := range s.records {
		if !record.live(now) {
			delete(s.records, id)
		}
	}
	return before - len(s.records)
}
