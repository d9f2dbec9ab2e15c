// Package kv is an in-memory stand-in for a shared cache such as Redis.
// It backs the duel lobby until a real backend exists.
package kv

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const subscriberBuffer = 64

type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store holds string values keyed by string. Keys written with a TTL read
// as absent once the TTL has elapsed on the store's clock.
type Store struct {
	mu          sync.Mutex
	data        map[string]entry
	subscribers map[string]map[*Subscription]struct{}
	clock       clockwork.Clock
}

func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		data:        make(map[string]entry),
		subscribers: make(map[string]map[*Subscription]struct{}),
		clock:       clock,
	}
}

// Set stores value under key. A zero ttl keeps the key until it is deleted.
func (s *Store) Set(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.clock.Now().Add(ttl)
	}
	s.data[key] = e
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key)
}

func (s *Store) getLocked(key string) (string, bool) {
	e, ok := s.data[key]
	if !ok {
		return "", false
	}
	if e.expired(s.clock.Now()) {
		delete(s.data, key)
		return "", false
	}
	return e.value, true
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

func (s *Store) Exists(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Expire sets a TTL on an existing key. It reports whether the key existed.
func (s *Store) Expire(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.getLocked(key); !ok {
		return false
	}
	e := s.data[key]
	e.expiresAt = s.clock.Now().Add(ttl)
	s.data[key] = e
	return true
}

// PurgeExpired drops every expired key and returns how many were removed.
func (s *Store) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for k, e := range s.data {
		if e.expired(now) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}

func hashKey(hash, field string) string {
	return hash + ":" + field
}

func (s *Store) HSet(hash, field, value string) {
	s.Set(hashKey(hash, field), value, 0)
}

func (s *Store) HGet(hash, field string) (string, bool) {
	return s.Get(hashKey(hash, field))
}

// HGetAll returns every field stored under hash. The result is empty, not nil,
// when the hash has no fields.
func (s *Store) HGetAll(hash string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := hash + ":"
	now := s.clock.Now()
	result := make(map[string]string)
	for k, e := range s.data {
		if !strings.HasPrefix(k, prefix) || e.expired(now) {
			continue
		}
		result[k[len(prefix):]] = e.value
	}
	return result
}

// ExpireHash sets a TTL on every field of hash.
func (s *Store) ExpireHash(hash string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := hash + ":"
	deadline := s.clock.Now().Add(ttl)
	for k, e := range s.data {
		if strings.HasPrefix(k, prefix) {
			e.expiresAt = deadline
			s.data[k] = e
		}
	}
}

func (s *Store) LPush(list string, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.listLocked(list)
	s.writeListLocked(list, append(append([]string{}, values...), existing...))
}

func (s *Store) RPush(list string, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.listLocked(list)
	s.writeListLocked(list, append(existing, values...))
}

// LRange returns elements start..stop inclusive. A stop of -1 means the end
// of the list.
func (s *Store) LRange(list string, start, stop int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.listLocked(list)
	if start < 0 {
		start = 0
	}
	end := stop + 1
	if stop == -1 || end > len(items) {
		end = len(items)
	}
	if start >= end {
		return []string{}
	}
	return append([]string{}, items[start:end]...)
}

// LRem removes every occurrence of value from list.
func (s *Store) LRem(list, value string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.listLocked(list)
	kept := items[:0]
	removed := 0
	for _, it := range items {
		if it == value {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	if removed > 0 {
		s.writeListLocked(list, kept)
	}
	return removed
}

func (s *Store) listLocked(list string) []string {
	raw, ok := s.getLocked(list)
	if !ok {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.Printf("kv: list %s is not a JSON array, treating as empty: %v", list, err)
		return nil
	}
	return items
}

func (s *Store) writeListLocked(list string, items []string) {
	data, err := json.Marshal(items)
	if err != nil {
		log.Printf("kv: failed to encode list %s: %v", list, err)
		return
	}
	e := s.data[list]
	e.value = string(data)
	s.data[list] = e
}
