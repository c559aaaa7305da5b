// Package cache holds short-lived read models keyed by resource and parameters.
package cache

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Key joins a resource name and its parameters, e.g. "monthlyBudget/2024/3".
func Key(resource string, params ...any) string {
	if len(params) == 0 {
		return resource
	}
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, resource)
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, "/")
}

// Store is an LRUCache addressed by (resource, params). Invalidation is
// explicit: writers drop the keys their change affects.
type Store[T any] struct {
	lru *LRUCache[T]
}

func NewStore[T any](maxSize int, ttl time.Duration) *Store[T] {
	return &Store[T]{lru: NewLRUCache[T](maxSize, ttl)}
}

func (s *Store[T]) Get(resource string, params ...any) (T, bool) {
	return s.lru.Get(Key(resource, params...))
}

func (s *Store[T]) Set(value T, resource string, params ...any) {
	s.lru.Set(Key(resource, params...), value)
}

// Invalidate drops a single (resource, params) entry.
func (s *Store[T]) Invalidate(resource string, params ...any) {
	s.lru.Delete(Key(resource, params...))
}

// InvalidateResource drops every entry of the resource regardless of params.
func (s *Store[T]) InvalidateResource(resource string) int {
	s.lru.Delete(resource)
	return s.lru.DeletePrefix(resource + "/")
}

// InvalidateMatching drops entries of resource whose params satisfy match.
// Params arrive as the strings they were keyed with.
func (s *Store[T]) InvalidateMatching(resource string, match func(params []string) bool) int {
	prefix := resource + "/"
	return s.lru.DeleteFunc(func(key string) bool {
		rest, ok := strings.CutPrefix(key, prefix)
		return ok && match(strings.Split(rest, "/"))
	})
}

func (s *Store[T]) CleanExpired() int { return s.lru.CleanExpired() }
func (s *Store[T]) Size() int         { return s.lru.Size() }

// Manager periodically sweeps expired entries from registered caches.
type Manager struct {
	caches      []Cleaner
	logger      *slog.Logger
	started     bool
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

type Cleaner interface {
	CleanExpired() int
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:      logger,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "count", n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Sweep cleans every registered cache once.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop ends the cleanup goroutine started by StartCleanup.
func (m *Manager) Stop() {
	if !m.started {
		return
	}
	select {
	case <-m.stopCleanup:
		return
	default:
	}
	close(m.stopCleanup)
	<-m.cleanupDone
}
