// Package memory is a process-lifetime Store guarded by a mutex. Nothing
// survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Han1236/syuka-insight/internal/model"
	"github.com/Han1236/syuka-insight/internal/store"
)

type memStore struct {
	mu       sync.RWMutex
	sessions map[string][]model.Turn
	kbs      map[string]model.KnowledgeBase
	seq      map[string]int
	next     int
	now      func() time.Time
}

// New returns an empty in-memory store.
func New() store.Store {
	return &memStore{
		sessions: make(map[string][]model.Turn),
		kbs:      make(map[string]model.KnowledgeBase),
		seq:      make(map[string]int),
		now:      time.Now,
	}
}

func (s *memStore) Sessions() store.Sessions             { return (*sessions)(s) }
func (s *memStore) KnowledgeBases() store.KnowledgeBases { return (*registry)(s) }
func (s *memStore) Close() error                         { return nil }

type sessions memStore

func (s *sessions) Turns(_ context.Context, key string) ([]model.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.sessions[key]
	out := make([]model.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *sessions) AppendTurn(_ context.Context, key, human, assistant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = append(s.sessions[key], model.Pair(human, assistant, s.now().UTC())...)
	return nil
}

func (s *sessions) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

func (s *sessions) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[key]
	return ok, nil
}

type registry memStore

func (r *registry) Put(_ context.Context, kb *model.KnowledgeBase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.kbs[kb.VideoID]; ok {
		return store.ErrKBExists(kb.VideoID)
	}
	rec := *kb
	if rec.CreationTime.IsZero() {
		rec.CreationTime = r.now().UTC()
	}
	r.kbs[kb.VideoID] = rec
	r.seq[kb.VideoID] = r.next
	r.next++
	return nil
}

func (r *registry) Get(_ context.Context, videoID string) (*model.KnowledgeBase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kb, ok := r.kbs[videoID]
	if !ok {
		return nil, store.ErrKBNotFound(videoID)
	}
	return &kb, nil
}

func (r *registry) List(_ context.Context) ([]*model.KnowledgeBase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.KnowledgeBase, 0, len(r.kbs))
	for id := range r.kbs {
		kb := r.kbs[id]
		out = append(out, &kb)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreationTime.Equal(b.CreationTime) {
			return a.CreationTime.Before(b.CreationTime)
		}
		return r.seq[a.VideoID] < r.seq[b.VideoID]
	})
	return out, nil
}
