// Package firestoretest provides an in-memory stand-in for the remote
// document store, for tests.
package firestoretest

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"earningbot/internal/firestore"
)

// Store keeps documents in memory and mimics the client's semantics:
// ErrNotFound for absent documents, full replace on Set, field merge on
// Patch, create-only on Create.
type Store struct {
	mu   sync.Mutex
	docs map[string]map[string]map[string]firestore.Value

	// FailWith, when set, is returned by every operation.
	FailWith error

	// GetCalls counts Get invocations, for cache tests.
	GetCalls int
}

func New() *Store {
	return &Store{docs: make(map[string]map[string]map[string]firestore.Value)}
}

func (s *Store) collection(name string) map[string]map[string]firestore.Value {
	c, ok := s.docs[name]
	if !ok {
		c = make(map[string]map[string]firestore.Value)
		s.docs[name] = c
	}
	return c
}

func clone(fields map[string]firestore.Value) map[string]firestore.Value {
	out := make(map[string]firestore.Value, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (s *Store) Get(ctx context.Context, collection, id string) (map[string]firestore.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls++
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	doc, ok := s.collection(collection)[id]
	if !ok {
		return nil, firestore.ErrNotFound
	}
	return clone(doc), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]firestore.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.collection(collection)[id] = clone(fields)
	return nil
}

func (s *Store) Patch(ctx context.Context, collection, id string, fields map[string]firestore.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	c := s.collection(collection)
	doc, ok := c[id]
	if !ok {
		doc = make(map[string]firestore.Value)
		c[id] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (s *Store) Create(ctx context.Context, collection, id string, fields map[string]firestore.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	c := s.collection(collection)
	if _, exists := c[id]; exists {
		return errors.New("firestoretest: document already exists")
	}
	c[id] = clone(fields)
	return nil
}

func (s *Store) QueryEquals(ctx context.Context, collection, field string, value firestore.Value) ([]map[string]firestore.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	var out []map[string]firestore.Value
	for _, doc := range s.collection(collection) {
		if v, ok := doc[field]; ok && reflect.DeepEqual(v, value) {
			out = append(out, clone(doc))
		}
	}
	return out, nil
}

// Doc returns a stored document directly, for assertions.
func (s *Store) Doc(collection, id string) (map[string]firestore.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collection(collection)[id]
	if !ok {
		return nil, false
	}
	return clone(doc), true
}

// Count returns how many documents a collection holds.
func (s *Store) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collection(collection))
}
