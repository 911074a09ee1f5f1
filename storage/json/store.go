// Package storejson persists a single JSON document guarded by a
// cross-process lock.
package storejson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/projecteru2/podfleet/lock"
	"github.com/projecteru2/podfleet/utils"
)

// Initer is implemented by documents that need defaults (e.g. non-nil maps)
// after loading.
type Initer interface {
	Init()
}

// Store is a JSON file holding one T.
type Store[T any] struct {
	path   string
	locker lock.Locker
}

// New creates a Store for path, serialized by locker.
func New[T any](path string, locker lock.Locker) *Store[T] {
	return &Store[T]{path: path, locker: locker}
}

// Path returns the document path.
func (s *Store[T]) Path() string { return s.path }

// With loads the document under the lock and passes it to fn. A missing file
// yields a zero document. The lock is held for the duration of fn.
func (s *Store[T]) With(ctx context.Context, fn func(*T) error) error {
	return lock.WithLock(ctx, s.locker, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		return fn(doc)
	})
}

// Update performs a read-modify-write under the lock. If fn returns nil the
// document is written back atomically.
func (s *Store[T]) Update(ctx context.Context, fn func(*T) error) error {
	return s.With(ctx, func(doc *T) error {
		if err := fn(doc); err != nil {
			return err
		}
		return utils.AtomicWriteJSON(s.path, doc)
	})
}

func (s *Store[T]) load() (*T, error) {
	doc := new(T)
	data, err := os.ReadFile(s.path) //nolint:gosec
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	default:
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.path, err)
		}
	}
	if i, ok := any(doc).(Initer); ok {
		i.Init()
	}
	return doc, nil
}
