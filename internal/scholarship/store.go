package scholarship

import (
	"errors"
	"sync/atomic"
)

// ErrNotFound is returned by Store.Get for unknown IDs.
var ErrNotFound = errors.New("scholarship not found")

// Store serves listings loaded from a JSON file and swaps them atomically
// on Reload.
type Store struct {
	path string
	list atomic.Pointer[[]Scholarship]
}

// NewStore loads path. A missing file is an error.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore serves a fixed list.
func NewStaticStore(list []Scholarship) *Store {
	s := &Store{}
	s.list.Store(&list)
	return s
}

// Reload re-reads the backing file. On failure the previous listings stay.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	list, err := Load(s.path)
	if err != nil {
		return err
	}
	s.list.Store(&list)
	return nil
}

// All returns every listing. The slice must not be modified.
func (s *Store) All() []Scholarship {
	return *s.list.Load()
}

// List returns the listings matching f.
func (s *Store) List(f Filter) []Scholarship {
	return Query(s.All(), f)
}

// Get returns the listing with id.
func (s *Store) Get(id string) (Scholarship, error) {
	for _, sc := range s.All() {
		if sc.ID == id {
			return sc, nil
		}
	}
	return Scholarship{}, ErrNotFound
}
