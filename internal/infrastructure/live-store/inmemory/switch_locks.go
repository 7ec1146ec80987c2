package inmemorylivestore

import (
	"sync"

	"github.com/vigil-btc/vigild/internal/core/ports"
)

// switchLockStore hands out one mutex per switch id. Entries are reference
// counted and dropped once the last holder releases, so the map does not
// grow with the number of switches ever touched.
type switchLockStore struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSwitchLockStore() ports.SwitchLockStore {
	return &switchLockStore{
		locks: make(map[string]*lockEntry),
	}
}

func (s *switchLockStore) Lock(id string) func() {
	s.mu.Lock()
	entry, ok := s.locks[id]
	if !ok {
		entry = &lockEntry{}
		s.locks[id] = entry
	}
	entry.refs++
	s.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		s.mu.Lock()
		entry.refs--
		if entry.refs <= 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}
