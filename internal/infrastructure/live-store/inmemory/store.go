package inmemorylivestore

import (
	"github.com/vigil-btc/vigild/internal/core/ports"
)

func NewLiveStore() ports.LiveStore {
	return &inMemoryLiveStore{
		switchLocks: newSwitchLockStore(),
	}
}

type inMemoryLiveStore struct {
	switchLocks ports.SwitchLockStore
}

func (s *inMemoryLiveStore) SwitchLocks() ports.SwitchLockStore { return s.switchLocks }
