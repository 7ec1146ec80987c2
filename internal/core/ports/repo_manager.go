package ports

import "github.com/vigil-btc/vigild/internal/core/domain"

type RepoManager interface {
	Events() domain.SwitchEventRepository
	Switches() domain.SwitchRepository
	RegisterEventsHandler(func(*domain.Switch))
	Close()
}
