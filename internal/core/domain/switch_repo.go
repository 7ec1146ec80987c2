package domain

import (
	"context"
)

// SwitchEventRepository is the authoritative store: the aggregate is
// rebuilt by replaying its saved events. Load returns nil for an unknown id.
type SwitchEventRepository interface {
	Save(ctx context.Context, id string, events ...SwitchEvent) (*Switch, error)
	Load(ctx context.Context, id string) (*Switch, error)
	RegisterEventsHandler(func(*Switch))
	Close()
}

// SwitchRepository is the query projection kept up to date by the events
// handler.
type SwitchRepository interface {
	AddOrUpdateSwitch(ctx context.Context, sw Switch) error
	GetSwitchWithId(ctx context.Context, id string) (*Switch, error)
	GetSwitchesForOwner(ctx context.Context, owner string) ([]Switch, error)
	GetExpiredSwitchIds(ctx context.Context, now int64) ([]string, error)
	GetAllActiveSwitchIds(ctx context.Context) ([]string, error)
	GetPendingSwitchIds(ctx context.Context) ([]string, error)
	Close()
}
