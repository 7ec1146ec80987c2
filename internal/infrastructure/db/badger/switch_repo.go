package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vigil-btc/vigild/internal/core/domain"
)

const switchStoreDir = "switches"

type switchRepository struct {
	store *badgerhold.Store
}

func NewSwitchRepository(config ...interface{}) (domain.SwitchRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, switchStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open switch store: %s", err)
	}

	return &switchRepository{store}, nil
}

func (r *switchRepository) AddOrUpdateSwitch(
	_ context.Context, sw domain.Switch,
) error {
	return r.store.Upsert(sw.Id, sw)
}

func (r *switchRepository) GetSwitchWithId(
	ctx context.Context, id string,
) (*domain.Switch, error) {
	query := badgerhold.Where("Id").Eq(id)
	switches, err := r.findSwitch(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(switches) <= 0 {
		return nil, fmt.Errorf("switch with id %s not found", id)
	}
	sw := &switches[0]
	return sw, nil
}

func (r *switchRepository) GetSwitchesForOwner(
	ctx context.Context, owner string,
) ([]domain.Switch, error) {
	query := badgerhold.Where("Owner").Eq(owner).SortBy("CreatedAt")
	return r.findSwitch(ctx, query)
}

func (r *switchRepository) GetExpiredSwitchIds(
	ctx context.Context, now int64,
) ([]string, error) {
	// the deadline is a derived value, filter active switches in memory
	query := badgerhold.Where("Status").Eq(domain.StatusActive)
	switches, err := r.findSwitch(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(switches))
	for _, sw := range switches {
		if now >= sw.Deadline() {
			ids = append(ids, sw.Id)
		}
	}
	return ids, nil
}

func (r *switchRepository) GetAllActiveSwitchIds(
	ctx context.Context,
) ([]string, error) {
	query := badgerhold.Where("Status").Eq(domain.StatusActive)
	switches, err := r.findSwitch(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(switches))
	for _, sw := range switches {
		ids = append(ids, sw.Id)
	}
	return ids, nil
}

func (r *switchRepository) GetPendingSwitchIds(
	ctx context.Context,
) ([]string, error) {
	query := badgerhold.Where("Status").Eq(domain.StatusPending)
	switches, err := r.findSwitch(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(switches))
	for _, sw := range switches {
		ids = append(ids, sw.Id)
	}
	return ids, nil
}

func (r *switchRepository) Close() {
	// nolint:errcheck
	r.store.Close()
}

func (r *switchRepository) findSwitch(
	_ context.Context, query *badgerhold.Query,
) ([]domain.Switch, error) {
	var switches []domain.Switch
	err := r.store.Find(&switches, query)
	return switches, err
}
