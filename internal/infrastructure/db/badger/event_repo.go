package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vigil-btc/vigild/internal/core/domain"
)

const eventStoreDir = "switch-events"

type eventRepository struct {
	store   *badgerhold.Store
	lock    *sync.Mutex
	handler func(sw *domain.Switch)
}

func NewSwitchEventRepository(config ...interface{}) (domain.SwitchEventRepository, error) {
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
		dir = filepath.Join(baseDir, eventStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open switch events store: %s", err)
	}

	return &eventRepository{
		store: store,
		lock:  &sync.Mutex{},
	}, nil
}

// Save appends the given events and invokes the registered handler with
// the resulting state before returning, so that projections observe their
// own writes.
func (r *eventRepository) Save(
	ctx context.Context, id string, events ...domain.SwitchEvent,
) (*domain.Switch, error) {
	allEvents, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	allEvents = append(allEvents, events...)
	if err := r.upsert(ctx, id, allEvents); err != nil {
		return nil, err
	}

	sw := domain.NewSwitchFromEvents(allEvents)
	r.runHandler(sw)
	return sw, nil
}

func (r *eventRepository) Load(
	ctx context.Context, id string,
) (*domain.Switch, error) {
	events, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(events) <= 0 {
		return nil, nil
	}
	return domain.NewSwitchFromEvents(events), nil
}

func (r *eventRepository) RegisterEventsHandler(
	handler func(sw *domain.Switch),
) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.handler = handler
}

func (r *eventRepository) Close() {
	// nolint:errcheck
	r.store.Close()
}

func (r *eventRepository) get(
	_ context.Context, id string,
) ([]domain.SwitchEvent, error) {
	dto := eventsDTO{}
	if err := r.store.Get(id, &dto); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get events with id %s: %s", id, err)
	}

	return deserializeEvents(dto.Events)
}

func (r *eventRepository) upsert(
	_ context.Context, id string, events []domain.SwitchEvent,
) error {
	buf, err := serializeEvents(events)
	if err != nil {
		return err
	}
	if err := r.store.Upsert(id, *buf); err != nil {
		return fmt.Errorf("failed to upsert events with id %s: %s", id, err)
	}
	return nil
}

func (r *eventRepository) runHandler(sw *domain.Switch) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.handler == nil {
		return
	}
	r.handler(sw)
}
