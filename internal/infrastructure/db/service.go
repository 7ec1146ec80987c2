package db

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/vigil-btc/vigild/internal/core/domain"
	"github.com/vigil-btc/vigild/internal/core/ports"
	badgerdb "github.com/vigil-btc/vigild/internal/infrastructure/db/badger"
	sqlitedb "github.com/vigil-btc/vigild/internal/infrastructure/db/sqlite"
)

var (
	eventStoreTypes = map[string]func(...interface{}) (domain.SwitchEventRepository, error){
		"badger": badgerdb.NewSwitchEventRepository,
	}
	switchStoreTypes = map[string]func(...interface{}) (domain.SwitchRepository, error){
		"badger": badgerdb.NewSwitchRepository,
		"sqlite": sqlitedb.NewSwitchRepository,
	}
)

const (
	sqliteDbFile         = "sqlite.db"
	defaultMigrationPath = "file://internal/infrastructure/db/sqlite/migration"
)

type ServiceConfig struct {
	EventStoreType string
	DataStoreType  string

	EventStoreConfig []interface{}
	DataStoreConfig  []interface{}

	DbMigrationPath string
}

type service struct {
	eventStore  domain.SwitchEventRepository
	switchStore domain.SwitchRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	eventStoreFactory, ok := eventStoreTypes[config.EventStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid event store type: %s", config.EventStoreType)
	}

	switchStoreFactory, ok := switchStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	eventStore, err := eventStoreFactory(config.EventStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create event store: %w", err)
	}

	if config.DataStoreType == "sqlite" {
		if err := migrateSqlite(config.DataStoreConfig, config.DbMigrationPath); err != nil {
			return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
		}
	}

	switchStore, err := switchStoreFactory(config.DataStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create switch store: %w", err)
	}

	return &service{
		eventStore:  eventStore,
		switchStore: switchStore,
	}, nil
}

func (s *service) RegisterEventsHandler(handler func(sw *domain.Switch)) {
	s.eventStore.RegisterEventsHandler(handler)
}

func (s *service) Events() domain.SwitchEventRepository {
	return s.eventStore
}

func (s *service) Switches() domain.SwitchRepository {
	return s.switchStore
}

func (s *service) Close() {
	s.eventStore.Close()
	s.switchStore.Close()
}

func migrateSqlite(config []interface{}, migrationPath string) error {
	if len(config) != 1 {
		return errors.New("invalid config")
	}

	baseDir, ok := config[0].(string)
	if !ok {
		return errors.New("invalid config")
	}

	if len(migrationPath) <= 0 {
		migrationPath = defaultMigrationPath
	}

	db, err := sqlitedb.OpenDb(filepath.Join(baseDir, sqliteDbFile))
	if err != nil {
		return fmt.Errorf("failed to open sqlite db: %w", err)
	}
	defer db.Close()

	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(migrationPath, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate up: %w", err)
	}

	return nil
}
