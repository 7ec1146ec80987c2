package appconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/vigil-btc/vigild/internal/core/application"
	"github.com/vigil-btc/vigild/internal/core/domain"
	"github.com/vigil-btc/vigild/internal/core/ports"
	"github.com/vigil-btc/vigild/internal/infrastructure/db"
	inmemorylivestore "github.com/vigil-btc/vigild/internal/infrastructure/live-store/inmemory"
	httppayment "github.com/vigil-btc/vigild/internal/infrastructure/payment/http"
	timescheduler "github.com/vigil-btc/vigild/internal/infrastructure/scheduler/gocron"
)

var (
	supportedEventDbs = supportedType{
		"badger": {},
	}
	supportedDbs = supportedType{
		"badger": {},
		"sqlite": {},
	}
	supportedNetworks = supportedType{
		"mainnet": {},
		"testnet": {},
		"regtest": {},
	}
)

type Config struct {
	DbType          string
	EventDbType     string
	DbDir           string
	EventDbDir      string
	DbMigrationPath string

	MonitorInterval    int64
	PaymentAddr        string
	PaymentTimeout     time.Duration
	MaxTriggerAttempts uint32

	Network         string
	StrictAddresses bool

	repo       ports.RepoManager
	svc        application.Service
	scheduler  ports.SchedulerService
	liveStore  ports.LiveStore
	paymentSvc ports.PaymentService
}

func (c *Config) Validate() error {
	if !supportedEventDbs.supports(c.EventDbType) {
		return fmt.Errorf("event db type not supported, please select one of: %s", supportedEventDbs)
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedNetworks.supports(c.Network) {
		return fmt.Errorf("network not supported, please select one of: %s", supportedNetworks)
	}
	if c.MonitorInterval < 1 {
		return fmt.Errorf("invalid monitor interval, must be at least 1 second")
	}
	if c.PaymentTimeout < time.Second {
		return fmt.Errorf("invalid payment timeout, must be at least 1 second")
	}
	if len(c.PaymentAddr) <= 0 {
		return fmt.Errorf("missing payment subsystem address")
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.liveStoreService(); err != nil {
		return err
	}
	if err := c.paymentService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) addressPolicy() domain.AddressPolicy {
	return domain.AddressPolicy{
		Strict:  c.StrictAddresses,
		Network: c.Network,
	}
}

func (c *Config) repoManager() error {
	var eventStoreConfig []interface{}
	var dataStoreConfig []interface{}

	switch c.EventDbType {
	case "badger":
		eventStoreConfig = []interface{}{c.EventDbDir, nil}
	default:
		return fmt.Errorf("unknown event db type")
	}

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, nil}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err := db.NewService(db.ServiceConfig{
		EventStoreType:   c.EventDbType,
		DataStoreType:    c.DbType,
		EventStoreConfig: eventStoreConfig,
		DataStoreConfig:  dataStoreConfig,
		DbMigrationPath:  c.DbMigrationPath,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) schedulerService() error {
	c.scheduler = timescheduler.NewScheduler()
	return nil
}

func (c *Config) liveStoreService() error {
	c.liveStore = inmemorylivestore.NewLiveStore()
	return nil
}

func (c *Config) paymentService() error {
	svc, err := httppayment.NewService(c.PaymentAddr, c.addressPolicy())
	if err != nil {
		return fmt.Errorf("failed to connect to payment subsystem: %s", err)
	}
	c.paymentSvc = svc
	return nil
}

func (c *Config) appService() error {
	svc, err := application.NewService(
		c.repo, c.scheduler, c.liveStore, c.paymentSvc,
		c.addressPolicy(), c.MonitorInterval, c.PaymentTimeout, c.MaxTriggerAttempts,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
