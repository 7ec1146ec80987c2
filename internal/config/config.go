package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
)

type Config struct {
	Datadir         string
	Port            uint32
	LogLevel        int
	NoCORS          bool
	DbMigrationPath string

	DbType      string
	EventDbType string
	DbDir       string
	EventDbDir  string

	MonitorInterval    int64
	PaymentAddr        string
	PaymentTimeout     time.Duration
	MaxTriggerAttempts uint32

	Network         string
	StrictAddresses bool
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Datadir            = "DATADIR"
	Port               = "PORT"
	LogLevel           = "LOG_LEVEL"
	NoCORS             = "NO_CORS"
	DbType             = "DB_TYPE"
	EventDbType        = "EVENT_DB_TYPE"
	DbMigrationPath    = "DB_MIGRATION_PATH"
	MonitorInterval    = "MONITOR_INTERVAL"
	PaymentAddr        = "PAYMENT_ADDR"
	PaymentTimeout     = "PAYMENT_TIMEOUT"
	MaxTriggerAttempts = "MAX_TRIGGER_ATTEMPTS"
	Network            = "NETWORK"
	StrictAddresses    = "STRICT_ADDRESSES"

	defaultDatadir         = btcutil.AppDataDir("vigild", false)
	DefaultPort            = 7070
	defaultLogLevel        = 4
	defaultDbType          = "sqlite"
	defaultEventDbType     = "badger"
	defaultMonitorInterval = 60
	defaultPaymentTimeout  = 30 * time.Second
	defaultNetwork         = "mainnet"
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("VIGIL")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(Port, DefaultPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(EventDbType, defaultEventDbType)
	viper.SetDefault(MonitorInterval, defaultMonitorInterval)
	viper.SetDefault(PaymentTimeout, defaultPaymentTimeout)
	viper.SetDefault(Network, defaultNetwork)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	dbPath := filepath.Join(viper.GetString(Datadir), "db")

	return &Config{
		Datadir:            viper.GetString(Datadir),
		Port:               viper.GetUint32(Port),
		LogLevel:           viper.GetInt(LogLevel),
		NoCORS:             viper.GetBool(NoCORS),
		DbType:             viper.GetString(DbType),
		EventDbType:        viper.GetString(EventDbType),
		DbDir:              dbPath,
		EventDbDir:         dbPath,
		DbMigrationPath:    viper.GetString(DbMigrationPath),
		MonitorInterval:    viper.GetInt64(MonitorInterval),
		PaymentAddr:        viper.GetString(PaymentAddr),
		PaymentTimeout:     viper.GetDuration(PaymentTimeout),
		MaxTriggerAttempts: uint32(viper.GetUint(MaxTriggerAttempts)),
		Network:            viper.GetString(Network),
		StrictAddresses:    viper.GetBool(StrictAddresses),
	}, nil
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
