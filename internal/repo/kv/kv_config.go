package kv

import (
	"context"
	"fmt"
)

// Supported StoreConfig.Driver values.
const (
	DriverMemory     = "memory"
	DriverSQLite     = "sqlite"
	DriverRedis      = "redis"
	DriverFileSystem = "filesystem"
)

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver     string                `env:"DRIVER" default:"sqlite"`
	SQLite     SQLiteStoreConfig     `envPrefix:"SQLITE_"`
	Redis      RedisStoreConfig      `envPrefix:"REDIS_"`
	FileSystem FileSystemStoreConfig `envPrefix:"FS_"`
}

// Factory returns the StoreFactory for the configured driver.
func (cfg StoreConfig) Factory() (StoreFactory, error) {
	switch cfg.Driver {
	case DriverMemory:
		return func(context.Context) (Store, error) { return NewMemoryStore(), nil }, nil
	case DriverSQLite:
		return SQLiteStoreFactory(cfg.SQLite), nil
	case DriverRedis:
		return RedisStoreFactory(cfg.Redis), nil
	case DriverFileSystem:
		return FileSystemStoreFactory(cfg.FileSystem), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Open creates the configured store and wraps it in an Adapter.
func Open(ctx context.Context, cfg StoreConfig) (*Adapter, error) {
	factory, err := cfg.Factory()
	if err != nil {
		return nil, err
	}

	store, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	return NewAdapter(store), nil
}
