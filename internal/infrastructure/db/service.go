package db

import (
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cityofzion/faucetd/internal/core/domain"
	"github.com/cityofzion/faucetd/internal/core/ports"
	badgerdb "github.com/cityofzion/faucetd/internal/infrastructure/db/badger"
	pgdb "github.com/cityofzion/faucetd/internal/infrastructure/db/postgres"
	sqlitedb "github.com/cityofzion/faucetd/internal/infrastructure/db/sqlite"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sqlite/migration/*
var migrations embed.FS

//go:embed postgres/migration/*
var pgMigrations embed.FS

var (
	addressClaimStoreTypes = map[string]func(...interface{}) (domain.AddressClaimRepository, error){
		"badger":   badgerdb.NewAddressClaimRepository,
		"sqlite":   sqlitedb.NewAddressClaimRepository,
		"postgres": pgdb.NewAddressClaimRepository,
	}
	clientAttemptStoreTypes = map[string]func(...interface{}) (domain.ClientAttemptRepository, error){
		"badger":   badgerdb.NewClientAttemptRepository,
		"sqlite":   sqlitedb.NewClientAttemptRepository,
		"postgres": pgdb.NewClientAttemptRepository,
	}
)

const sqliteDbFile = "sqlite.db"

type ServiceConfig struct {
	DataStoreType   string
	DataStoreConfig []interface{}
}

type service struct {
	addressClaimStore  domain.AddressClaimRepository
	clientAttemptStore domain.ClientAttemptRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	addressClaimStoreFactory, ok := addressClaimStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}
	clientAttemptStoreFactory, ok := clientAttemptStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	var addressClaimStore domain.AddressClaimRepository
	var clientAttemptStore domain.ClientAttemptRepository
	var err error

	switch config.DataStoreType {
	case "badger":
		addressClaimStore, err = addressClaimStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open address claim store: %s", err)
		}
		clientAttemptStore, err = clientAttemptStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open client attempt store: %s", err)
		}

	case "sqlite":
		if len(config.DataStoreConfig) != 1 {
			return nil, fmt.Errorf("invalid data store config")
		}

		baseDir, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}

		dbFile := filepath.Join(baseDir, sqliteDbFile)
		db, err := sqlitedb.OpenDb(dbFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %s", err)
		}

		driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init driver: %s", err)
		}

		source, err := iofs.New(migrations, "sqlite/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed migrations: %s", err)
		}

		m, err := migrate.NewWithInstance("iofs", source, "faucetdb", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %s", err)
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to run migrations: %s", err)
		}

		addressClaimStore, err = addressClaimStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open address claim store: %s", err)
		}
		clientAttemptStore, err = clientAttemptStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open client attempt store: %s", err)
		}

	case "postgres":
		if len(config.DataStoreConfig) != 2 {
			return nil, fmt.Errorf("invalid data store config for postgres")
		}

		dsn, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid DSN for postgres")
		}

		autoCreate, ok := config.DataStoreConfig[1].(bool)
		if !ok {
			return nil, fmt.Errorf("invalid autocreate flag for postgres")
		}

		db, err := pgdb.OpenDb(dsn, autoCreate)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres db: %s", err)
		}

		pgDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres migration driver: %s", err)
		}

		source, err := iofs.New(pgMigrations, "postgres/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed postgres migrations: %s", err)
		}

		m, err := migrate.NewWithInstance("iofs", source, "postgres", pgDriver)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres migration instance: %s", err)
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to run postgres migrations: %s", err)
		}

		addressClaimStore, err = addressClaimStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open address claim store: %s", err)
		}
		clientAttemptStore, err = clientAttemptStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open client attempt store: %s", err)
		}

	default:
		return nil, fmt.Errorf("unknown data store db type")
	}

	return &service{
		addressClaimStore:  addressClaimStore,
		clientAttemptStore: clientAttemptStore,
	}, nil
}

func (s *service) AddressClaims() domain.AddressClaimRepository {
	return s.addressClaimStore
}

func (s *service) ClientAttempts() domain.ClientAttemptRepository {
	return s.clientAttemptStore
}

func (s *service) Close() {
	s.addressClaimStore.Close()
	s.clientAttemptStore.Close()
}
