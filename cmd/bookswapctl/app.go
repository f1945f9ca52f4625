package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	bookswap "github.com/goliatone/go-bookswap"
	"github.com/goliatone/go-bookswap/core"
	bookswapmigrations "github.com/goliatone/go-bookswap/migrations"
	sqlstore "github.com/goliatone/go-bookswap/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	jsoniter "github.com/json-iterator/go"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type globalOptions struct {
	driver      string
	dsn         string
	configPath  string
	userID      int64
	autoMigrate bool
	verbose     bool
}

type persistenceConfig struct {
	driver string
	server string
}

func (c persistenceConfig) GetDebug() bool                { return false }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "bookswapctl" }

// app is the per-invocation wiring: database, stores, service and facade.
type app struct {
	client  *persistence.Client
	factory *sqlstore.RepositoryFactory
	service *core.Service
	facade  *bookswap.Facade
	logger  core.Logger
	config  core.Config
}

func openApp(ctx context.Context, opts globalOptions, migrate bool) (*app, error) {
	dialectName, err := bookswapmigrations.DialectForDriver(opts.driver)
	if err != nil {
		return nil, err
	}
	dsn := strings.TrimSpace(opts.dsn)
	if dsn == "" {
		return nil, fmt.Errorf("bookswapctl: --dsn is required")
	}

	sqlDB, err := sql.Open(opts.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("bookswapctl: open database: %w", err)
	}
	client, err := newPersistenceClient(persistenceConfig{driver: opts.driver, server: dsn}, sqlDB, dialectName)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bookswapctl: persistence client: %w", err)
	}
	closeOnErr := func(err error) (*app, error) {
		_ = client.Close()
		return nil, err
	}

	if _, err := bookswapmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect == dialectName {
			client.RegisterSQLMigrations(fsys)
		}
		return nil
	}, bookswapmigrations.WithValidationTargets(dialectName)); err != nil {
		return closeOnErr(fmt.Errorf("bookswapctl: register migrations: %w", err))
	}
	if migrate {
		if err := client.Migrate(ctx); err != nil {
			return closeOnErr(fmt.Errorf("bookswapctl: migrate: %w", err))
		}
	}

	logger := newCLILogger(os.Stderr, opts.verbose)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithTxLogger(logger))
	if err != nil {
		return closeOnErr(err)
	}

	serviceOpts := []core.Option{
		core.WithLogger(logger),
		core.WithTransactor(factory.Transactor()),
	}
	loader := core.StaticConfigLoader{}
	if path := strings.TrimSpace(opts.configPath); path != "" {
		raw, err := loadRawConfig(path)
		if err != nil {
			return closeOnErr(err)
		}
		loader.Values = raw
	}
	provider := core.NewCfgxConfigProvider(loader)
	serviceOpts = append(serviceOpts, core.WithConfigProvider(provider))

	resolved, err := resolveConfig(ctx, provider)
	if err != nil {
		return closeOnErr(err)
	}
	cache, err := sqlstore.NewDefaultReputationCache(resolved.Reputation)
	if err != nil {
		return closeOnErr(err)
	}
	service, err := core.NewService(core.Config{}, append(serviceOpts, core.WithReputationCache(cache))...)
	if err != nil {
		return closeOnErr(err)
	}
	facade, err := bookswap.NewFacade(service)
	if err != nil {
		return closeOnErr(err)
	}

	return &app{
		client:  client,
		factory: factory,
		service: service,
		facade:  facade,
		logger:  logger,
		config:  service.Config(),
	}, nil
}

func (a *app) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}

func newPersistenceClient(cfg persistenceConfig, sqlDB *sql.DB, dialectName string) (*persistence.Client, error) {
	if dialectName == bookswapmigrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
		return persistence.New(cfg, sqlDB, sqlitedialect.New())
	}
	return persistence.New(cfg, sqlDB, pgdialect.New())
}

// resolveConfig layers defaults < config file the same way the service does,
// so components built before the service see the same values.
func resolveConfig(ctx context.Context, provider core.ConfigProvider) (core.Config, error) {
	defaults := core.DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return core.Config{}, err
	}
	return core.GoOptionsResolver{}.Resolve(defaults, loaded, core.Config{})
}

func loadRawConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bookswapctl: read config: %w", err)
	}
	raw := map[string]any{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("bookswapctl: parse config %s: %w", path, err)
	}
	return raw, nil
}
