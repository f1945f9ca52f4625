package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-bookswap/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory owns the shared repositories and hands out a Transactor
// whose Stores are bound to each transaction.
type RepositoryFactory struct {
	db *bun.DB

	matchRepo    repository.Repository[*matchRecord]
	exchangeRepo repository.Repository[*exchangeRecord]
	outboxStore  *OutboxStore
	transactor   *Transactor
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...TransactorOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client, opts...); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...TransactorOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db, opts...); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB, such as a
// go-persistence-bun client.
func (f *RepositoryFactory) BuildStores(persistenceClient any, opts ...TransactorOption) (*RepositoryFactory, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.transactor != nil {
		return f, nil
	}
	if err := f.initStores(opts...); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) Transactor() *Transactor {
	if f == nil {
		return nil
	}
	return f.transactor
}

// OutboxStore is the unbound outbox used by the dispatcher.
func (f *RepositoryFactory) OutboxStore() *OutboxStore {
	if f == nil {
		return nil
	}
	return f.outboxStore
}

func (f *RepositoryFactory) initStores(opts ...TransactorOption) error {
	matchRepo := repository.NewRepository[*matchRecord](f.db, matchHandlers())
	if validator, ok := matchRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid match repository wiring: %w", err)
		}
	}

	exchangeRepo := repository.NewRepository[*exchangeRecord](f.db, exchangeHandlers())
	if validator, ok := exchangeRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid exchange repository wiring: %w", err)
		}
	}

	outboxStore, err := NewOutboxStore(f.db)
	if err != nil {
		return err
	}

	f.matchRepo = matchRepo
	f.exchangeRepo = exchangeRepo
	f.outboxStore = outboxStore
	f.transactor = newTransactor(f, opts...)
	return nil
}

func (f *RepositoryFactory) storesFor(tx bun.Tx) core.Stores {
	return &txStores{
		users:     &UserStore{tx: tx},
		books:     &BookStore{tx: tx},
		matches:   &MatchStore{tx: tx, repo: f.matchRepo},
		exchanges: &ExchangeStore{tx: tx, repo: f.exchangeRepo},
		ratings:   &RatingStore{tx: tx},
		outbox:    f.outboxStore.bind(tx),
	}
}

type txStores struct {
	users     *UserStore
	books     *BookStore
	matches   *MatchStore
	exchanges *ExchangeStore
	ratings   *RatingStore
	outbox    *OutboxStore
}

func (s *txStores) Users() core.UserStore         { return s.users }
func (s *txStores) Books() core.BookStore         { return s.books }
func (s *txStores) Matches() core.MatchStore      { return s.matches }
func (s *txStores) Exchanges() core.ExchangeStore { return s.exchanges }
func (s *txStores) Ratings() core.RatingStore     { return s.ratings }
func (s *txStores) Outbox() core.OutboxStore      { return s.outbox }

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
