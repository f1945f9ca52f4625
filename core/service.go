package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

var ErrTransactorRequired = errors.New("core: transactor is required")

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	transactor      Transactor
	reputationCache ReputationCache
	hooks           *LifecycleHookCoordinator
	matcher         ReciprocalMatcher
	reputation      ReputationUpdater
	clock           func() time.Time
	idGenerator     func() string
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Transactor      Transactor
	ReputationCache ReputationCache
	Hooks           *LifecycleHookCoordinator
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("bookswap", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if builder.logger != nil {
		logger = builder.logger
	} else if provider != nil {
		if named := provider.GetLogger("bookswap"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = defaultClock
	}
	if builder.idGenerator == nil {
		builder.idGenerator = newID
	}
	if builder.hooks == nil {
		builder.hooks = NewLifecycleHookCoordinator()
	}
	if builder.transactor == nil {
		return nil, mapBuildError(builder.errorMapper, ErrTransactorRequired)
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.reputationCache != nil {
		builder.hooks.RegisterPostCommit(reputationCacheHook{cache: builder.reputationCache})
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		transactor:      builder.transactor,
		reputationCache: builder.reputationCache,
		hooks:           builder.hooks,
		clock:           builder.clock,
		idGenerator:     builder.idGenerator,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		Transactor:      s.transactor,
		ReputationCache: s.reputationCache,
		Hooks:           s.hooks,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

func newID() string {
	return uuid.NewString()
}

// txScope is the per-attempt view of one transaction. Events are collected so
// post-commit hooks only see work that actually committed.
type txScope struct {
	service *Service
	stores  Stores
	events  []LifecycleEvent
}

func (s *Service) withinTx(ctx context.Context, fn func(ctx context.Context, tx *txScope) error) error {
	if s == nil || s.transactor == nil {
		return ErrTransactorRequired
	}
	var committed []LifecycleEvent
	err := s.transactor.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		scope := &txScope{service: s, stores: stores}
		if err := fn(ctx, scope); err != nil {
			return err
		}
		committed = scope.events
		return nil
	})
	if err != nil {
		return s.mapError(err)
	}
	for _, event := range committed {
		if hookErr := s.hooks.ExecutePostCommit(ctx, event); hookErr != nil {
			s.logError(ctx, "post-commit hooks failed", map[string]any{
				"event_id":   event.ID,
				"event_name": event.Name,
				"error":      hookErr.Error(),
			})
		}
	}
	return nil
}

func (tx *txScope) emit(ctx context.Context, event LifecycleEvent) error {
	if strings.TrimSpace(event.ID) == "" {
		event.ID = tx.service.idGenerator()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = tx.service.now()
	}
	event.Source = LifecycleEventSource
	event.Payload = copyAnyMap(event.Payload)
	event.Metadata = copyAnyMap(event.Metadata)
	if err := tx.service.hooks.ExecutePreCommitAndEnqueue(ctx, event, tx.stores.Outbox()); err != nil {
		return err
	}
	tx.events = append(tx.events, event)
	return nil
}

func (tx *txScope) user(ctx context.Context, id int64) (User, error) {
	user, err := tx.stores.Users().GetUser(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, NotFoundError("user", id)
	}
	return user, err
}

func (tx *txScope) book(ctx context.Context, id int64) (Book, error) {
	book, err := tx.stores.Books().GetBook(ctx, id)
	if errors.Is(err, ErrBookNotFound) {
		return Book{}, NotFoundError("book", id)
	}
	return book, err
}

func (tx *txScope) lockMatch(ctx context.Context, id string) (Match, error) {
	match, err := tx.stores.Matches().LockMatch(ctx, id)
	if errors.Is(err, ErrMatchNotFound) {
		return Match{}, NotFoundError("match", id)
	}
	return match, err
}

func (tx *txScope) lockExchange(ctx context.Context, id string) (Exchange, error) {
	exchange, err := tx.stores.Exchanges().LockExchange(ctx, id)
	if errors.Is(err, ErrExchangeNotFound) {
		return Exchange{}, NotFoundError("exchange", id)
	}
	return exchange, err
}

func (tx *txScope) exchangeView(ctx context.Context, exchange Exchange) (ExchangeView, error) {
	book1, err := tx.book(ctx, exchange.Book1ID)
	if err != nil {
		return ExchangeView{}, err
	}
	book2, err := tx.book(ctx, exchange.Book2ID)
	if err != nil {
		return ExchangeView{}, err
	}
	return newExchangeView(exchange, book1, book2), nil
}

func requireUserID(userID int64) error {
	if userID <= 0 {
		return ValidationError("user_id", "user id must be positive")
	}
	return nil
}

func requireEntityID(field string, id string) error {
	if strings.TrimSpace(id) == "" {
		return ValidationError(field, fmt.Sprintf("%s is required", field))
	}
	return nil
}
