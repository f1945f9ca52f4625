package bookswap

import "github.com/goliatone/go-bookswap/core"

type Config = core.Config

type OutboxConfig = core.OutboxConfig

type ReputationConfig = core.ReputationConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Transactor = core.Transactor
type Stores = core.Stores
type ReputationCache = core.ReputationCache
type LifecycleEvent = core.LifecycleEvent
type LifecycleHookCoordinator = core.LifecycleHookCoordinator

type MatchView = core.MatchView
type ExchangeView = core.ExchangeView
type MeetupDetails = core.MeetupDetails
type UserReputation = core.UserReputation

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithTransactor      = core.WithTransactor
	WithReputationCache = core.WithReputationCache
	WithHookCoordinator = core.WithHookCoordinator
	WithClock           = core.WithClock
	WithIDGenerator     = core.WithIDGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
