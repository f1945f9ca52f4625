package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goliatone/go-bookswap/adapters/gologger"
	bookswapcommand "github.com/goliatone/go-bookswap/command"
	"github.com/goliatone/go-bookswap/core"
	bookswapmigrations "github.com/goliatone/go-bookswap/migrations"
	kafkaprojector "github.com/goliatone/go-bookswap/projectors/kafka"
	bookswapquery "github.com/goliatone/go-bookswap/query"
	gocmd "github.com/goliatone/go-command"
	"github.com/spf13/cobra"
)

const defaultDSN = "file:bookswap.db?_foreign_keys=on"

func newRootCommand(out io.Writer, errOut io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "bookswapctl",
		Short:         "Operate the peer-to-peer book exchange",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.driver, "driver", "sqlite3", "database driver (sqlite3 or postgres)")
	flags.StringVar(&opts.dsn, "dsn", defaultDSN, "database connection string")
	flags.StringVar(&opts.configPath, "config", "", "JSON config file layered over the defaults")
	flags.Int64Var(&opts.userID, "user", 0, "authenticated user id")
	flags.BoolVar(&opts.autoMigrate, "auto-migrate", true, "apply pending migrations before running")
	flags.BoolVar(&opts.verbose, "verbose", false, "log to stderr")

	root.AddCommand(
		newMigrateCommand(opts),
		newCatalogCommand(opts),
		newMatchCommand(opts),
		newExchangeCommand(opts),
		newReputationCommand(opts),
		newOutboxCommand(opts),
	)
	return root
}

// run opens the app, runs fn and prints its result as JSON.
func run(cmd *cobra.Command, opts *globalOptions, migrate bool, fn func(ctx context.Context, a *app) (any, error)) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, *opts, migrate)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); err == nil {
			err = closeErr
		}
	}()

	result, err := fn(ctx, a)
	if err != nil {
		return err
	}
	if result == nil {
		result = map[string]any{"ok": true}
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func runCommand[R any, T interface{ Validate() error }](ctx context.Context, handler gocmd.Commander[T], msg T) (R, error) {
	var zero R
	if err := msg.Validate(); err != nil {
		return zero, err
	}
	collector := gocmd.NewResult[R]()
	if err := handler.Execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	out, _ := collector.Load()
	return out, nil
}

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, true, func(context.Context, *app) (any, error) {
				dialect, err := bookswapmigrations.DialectForDriver(opts.driver)
				if err != nil {
					return nil, err
				}
				filesystems, err := bookswapmigrations.Filesystems()
				if err != nil {
					return nil, err
				}
				for _, entry := range filesystems {
					if entry.Dialect != dialect {
						continue
					}
					versions, err := bookswapmigrations.Versions(entry.FS)
					if err != nil {
						return nil, err
					}
					return map[string]any{"dialect": dialect, "versions": versions}, nil
				}
				return nil, fmt.Errorf("bookswapctl: no migrations for dialect %s", dialect)
			})
		},
	}
}

// newCatalogCommand seeds users and books. In production these rows belong
// to the catalog and account services. Re-adding an existing row keeps its
// counters and reputation.
func newCatalogCommand(opts *globalOptions) *cobra.Command {
	catalog := &cobra.Command{Use: "catalog", Short: "Seed users and books"}

	var user core.User
	addUser := &cobra.Command{
		Use:   "add-user",
		Short: "Create or update a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				if user.ID <= 0 || strings.TrimSpace(user.Username) == "" {
					return nil, core.ValidationError("user", "--id and --username are required")
				}
				err := a.factory.Transactor().RunInTx(ctx, func(ctx context.Context, stores core.Stores) error {
					existing, err := stores.Users().GetUser(ctx, user.ID)
					switch {
					case errors.Is(err, core.ErrUserNotFound):
						return stores.Users().SaveUser(ctx, user)
					case err != nil:
						return err
					}
					existing.Username = user.Username
					return stores.Users().SaveUser(ctx, existing)
				})
				return map[string]any{"id": user.ID, "username": user.Username}, err
			})
		},
	}
	addUser.Flags().Int64Var(&user.ID, "id", 0, "user id")
	addUser.Flags().StringVar(&user.Username, "username", "", "username")

	book := core.Book{Available: true}
	addBook := &cobra.Command{
		Use:   "add-book",
		Short: "Create or update a book",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				if book.ID <= 0 || book.OwnerID <= 0 || strings.TrimSpace(book.Title) == "" {
					return nil, core.ValidationError("book", "--id, --owner and --title are required")
				}
				err := a.factory.Transactor().RunInTx(ctx, func(ctx context.Context, stores core.Stores) error {
					existing, err := stores.Books().GetBook(ctx, book.ID)
					switch {
					case errors.Is(err, core.ErrBookNotFound):
						return stores.Books().SaveBook(ctx, book)
					case err != nil:
						return err
					}
					existing.OwnerID = book.OwnerID
					existing.Title = book.Title
					existing.Author = book.Author
					existing.Available = book.Available
					return stores.Books().SaveBook(ctx, existing)
				})
				return map[string]any{"id": book.ID, "owner_id": book.OwnerID, "title": book.Title}, err
			})
		},
	}
	addBook.Flags().Int64Var(&book.ID, "id", 0, "book id")
	addBook.Flags().Int64Var(&book.OwnerID, "owner", 0, "owner user id")
	addBook.Flags().StringVar(&book.Title, "title", "", "title")
	addBook.Flags().StringVar(&book.Author, "author", "", "author")
	addBook.Flags().BoolVar(&book.Available, "available", true, "whether the book can be matched")

	catalog.AddCommand(addUser, addBook)
	return catalog
}

func newMatchCommand(opts *globalOptions) *cobra.Command {
	match := &cobra.Command{Use: "match", Short: "Manage book matches"}

	var bookID int64
	create := &cobra.Command{
		Use:   "create",
		Short: "Register interest in a book",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				return runCommand[core.MatchView](ctx, a.facade.Commands().CreateMatch,
					bookswapcommand.CreateMatchMessage{UserID: opts.userID, BookID: bookID})
			})
		},
	}
	create.Flags().Int64Var(&bookID, "book", 0, "book id")

	var matchID string
	cancel := &cobra.Command{
		Use:   "cancel",
		Short: "Withdraw an active match",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				msg := bookswapcommand.CancelMatchMessage{UserID: opts.userID, MatchID: matchID}
				if err := msg.Validate(); err != nil {
					return nil, err
				}
				return nil, a.facade.Commands().CancelMatch.Execute(ctx, msg)
			})
		},
	}
	cancel.Flags().StringVar(&matchID, "match", "", "match id")

	list := &cobra.Command{
		Use:   "list",
		Short: "List your active matches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				msg := bookswapquery.ListMatchesMessage{UserID: opts.userID}
				if err := msg.Validate(); err != nil {
					return nil, err
				}
				return a.facade.Queries().ListMatches.Query(ctx, msg)
			})
		},
	}

	match.AddCommand(create, cancel, list)
	return match
}

func newExchangeCommand(opts *globalOptions) *cobra.Command {
	exchange := &cobra.Command{Use: "exchange", Short: "Drive exchanges through their lifecycle"}

	var matchID string
	propose := &cobra.Command{
		Use:   "propose",
		Short: "Propose an exchange from one of your matches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				return runCommand[core.ExchangeView](ctx, a.facade.Commands().ProposeExchange,
					bookswapcommand.ProposeExchangeMessage{UserID: opts.userID, MatchID: matchID})
			})
		},
	}
	propose.Flags().StringVar(&matchID, "match", "", "match id")

	var (
		exchangeID string
		at         string
		location   string
	)
	meetup := &cobra.Command{
		Use:   "meetup",
		Short: "Arrange the meetup for a proposed exchange",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				var when time.Time
				if strings.TrimSpace(at) != "" {
					parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(at))
					if err != nil {
						return nil, core.ValidationError("meetup_at", "meetup time must be RFC3339")
					}
					when = parsed
				}
				return runCommand[core.ExchangeView](ctx, a.facade.Commands().ArrangeMeetup,
					bookswapcommand.ArrangeMeetupMessage{
						UserID:     opts.userID,
						ExchangeID: exchangeID,
						At:         when,
						Location:   location,
					})
			})
		},
	}
	meetup.Flags().StringVar(&exchangeID, "exchange", "", "exchange id")
	meetup.Flags().StringVar(&at, "at", "", "meetup time (RFC3339)")
	meetup.Flags().StringVar(&location, "location", "", "meetup location")

	confirm := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm the exchange took place",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				return runCommand[core.ExchangeView](ctx, a.facade.Commands().ConfirmExchange,
					bookswapcommand.ConfirmExchangeMessage{UserID: opts.userID, ExchangeID: exchangeID})
			})
		},
	}
	confirm.Flags().StringVar(&exchangeID, "exchange", "", "exchange id")

	cancel := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel an open exchange",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				return runCommand[core.ExchangeView](ctx, a.facade.Commands().CancelExchange,
					bookswapcommand.CancelExchangeMessage{UserID: opts.userID, ExchangeID: exchangeID})
			})
		},
	}
	cancel.Flags().StringVar(&exchangeID, "exchange", "", "exchange id")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show one exchange you take part in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				msg := bookswapquery.GetExchangeMessage{UserID: opts.userID, ExchangeID: exchangeID}
				if err := msg.Validate(); err != nil {
					return nil, err
				}
				return a.facade.Queries().GetExchange.Query(ctx, msg)
			})
		},
	}
	show.Flags().StringVar(&exchangeID, "exchange", "", "exchange id")

	active := &cobra.Command{
		Use:   "active",
		Short: "List your open exchanges",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				msg := bookswapquery.ListActiveExchangesMessage{UserID: opts.userID}
				if err := msg.Validate(); err != nil {
					return nil, err
				}
				return a.facade.Queries().ListActiveExchanges.Query(ctx, msg)
			})
		},
	}

	history := &cobra.Command{
		Use:   "history",
		Short: "List all your exchanges",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				msg := bookswapquery.ExchangeHistoryMessage{UserID: opts.userID}
				if err := msg.Validate(); err != nil {
					return nil, err
				}
				return a.facade.Queries().ExchangeHistory.Query(ctx, msg)
			})
		},
	}

	exchange.AddCommand(propose, meetup, confirm, cancel, show, active, history)
	return exchange
}

func newReputationCommand(opts *globalOptions) *cobra.Command {
	reputation := &cobra.Command{Use: "reputation", Short: "Inspect and refresh user reputation"}

	var subject int64
	subjectOrCaller := func() int64 {
		if subject > 0 {
			return subject
		}
		return opts.userID
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show a user's rank, exchange count and rating",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				msg := bookswapquery.GetReputationMessage{UserID: subjectOrCaller()}
				if err := msg.Validate(); err != nil {
					return nil, err
				}
				return a.facade.Queries().GetReputation.Query(ctx, msg)
			})
		},
	}
	show.Flags().Int64Var(&subject, "of", 0, "user to inspect (defaults to --user)")

	recalc := &cobra.Command{
		Use:   "recalc",
		Short: "Recompute a user's average rating from their reviews",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				return runCommand[core.UserReputation](ctx, a.facade.Commands().RecalculateRating,
					bookswapcommand.RecalculateRatingMessage{UserID: subjectOrCaller()})
			})
		},
	}
	recalc.Flags().Int64Var(&subject, "of", 0, "user to recalculate (defaults to --user)")

	reputation.AddCommand(show, recalc)
	return reputation
}

func newOutboxCommand(opts *globalOptions) *cobra.Command {
	outbox := &cobra.Command{Use: "outbox", Short: "Deliver lifecycle events"}

	var (
		batchSize    int
		kafkaBrokers []string
		kafkaTopic   string
	)
	dispatch := &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver one batch of pending lifecycle events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, opts.autoMigrate, func(ctx context.Context, a *app) (any, error) {
				_, logger := gologger.Resolve("outbox", nil, a.logger)
				registry := core.NewLifecycleProjectorRegistry()
				registry.Register("log", core.NewLogProjector(logger))
				if len(kafkaBrokers) > 0 {
					writer, err := kafkaprojector.NewWriter(kafkaprojector.Config{Brokers: kafkaBrokers, Topic: kafkaTopic})
					if err != nil {
						return nil, err
					}
					projector, err := kafkaprojector.NewProjector(writer)
					if err != nil {
						return nil, err
					}
					defer func() { _ = projector.Close() }()
					if err := projector.Register(registry); err != nil {
						return nil, err
					}
				}

				dispatcher, err := core.NewOutboxDispatcher(a.factory.OutboxStore(), registry, a.config.DispatcherConfig())
				if err != nil {
					return nil, err
				}
				dispatcher.WithLogger(logger)
				return dispatcher.DispatchPending(ctx, batchSize)
			})
		},
	}
	dispatch.Flags().IntVar(&batchSize, "batch", 0, "events per batch (defaults to outbox.batch_size)")
	dispatch.Flags().StringSliceVar(&kafkaBrokers, "kafka-broker", nil, "Kafka broker address, repeatable")
	dispatch.Flags().StringVar(&kafkaTopic, "kafka-topic", "bookswap.lifecycle", "Kafka topic for lifecycle events")

	outbox.AddCommand(dispatch)
	return outbox
}
