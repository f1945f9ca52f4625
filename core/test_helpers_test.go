package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

var errVeto = errors.New("vetoed")

// memoryBackend is a single-writer in-memory store. Each RunInTx holds the
// lock for its whole duration and restores a snapshot when fn fails.
type memoryBackend struct {
	mu        sync.Mutex
	users     map[int64]User
	books     map[int64]Book
	matches   map[string]Match
	exchanges map[string]Exchange
	ratings   map[int64][]int
	outbox    []LifecycleEvent
	txCount   int

	// reciprocalLocks counts LockReciprocalMatch calls.
	reciprocalLocks int
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		users:     map[int64]User{},
		books:     map[int64]Book{},
		matches:   map[string]Match{},
		exchanges: map[string]Exchange{},
		ratings:   map[int64][]int{},
	}
}

type memorySnapshot struct {
	users     map[int64]User
	books     map[int64]Book
	matches   map[string]Match
	exchanges map[string]Exchange
	outbox    []LifecycleEvent
}

func (b *memoryBackend) snapshot() memorySnapshot {
	snap := memorySnapshot{
		users:     make(map[int64]User, len(b.users)),
		books:     make(map[int64]Book, len(b.books)),
		matches:   make(map[string]Match, len(b.matches)),
		exchanges: make(map[string]Exchange, len(b.exchanges)),
		outbox:    append([]LifecycleEvent(nil), b.outbox...),
	}
	for k, v := range b.users {
		snap.users[k] = v
	}
	for k, v := range b.books {
		snap.books[k] = v
	}
	for k, v := range b.matches {
		snap.matches[k] = v
	}
	for k, v := range b.exchanges {
		snap.exchanges[k] = v
	}
	return snap
}

func (b *memoryBackend) restore(snap memorySnapshot) {
	b.users = snap.users
	b.books = snap.books
	b.matches = snap.matches
	b.exchanges = snap.exchanges
	b.outbox = snap.outbox
}

func (b *memoryBackend) RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txCount++
	snap := b.snapshot()
	if err := fn(ctx, memoryStores{b: b}); err != nil {
		b.restore(snap)
		return err
	}
	return nil
}

func (b *memoryBackend) addUser(id int64, username string, exchangeCount int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[id] = User{
		ID:            id,
		Username:      username,
		ExchangeCount: exchangeCount,
		Rank:          RankForExchangeCount(exchangeCount),
	}
}

func (b *memoryBackend) addBook(id int64, ownerID int64, title string, available bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.books[id] = Book{ID: id, OwnerID: ownerID, Title: title, Available: available}
}

func (b *memoryBackend) addRatings(userID int64, ratings ...int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ratings[userID] = append(b.ratings[userID], ratings...)
}

func (b *memoryBackend) user(id int64) User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.users[id]
}

func (b *memoryBackend) book(id int64) Book {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.books[id]
}

func (b *memoryBackend) match(id string) Match {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.matches[id]
}

func (b *memoryBackend) exchange(id string) Exchange {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exchanges[id]
}

func (b *memoryBackend) activeMatchCount(userID int64, bookID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, match := range b.matches {
		if match.UserID == userID && match.BookID == bookID && match.Active {
			count++
		}
	}
	return count
}

func (b *memoryBackend) eventNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.outbox))
	for _, event := range b.outbox {
		names = append(names, event.Name)
	}
	return names
}

type memoryStores struct {
	b *memoryBackend
}

func (s memoryStores) Users() UserStore         { return memoryUserStore(s) }
func (s memoryStores) Books() BookStore         { return memoryBookStore(s) }
func (s memoryStores) Matches() MatchStore      { return memoryMatchStore(s) }
func (s memoryStores) Exchanges() ExchangeStore { return memoryExchangeStore(s) }
func (s memoryStores) Ratings() RatingStore     { return memoryRatingStore(s) }
func (s memoryStores) Outbox() OutboxStore      { return memoryOutboxStore(s) }

type memoryUserStore memoryStores

func (s memoryUserStore) GetUser(_ context.Context, id int64) (User, error) {
	user, ok := s.b.users[id]
	if !ok {
		return User{}, fmt.Errorf("memory: user %d: %w", id, ErrUserNotFound)
	}
	return user, nil
}

func (s memoryUserStore) SaveUser(_ context.Context, user User) error {
	existing, ok := s.b.users[user.ID]
	if ok {
		existing.Username = user.Username
		s.b.users[user.ID] = existing
		return nil
	}
	user.Rank = RankForExchangeCount(user.ExchangeCount)
	user.AverageRating = 0
	s.b.users[user.ID] = user
	return nil
}

func (s memoryUserStore) UpdateRank(_ context.Context, id int64) (User, error) {
	user, ok := s.b.users[id]
	if !ok {
		return User{}, fmt.Errorf("memory: user %d: %w", id, ErrUserNotFound)
	}
	user.Rank = RankForExchangeCount(user.ExchangeCount)
	s.b.users[id] = user
	return user, nil
}

func (s memoryUserStore) SetAverageRating(_ context.Context, id int64, average float64) error {
	user, ok := s.b.users[id]
	if !ok {
		return fmt.Errorf("memory: user %d: %w", id, ErrUserNotFound)
	}
	user.AverageRating = average
	s.b.users[id] = user
	return nil
}

func (s memoryUserStore) IncrementExchangeCount(_ context.Context, id int64) (User, error) {
	user, ok := s.b.users[id]
	if !ok {
		return User{}, fmt.Errorf("memory: user %d: %w", id, ErrUserNotFound)
	}
	user.ExchangeCount++
	s.b.users[id] = user
	return user, nil
}

type memoryBookStore memoryStores

func (s memoryBookStore) GetBook(_ context.Context, id int64) (Book, error) {
	book, ok := s.b.books[id]
	if !ok {
		return Book{}, fmt.Errorf("memory: book %d: %w", id, ErrBookNotFound)
	}
	return book, nil
}

func (s memoryBookStore) ListBooksByOwner(_ context.Context, ownerID int64) ([]Book, error) {
	out := make([]Book, 0)
	for _, book := range s.b.books {
		if book.OwnerID == ownerID {
			out = append(out, book)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memoryBookStore) SaveBook(_ context.Context, book Book) error {
	s.b.books[book.ID] = book
	return nil
}

func (s memoryBookStore) IncrementMatchCount(_ context.Context, id int64) error {
	book, ok := s.b.books[id]
	if !ok {
		return fmt.Errorf("memory: book %d: %w", id, ErrBookNotFound)
	}
	book.MatchCount++
	s.b.books[id] = book
	return nil
}

func (s memoryBookStore) MarkTraded(_ context.Context, id int64) error {
	book, ok := s.b.books[id]
	if !ok {
		return fmt.Errorf("memory: book %d: %w", id, ErrBookNotFound)
	}
	book.ExchangeCount++
	book.Available = false
	s.b.books[id] = book
	return nil
}

type memoryMatchStore memoryStores

func (s memoryMatchStore) GetMatch(_ context.Context, id string) (Match, error) {
	match, ok := s.b.matches[id]
	if !ok {
		return Match{}, fmt.Errorf("memory: match %s: %w", id, ErrMatchNotFound)
	}
	return match, nil
}

func (s memoryMatchStore) LockMatch(ctx context.Context, id string) (Match, error) {
	return s.GetMatch(ctx, id)
}

func (s memoryMatchStore) FindActiveMatchesForUser(_ context.Context, userID int64) ([]Match, error) {
	out := make([]Match, 0)
	for _, match := range s.b.matches {
		if match.UserID == userID && match.Active {
			out = append(out, match)
		}
	}
	return out, nil
}

func (s memoryMatchStore) FindActiveMatchForUserAndBook(_ context.Context, userID int64, bookID int64) (Match, bool, error) {
	for _, match := range s.b.matches {
		if match.UserID == userID && match.BookID == bookID && match.Active {
			return match, true, nil
		}
	}
	return Match{}, false, nil
}

func (s memoryMatchStore) FindReciprocalMatch(_ context.Context, ownerUserID int64, bookIDs []int64) (Match, bool, error) {
	wanted := map[int64]bool{}
	for _, id := range bookIDs {
		wanted[id] = true
	}
	candidates := make([]Match, 0)
	for _, match := range s.b.matches {
		if match.UserID == ownerUserID && match.Active && wanted[match.BookID] {
			candidates = append(candidates, match)
		}
	}
	if len(candidates) == 0 {
		return Match{}, false, nil
	}
	SortMatches(candidates)
	return candidates[0], true, nil
}

func (s memoryMatchStore) LockReciprocalMatch(ctx context.Context, ownerUserID int64, bookIDs []int64) (Match, bool, error) {
	s.b.reciprocalLocks++
	return s.FindReciprocalMatch(ctx, ownerUserID, bookIDs)
}

func (s memoryMatchStore) CreateMatch(_ context.Context, match Match) (Match, error) {
	for _, existing := range s.b.matches {
		if existing.UserID == match.UserID && existing.BookID == match.BookID && existing.Active {
			return Match{}, ErrDuplicateMatch
		}
	}
	s.b.matches[match.ID] = match
	return match, nil
}

func (s memoryMatchStore) DeactivateMatch(_ context.Context, id string, reason MatchDeactivationReason, at time.Time) error {
	match, ok := s.b.matches[id]
	if !ok {
		return fmt.Errorf("memory: match %s: %w", id, ErrMatchNotFound)
	}
	if !match.Active {
		return ErrMatchInactive
	}
	match.Active = false
	match.DeactivationReason = reason
	match.DeactivatedAt = &at
	s.b.matches[id] = match
	return nil
}

type memoryExchangeStore memoryStores

func (s memoryExchangeStore) GetExchange(_ context.Context, id string) (Exchange, error) {
	exchange, ok := s.b.exchanges[id]
	if !ok {
		return Exchange{}, fmt.Errorf("memory: exchange %s: %w", id, ErrExchangeNotFound)
	}
	return exchange, nil
}

func (s memoryExchangeStore) LockExchange(ctx context.Context, id string) (Exchange, error) {
	return s.GetExchange(ctx, id)
}

func (s memoryExchangeStore) FindExchangesForUser(_ context.Context, userID int64) ([]Exchange, error) {
	out := make([]Exchange, 0)
	for _, exchange := range s.b.exchanges {
		if exchange.IsParticipant(userID) {
			out = append(out, exchange)
		}
	}
	return out, nil
}

func (s memoryExchangeStore) FindExchangesForUserByStatus(ctx context.Context, userID int64, statuses ...ExchangeStatus) ([]Exchange, error) {
	all, _ := s.FindExchangesForUser(ctx, userID)
	allowed := map[ExchangeStatus]bool{}
	for _, status := range statuses {
		allowed[status] = true
	}
	out := make([]Exchange, 0, len(all))
	for _, exchange := range all {
		if allowed[exchange.Status] {
			out = append(out, exchange)
		}
	}
	return out, nil
}

func (s memoryExchangeStore) CreateExchange(_ context.Context, exchange Exchange) (Exchange, error) {
	if exchange.Version == 0 {
		exchange.Version = 1
	}
	s.b.exchanges[exchange.ID] = exchange
	return exchange, nil
}

func (s memoryExchangeStore) UpdateExchange(_ context.Context, exchange Exchange) (Exchange, error) {
	current, ok := s.b.exchanges[exchange.ID]
	if !ok {
		return Exchange{}, fmt.Errorf("memory: exchange %s: %w", exchange.ID, ErrExchangeNotFound)
	}
	if current.Version != exchange.Version {
		return Exchange{}, ErrStaleWrite
	}
	exchange.Version++
	s.b.exchanges[exchange.ID] = exchange
	return exchange, nil
}

type memoryRatingStore memoryStores

func (s memoryRatingStore) RatingsForUser(_ context.Context, userID int64) ([]int, error) {
	return append([]int(nil), s.b.ratings[userID]...), nil
}

type memoryOutboxStore memoryStores

func (s memoryOutboxStore) Enqueue(_ context.Context, event LifecycleEvent) error {
	s.b.outbox = append(s.b.outbox, event)
	return nil
}

func (s memoryOutboxStore) ClaimBatch(context.Context, int) ([]LifecycleEvent, error) {
	return nil, nil
}

func (s memoryOutboxStore) Ack(context.Context, string) error { return nil }

func (s memoryOutboxStore) Retry(context.Context, string, error, time.Time) error { return nil }

// stepClock advances by one second on every read so ordering by time is
// deterministic.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *stepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type sequentialIDs struct {
	mu   sync.Mutex
	next int
}

func (g *sequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%04d", g.next)
}

type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (r *recordingMetrics) IncCounter(_ context.Context, name string, value int64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters == nil {
		r.counters = map[string]int64{}
	}
	r.counters[name] += value
}

func (r *recordingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

type hookFunc struct {
	name string
	fn   func(context.Context, LifecycleEvent) error
}

func (h hookFunc) Name() string { return h.name }

func (h hookFunc) OnEvent(ctx context.Context, event LifecycleEvent) error {
	if h.fn == nil {
		return nil
	}
	return h.fn(ctx, event)
}

type testFixture struct {
	backend *memoryBackend
	clock   *stepClock
	service *Service
}

// newTestFixture seeds the users and books of the canonical trade: user 1
// owns book 10, user 2 owns books 20 and 21, user 3 owns book 30.
func newTestFixture(t *testing.T, opts ...Option) *testFixture {
	t.Helper()
	backend := newMemoryBackend()
	backend.addUser(1, "ana", 0)
	backend.addUser(2, "ben", 0)
	backend.addUser(3, "cal", 0)
	backend.addBook(10, 1, "Dune", true)
	backend.addBook(20, 2, "Emma", true)
	backend.addBook(21, 2, "Ulysses", true)
	backend.addBook(30, 3, "Beloved", true)

	clock := newStepClock()
	ids := &sequentialIDs{}
	base := []Option{
		WithTransactor(backend),
		WithClock(clock.Now),
		WithIDGenerator(ids.Next),
	}
	service, err := NewService(Config{}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testFixture{backend: backend, clock: clock, service: service}
}

func (f *testFixture) mustCreateMatch(t *testing.T, userID int64, bookID int64) MatchView {
	t.Helper()
	view, err := f.service.CreateMatch(context.Background(), userID, bookID)
	if err != nil {
		t.Fatalf("create match user=%d book=%d: %v", userID, bookID, err)
	}
	return view
}

// mustProposedExchange builds the canonical mutual interest (user 1 wants
// book 20, user 2 wants book 10) and proposes from user 1's match.
func (f *testFixture) mustProposedExchange(t *testing.T) ExchangeView {
	t.Helper()
	initiating := f.mustCreateMatch(t, 1, 20)
	f.mustCreateMatch(t, 2, 10)
	view, err := f.service.ProposeExchange(context.Background(), 1, initiating.ID)
	if err != nil {
		t.Fatalf("propose exchange: %v", err)
	}
	return view
}

func (f *testFixture) mustArrangedExchange(t *testing.T) ExchangeView {
	t.Helper()
	proposed := f.mustProposedExchange(t)
	view, err := f.service.ArrangeMeetup(context.Background(), 2, proposed.ID, MeetupDetails{
		At:       f.clock.Peek().Add(48 * time.Hour),
		Location: "Central Library",
	})
	if err != nil {
		t.Fatalf("arrange meetup: %v", err)
	}
	return view
}
