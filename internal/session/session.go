package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"demandline/internal/config"
	"demandline/internal/domain"
	"demandline/internal/lifecycle"
	"demandline/internal/metrics"
	"demandline/internal/query"
	"demandline/internal/report"
	"demandline/internal/store"
	"demandline/internal/store/memory"
	"demandline/internal/store/sqlite"
	"demandline/internal/users"
)

// Settings are shared by every session opened from the same config.
type Settings struct {
	Driver   string
	Users    users.Directory
	Location *time.Location
}

func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	dir, err := users.FromConfig(cfg)
	if err != nil {
		return Settings{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return Settings{}, err
	}
	return Settings{Driver: cfg.Store.Driver, Users: dir, Location: loc}, nil
}

type options struct {
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Recorder
}

type Option func(*options)

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, log: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Session owns one demand store for its whole lifetime. Calls are
// serialized so each interaction sees a consistent store.
type Session struct {
	ID string

	mu       sync.Mutex
	store    store.Store
	engine   lifecycle.Engine
	users    users.Directory
	loc      *time.Location
	now      func() time.Time
	lastUsed time.Time
	closed   bool
}

// Open creates an empty session backed by the configured store driver.
func Open(ctx context.Context, id string, s Settings, opts ...Option) (*Session, error) {
	o := buildOptions(opts)
	if id == "" {
		id = uuid.NewString()
	}
	st, err := openStore(ctx, s.Driver, id)
	if err != nil {
		return nil, err
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	eng := lifecycle.New(st, s.Users)
	eng.Now = o.now
	eng.Log = o.log.With().Str("session", id).Logger()
	eng.Metrics = o.metrics
	return &Session{
		ID:       id,
		store:    st,
		engine:   eng,
		users:    s.Users,
		loc:      loc,
		now:      o.now,
		lastUsed: o.now(),
	}, nil
}

func openStore(ctx context.Context, driver, id string) (store.Store, error) {
	switch driver {
	case "", config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		return sqlite.Open(ctx, "demandline-"+id)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// lock serializes an interaction and marks the session as used.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.lastUsed = s.now()
	return nil
}

func (s *Session) CreateDemand(ctx context.Context, in domain.NewDemand, actor domain.UserID) (domain.Demand, error) {
	if err := s.lock(); err != nil {
		return domain.Demand{}, err
	}
	defer s.mu.Unlock()
	return s.engine.Create(ctx, in, actor)
}

func (s *Session) Complete(ctx context.Context, id int64, actor domain.UserID) (domain.Demand, error) {
	if err := s.lock(); err != nil {
		return domain.Demand{}, err
	}
	defer s.mu.Unlock()
	return s.engine.Complete(ctx, id, actor)
}

func (s *Session) Confirm(ctx context.Context, id int64, actor domain.UserID) (domain.Demand, error) {
	if err := s.lock(); err != nil {
		return domain.Demand{}, err
	}
	defer s.mu.Unlock()
	return s.engine.Confirm(ctx, id, actor)
}

// ListVisibleDemands returns the demands assigned to user that pass f, in id order.
func (s *Session) ListVisibleDemands(ctx context.Context, user domain.UserID, f query.DemandFilter) ([]domain.Demand, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if _, err := s.users.Lookup(user); err != nil {
		return nil, err
	}
	all, err := s.store.ListDemands(ctx)
	if err != nil {
		return nil, err
	}
	return query.VisibleTo(all, user, f), nil
}

func (s *Session) ListPendingConfirmations(ctx context.Context) ([]domain.Demand, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	all, err := s.store.ListDemands(ctx)
	if err != nil {
		return nil, err
	}
	return query.AwaitingConfirmation(all), nil
}

// ListHistory returns matching activity entries, most recent first.
func (s *Session) ListHistory(ctx context.Context, f query.HistoryFilter) ([]domain.ActivityEntry, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	entries, err := s.store.ListLog(ctx)
	if err != nil {
		return nil, err
	}
	return query.History(entries, f), nil
}

func (s *Session) ComputeDashboard(ctx context.Context, f query.DemandFilter) (report.Dashboard, error) {
	if err := s.lock(); err != nil {
		return report.Dashboard{}, err
	}
	defer s.mu.Unlock()
	all, err := s.store.ListDemands(ctx)
	if err != nil {
		return report.Dashboard{}, err
	}
	return report.Compute(query.Demands(all, f), s.users.All(), s.loc), nil
}

func (s *Session) Users() users.Directory { return s.users }

// Location is the zone used for date filters and per-day buckets.
func (s *Session) Location() *time.Location { return s.loc }

func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Close discards the session's data. Later calls fail with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.store.Close()
}
