// Package planner runs the scheduling operations: the task duration ledger,
// chunk placement and ordering, capacity search and series expansion.
//
// Every mutating operation executes in one storage transaction that locks
// the owning task row (and for split, the whole day bucket). Events are
// published only after the transaction commits.
package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"taskplan/internal/domain"
	"taskplan/internal/eventbus"
	"taskplan/internal/storage"
	"taskplan/pkg/logx"

	"golang.org/x/time/rate"
)

// CapacitySource yields a user's capacity configuration. The planner never
// writes through it.
type CapacitySource interface {
	Capacity(ctx context.Context, userID int64) (domain.Capacity, error)
}

// Settings are the tunables that may change while the service runs.
type Settings struct {
	// Horizon is the number of days Capacity Search looks ahead.
	Horizon int
	// Limits bound one Schedule run of a series.
	Limits domain.ScheduleLimits
	// DefaultCapacity applies to users created without explicit capacity.
	DefaultCapacity domain.Capacity
	// AdvanceRate caps series expanded per second during AdvanceAll; 0 is unlimited.
	AdvanceRate rate.Limit
}

func DefaultSettings() Settings {
	return Settings{
		Horizon:         60,
		Limits:          domain.DefaultScheduleLimits,
		DefaultCapacity: domain.DefaultCapacity,
	}
}

type Options struct {
	Settings Settings
	Log      logx.Logger
	Bus      eventbus.Bus
	// Capacity overrides where capacity is read from; the store's users
	// table by default.
	Capacity CapacitySource
	// Now is the clock; time.Now by default.
	Now func() time.Time
	// Location decides which calendar day "today" is; time.Local by default.
	Location *time.Location
	// MaxAttempts bounds retries of aborted transactions; 3 by default.
	MaxAttempts int
}

type Service struct {
	store    *storage.Store
	log      logx.Logger
	bus      eventbus.Bus
	capacity CapacitySource
	now      func() time.Time
	loc      *time.Location
	attempts int

	mu       sync.RWMutex
	settings Settings
}

func New(store *storage.Store, opts Options) *Service {
	s := &Service{
		store:    store,
		log:      opts.Log,
		bus:      opts.Bus,
		capacity: opts.Capacity,
		now:      opts.Now,
		loc:      opts.Location,
		attempts: opts.MaxAttempts,
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.log = s.log.Component("planner")
	if s.bus == nil {
		s.bus = eventbus.Nop()
	}
	if s.capacity == nil {
		s.capacity = store.Reader()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.attempts <= 0 {
		s.attempts = 3
	}
	s.Reconfigure(opts.Settings)
	return s
}

// Reconfigure swaps the settings. Zero fields fall back to defaults.
func (s *Service) Reconfigure(st Settings) {
	def := DefaultSettings()
	if st.Horizon <= 0 {
		st.Horizon = def.Horizon
	}
	if st.Limits.MaxAdvance <= 0 {
		st.Limits.MaxAdvance = def.Limits.MaxAdvance
	}
	if st.Limits.MaxCount <= 0 {
		st.Limits.MaxCount = def.Limits.MaxCount
	}
	if st.DefaultCapacity == (domain.Capacity{}) {
		st.DefaultCapacity = def.DefaultCapacity
	}
	s.mu.Lock()
	s.settings = st
	s.mu.Unlock()
}

func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Today is the current calendar day in the configured location.
func (s *Service) Today() domain.Date {
	return domain.DateOf(s.now().In(s.loc))
}

// tx runs fn in a transaction, repeating it when the database aborted the
// transaction. fn must not keep state across attempts.
func (s *Service) tx(ctx context.Context, op string, fn func(tx *storage.Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = s.store.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, storage.ErrRetryable) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		s.log.Warn("transaction aborted, retrying",
			logx.String("op", op), logx.Int("attempt", attempt), logx.Err(err))
	}
	return err
}

func (s *Service) publish(typ string, userID int64, data any) {
	s.bus.Publish(eventbus.Event{Type: typ, UserID: userID, Time: s.now(), Data: data})
}
