package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"demandline/internal/metrics"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrClosed   = errors.New("session closed")
)

// Registry holds the open sessions of a server. Sessions share nothing
// but their Settings.
type Registry struct {
	settings Settings
	opts     []Option
	now      func() time.Time
	log      zerolog.Logger
	metrics  *metrics.Recorder

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(s Settings, opts ...Option) *Registry {
	o := buildOptions(opts)
	return &Registry{
		settings: s,
		opts:     opts,
		now:      o.now,
		log:      o.log,
		metrics:  o.metrics,
		sessions: map[string]*Session{},
	}
}

func (r *Registry) Open(ctx context.Context) (*Session, error) {
	s, err := Open(ctx, uuid.NewString(), r.settings, r.opts...)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.metrics.SessionOpened()
	r.log.Info().Str("session", s.ID).Msg("session opened")
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// IDs returns the open session ids in lexical order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	r.metrics.SessionClosed()
	r.log.Info().Str("session", id).Msg("session closed")
	return s.Close()
}

func (r *Registry) CloseAll() error {
	var errs []error
	for _, id := range r.IDs() {
		if err := r.Close(id); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reap closes sessions unused for longer than idle and returns their ids.
func (r *Registry) Reap(idle time.Duration) []string {
	cutoff := r.now().Add(-idle)
	var stale []string
	for _, id := range r.IDs() {
		s, err := r.Get(id)
		if err != nil {
			continue
		}
		if s.LastUsed().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		if err := r.Close(id); err != nil && !errors.Is(err, ErrNotFound) {
			r.log.Warn().Err(err).Str("session", id).Msg("close idle session failed")
		}
	}
	if len(stale) > 0 {
		r.log.Info().Int("count", len(stale)).Dur("idle", idle).Msg("reaped idle sessions")
	}
	return stale
}

// RunReaper reaps every interval until ctx is done. A zero idle disables it.
func (r *Registry) RunReaper(ctx context.Context, idle, interval time.Duration) {
	if idle <= 0 {
		return
	}
	if interval <= 0 {
		interval = idle / 4
		if interval < time.Second {
			interval = time.Second
		}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap(idle)
		}
	}
}
