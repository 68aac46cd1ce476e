package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"demandline/internal/domain"
	"demandline/internal/store"
)

var errTxDone = errors.New("transaction already finished")

// Store keeps demands and the activity log in slices. Demand ids are
// 1-based positions in the slice since demands are never deleted.
type Store struct {
	demands []domain.Demand
	log     []domain.ActivityEntry
	closed  bool
}

func New() *Store {
	return &Store{}
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	if s.closed {
		return nil, errors.New("store closed")
	}
	return &tx{s: s, saved: map[int64]domain.Demand{}}, nil
}

func (s *Store) GetDemand(ctx context.Context, id int64) (domain.Demand, error) {
	if id < 1 || id > int64(len(s.demands)) {
		return domain.Demand{}, fmt.Errorf("demand %d: %w", id, domain.ErrUnknownDemand)
	}
	return store.CloneDemand(s.demands[id-1]), nil
}

func (s *Store) ListDemands(ctx context.Context) ([]domain.Demand, error) {
	out := make([]domain.Demand, len(s.demands))
	for i, d := range s.demands {
		out[i] = store.CloneDemand(d)
	}
	return out, nil
}

func (s *Store) ListLog(ctx context.Context) ([]domain.ActivityEntry, error) {
	out := make([]domain.ActivityEntry, len(s.log))
	copy(out, s.log)
	return out, nil
}

func (s *Store) Close() error {
	s.closed = true
	s.demands = nil
	s.log = nil
	return nil
}

// tx stages writes and applies them to the slices on Commit.
type tx struct {
	s       *Store
	created []domain.Demand
	saved   map[int64]domain.Demand
	entries []domain.ActivityEntry
	done    bool
}

func (t *tx) CreateDemand(ctx context.Context, in domain.NewDemand, leader domain.UserID, createdAt time.Time) (domain.Demand, error) {
	if t.done {
		return domain.Demand{}, errTxDone
	}
	id := int64(len(t.s.demands) + len(t.created) + 1)
	d := store.NewPending(id, in, leader, createdAt)
	t.created = append(t.created, d)
	return store.CloneDemand(d), nil
}

func (t *tx) SaveDemand(ctx context.Context, d domain.Demand) error {
	if t.done {
		return errTxDone
	}
	known := int64(len(t.s.demands) + len(t.created))
	if d.ID < 1 || d.ID > known {
		return fmt.Errorf("demand %d: %w", d.ID, domain.ErrUnknownDemand)
	}
	t.saved[d.ID] = store.CloneDemand(d)
	return nil
}

func (t *tx) AppendLog(ctx context.Context, e domain.ActivityEntry) (domain.ActivityEntry, error) {
	if t.done {
		return e, errTxDone
	}
	e.Seq = int64(len(t.s.log) + len(t.entries) + 1)
	t.entries = append(t.entries, e)
	return e, nil
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.s.demands = append(t.s.demands, t.created...)
	for id, d := range t.saved {
		t.s.demands[id-1] = d
	}
	t.s.log = append(t.s.log, t.entries...)
	return nil
}

func (t *tx) Rollback() error {
	t.done = true
	return nil
}
