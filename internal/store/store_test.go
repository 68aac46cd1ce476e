package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandline/internal/domain"
	"demandline/internal/store"
	"demandline/internal/store/memory"
	"demandline/internal/store/sqlite"
)

var backends = map[string]func(t *testing.T) store.Store{
	"memory": func(t *testing.T) store.Store { return memory.New() },
	"sqlite": func(t *testing.T) store.Store {
		s, err := sqlite.Open(context.Background(), "store-test-"+uuid.NewString())
		require.NoError(t, err)
		return s
	},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s store.Store)) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

var created = time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)

func fields(title string) domain.NewDemand {
	return domain.NewDemand{
		Title:          title,
		Description:    "desc " + title,
		Type:           domain.TypeProposal,
		CollaboratorID: "3",
		Priority:       domain.PriorityHigh,
		DueDate:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func createOne(t *testing.T, s store.Store, title string) domain.Demand {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	d, err := tx.CreateDemand(ctx, fields(title), "1", created)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return d
}

func TestCreateDemandAssignsSequentialIDs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		for i := 1; i <= 3; i++ {
			before, err := s.ListDemands(ctx)
			require.NoError(t, err)
			d := createOne(t, s, "demand")
			assert.Equal(t, int64(len(before)+1), d.ID)
			assert.Equal(t, domain.StatusPending, d.Status)
			assert.False(t, d.LeaderConfirmed)
			assert.Nil(t, d.CompletedAt)
			assert.Equal(t, domain.UserID("1"), d.LeaderID)
		}
		got, err := s.GetDemand(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.ID)
		assert.Equal(t, "desc demand", got.Description)
		assert.True(t, got.CreatedAt.Equal(created))
	})
}

func TestGetUnknownDemand(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store.Store) {
		_, err := s.GetDemand(context.Background(), 7)
		assert.True(t, errors.Is(err, domain.ErrUnknownDemand), "got %v", err)
	})
}

func TestRollbackDiscardsWrites(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		d, err := tx.CreateDemand(ctx, fields("gone"), "1", created)
		require.NoError(t, err)
		_, err = tx.AppendLog(ctx, domain.ActivityEntry{Timestamp: created, DemandID: d.ID, DemandTitle: d.Title, DemandType: d.Type, Action: domain.ActionCreated, ActorID: "1", ActorName: "Leader", Status: d.Status})
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		demands, err := s.ListDemands(ctx)
		require.NoError(t, err)
		assert.Empty(t, demands)
		entries, err := s.ListLog(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestSaveDemandAndLogSnapshots(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		d := createOne(t, s, "snap")

		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		first, err := tx.AppendLog(ctx, domain.ActivityEntry{Timestamp: created, DemandID: d.ID, DemandTitle: d.Title, DemandType: d.Type, Action: domain.ActionCreated, ActorID: "1", ActorName: "Leader", Status: d.Status})
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.Equal(t, int64(1), first.Seq)

		done := created.Add(time.Hour)
		d.Status = domain.StatusCompleted
		d.CompletedAt = &done
		tx, err = s.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.SaveDemand(ctx, d))
		second, err := tx.AppendLog(ctx, domain.ActivityEntry{Timestamp: done, DemandID: d.ID, DemandTitle: d.Title, DemandType: d.Type, Action: domain.ActionCompleted, ActorID: "3", ActorName: "Pedro", Status: d.Status})
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.Equal(t, int64(2), second.Seq)

		got, err := s.GetDemand(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, got.CompletedAt.Equal(done))

		entries, err := s.ListLog(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, domain.StatusPending, entries[0].Status, "earlier entry keeps its snapshot")
		assert.Equal(t, domain.StatusCompleted, entries[1].Status)
	})
}

func TestSaveUnknownDemand(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()
		err = tx.SaveDemand(ctx, domain.Demand{ID: 42, Type: domain.TypeDraft, Status: domain.StatusPending, Priority: domain.PriorityLow})
		assert.True(t, errors.Is(err, domain.ErrUnknownDemand), "got %v", err)
	})
}

func TestReadsReturnCopies(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		d := createOne(t, s, "copy")
		listed, err := s.ListDemands(ctx)
		require.NoError(t, err)
		listed[0].Title = "mutated"
		got, err := s.GetDemand(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, "copy", got.Title)
	})
}
