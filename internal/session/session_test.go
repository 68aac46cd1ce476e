package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandline/internal/config"
	"demandline/internal/domain"
	"demandline/internal/query"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newSettings(t *testing.T, driver string) Settings {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Driver = driver
	cfg.Timezone = "UTC"
	s, err := SettingsFromConfig(cfg)
	require.NoError(t, err)
	return s
}

func newSession(t *testing.T, driver string, c *clock) *Session {
	t.Helper()
	s, err := Open(context.Background(), "", newSettings(t, driver), WithClock(c.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func demandFor(collaborator domain.UserID, typ domain.DemandType) domain.NewDemand {
	return domain.NewDemand{
		Title:          "Demand for " + string(collaborator),
		Type:           typ,
		CollaboratorID: collaborator,
		Priority:       domain.PriorityHigh,
		DueDate:        time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateCompleteConfirmDashboard(t *testing.T) {
	for _, driver := range []string{config.DriverMemory, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			c := &clock{now: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)}
			s := newSession(t, driver, c)
			ctx := context.Background()

			d, err := s.CreateDemand(ctx, demandFor("3", domain.TypeProposal), "1")
			require.NoError(t, err)
			c.Advance(time.Hour)
			_, err = s.Complete(ctx, d.ID, "3")
			require.NoError(t, err)

			pending, err := s.ListPendingConfirmations(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 1)

			c.Advance(time.Hour)
			_, err = s.Confirm(ctx, d.ID, "1")
			require.NoError(t, err)

			pending, err = s.ListPendingConfirmations(ctx)
			require.NoError(t, err)
			assert.Empty(t, pending)

			history, err := s.ListHistory(ctx, query.HistoryFilter{})
			require.NoError(t, err)
			require.Len(t, history, 3)
			assert.Equal(t, domain.ActionConfirmed, history[0].Action)
			assert.Equal(t, domain.ActionCreated, history[2].Action)

			dash, err := s.ComputeDashboard(ctx, query.DemandFilter{Collaborators: query.Only[domain.UserID]("3")})
			require.NoError(t, err)
			assert.Equal(t, 1, dash.Totals.Total)
			assert.Equal(t, "100.0%", dash.Totals.RateLabel)
		})
	}
}

func TestDashboardDateRangeExcludesDemand(t *testing.T) {
	c := &clock{now: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)}
	s := newSession(t, config.DriverMemory, c)
	ctx := context.Background()

	_, err := s.CreateDemand(ctx, demandFor("2", domain.TypeDraft), "1")
	require.NoError(t, err)
	c.Advance(48 * time.Hour)
	_, err = s.CreateDemand(ctx, demandFor("3", domain.TypeProposal), "1")
	require.NoError(t, err)

	day := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)
	dash, err := s.ComputeDashboard(ctx, query.DemandFilter{Created: query.Between(day, day)})
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Totals.Total)
	for _, tc := range dash.PerType {
		if tc.Type == domain.TypeDraft {
			assert.Zero(t, tc.Count)
		}
		if tc.Type == domain.TypeProposal {
			assert.Equal(t, 1, tc.Count)
		}
	}
	require.Len(t, dash.PerDay, 1)
	assert.Equal(t, "2024-06-05", dash.PerDay[0].Day)
	assert.Zero(t, dash.PerCollaborator[1].Total)
}

func TestVisibleDemandsDefaultsAndUnknownUser(t *testing.T) {
	c := &clock{now: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)}
	s := newSession(t, config.DriverMemory, c)
	ctx := context.Background()

	first, _ := s.CreateDemand(ctx, demandFor("3", domain.TypeProposal), "1")
	s.CreateDemand(ctx, demandFor("3", domain.TypeDraft), "1")
	s.CreateDemand(ctx, demandFor("2", domain.TypeDraft), "1")
	s.Complete(ctx, first.ID, "3")

	mine, err := s.ListVisibleDemands(ctx, "3", query.DemandFilter{Statuses: query.Only(domain.StatusPending)})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(2), mine[0].ID)

	_, err = s.ListVisibleDemands(ctx, "77", query.DemandFilter{})
	assert.True(t, errors.Is(err, domain.ErrUnknownUser))
}

func TestClosedSessionRejectsCalls(t *testing.T) {
	c := &clock{now: time.Now()}
	s := newSession(t, config.DriverMemory, c)
	require.NoError(t, s.Close())
	_, err := s.ListHistory(context.Background(), query.HistoryFilter{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, s.Close())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	settings := newSettings(t, config.DriverMemory)
	settings.Driver = "postgres"
	_, err := Open(context.Background(), "x", settings)
	assert.Error(t, err)
}

func TestRegistryReapsIdleSessions(t *testing.T) {
	c := &clock{now: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)}
	r := NewRegistry(newSettings(t, config.DriverMemory), WithClock(c.Now))
	ctx := context.Background()

	idle, err := r.Open(ctx)
	require.NoError(t, err)
	busy, err := r.Open(ctx)
	require.NoError(t, err)

	c.Advance(90 * time.Minute)
	_, err = busy.ListPendingConfirmations(ctx)
	require.NoError(t, err)
	c.Advance(60 * time.Minute)

	reaped := r.Reap(2 * time.Hour)
	assert.Equal(t, []string{idle.ID}, reaped)
	_, err = r.Get(idle.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := r.Get(busy.ID)
	require.NoError(t, err)
	assert.Same(t, busy, got)

	assert.ErrorIs(t, r.Close(idle.ID), ErrNotFound)
	require.NoError(t, r.CloseAll())
	assert.Empty(t, r.IDs())
}
