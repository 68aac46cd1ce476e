package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandline/internal/config"
	"demandline/internal/domain"
	"demandline/internal/replay"
	"demandline/internal/session"
)

func replayScenario(t *testing.T) *session.Session {
	t.Helper()
	cfg := config.Default()
	cfg.Timezone = "UTC"
	settings, err := session.SettingsFromConfig(cfg)
	require.NoError(t, err)
	script, err := replay.Load("../../internal/replay/testdata/scenario.yml")
	require.NoError(t, err)
	sess, _, err := replay.Run(context.Background(), settings, script)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestCollectViewsDefaults(t *testing.T) {
	sess := replayScenario(t)
	v, err := collectViews(context.Background(), sess, replayFlags{})
	require.NoError(t, err)

	require.Contains(t, v.Mine, "2")
	assert.Len(t, v.Mine["2"], 1)
	assert.NotContains(t, v.Mine, "3", "confirmed demand is no longer pending")
	assert.Empty(t, v.Confirmations)
	assert.Len(t, v.History, 4)
	assert.Equal(t, 2, v.Dashboard.Totals.Total)
	assert.Equal(t, "50.0%", v.Dashboard.Totals.RateLabel)
}

func TestCollectViewsForUser(t *testing.T) {
	sess := replayScenario(t)
	v, err := collectViews(context.Background(), sess, replayFlags{as: "3"})
	require.NoError(t, err)
	require.Len(t, v.Mine, 1)
	assert.Empty(t, v.Mine["3"])

	_, err = collectViews(context.Background(), sess, replayFlags{as: "99"})
	assert.ErrorIs(t, err, domain.ErrUnknownUser)
}

func TestDashboardFilterToday(t *testing.T) {
	sess := replayScenario(t)
	v, err := collectViews(context.Background(), sess, replayFlags{today: true})
	require.NoError(t, err)
	// Both demands were created the day before the last confirmation.
	assert.Equal(t, 0, v.Dashboard.Totals.Total)
	assert.Equal(t, "0.0%", v.Dashboard.Totals.RateLabel)
}

func TestDashboardFilterFlags(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 6, 4, 12, 0, 0, 0, loc)

	f, err := dashboardFilter(replayFlags{collaborator: []string{"2", " 3"}, types: []string{"draft"}, from: "2024-06-03"}, loc, now)
	require.NoError(t, err)
	assert.True(t, f.Collaborators.Match("3"))
	assert.False(t, f.Collaborators.Match("1"))
	assert.True(t, f.Types.Match(domain.TypeDraft))
	assert.False(t, f.Types.Match(domain.TypeProposal))
	assert.True(t, f.Created.Contains(time.Date(2024, 6, 3, 23, 59, 0, 0, loc)))
	assert.False(t, f.Created.Contains(now))

	_, err = dashboardFilter(replayFlags{types: []string{"memo"}}, loc, now)
	assert.Error(t, err)
	_, err = dashboardFilter(replayFlags{to: "06/04/2024"}, loc, now)
	assert.Error(t, err)
}
