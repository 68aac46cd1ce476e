package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandline/internal/domain"
)

var roster = []domain.User{
	{ID: "1", Name: "Líder João", Leader: true},
	{ID: "2", Name: "Colaborador Maria"},
	{ID: "3", Name: "Colaborador Pedro"},
}

func at(d, h int) time.Time { return time.Date(2024, 5, d, h, 0, 0, 0, time.UTC) }

func TestEmptySetHasZeroRate(t *testing.T) {
	dash := Compute(nil, roster, time.UTC)
	assert.Equal(t, 0, dash.Totals.Total)
	assert.Equal(t, 0.0, dash.Totals.Rate)
	assert.Equal(t, "0.0%", dash.Totals.RateLabel)
	require.Len(t, dash.PerCollaborator, 3)
	for _, row := range dash.PerCollaborator {
		assert.Equal(t, "0.0%", row.RateLabel)
	}
	assert.Len(t, dash.PerType, len(domain.DemandTypes))
	assert.Len(t, dash.PerCollaboratorStatus, len(roster)*len(domain.Statuses))
	assert.Empty(t, dash.PerDay)
}

func TestAllDoneIsHundred(t *testing.T) {
	ds := []domain.Demand{
		{ID: 1, CollaboratorID: "3", Type: domain.TypeProposal, Status: domain.StatusConfirmed, CreatedAt: at(1, 9)},
		{ID: 2, CollaboratorID: "3", Type: domain.TypeProposal, Status: domain.StatusCompleted, CreatedAt: at(1, 10)},
	}
	dash := Compute(ds, roster, time.UTC)
	assert.Equal(t, 100.0, dash.Totals.Rate)
	assert.Equal(t, "100.0%", dash.Totals.RateLabel)
	assert.Equal(t, "100.0%", dash.PerCollaborator[2].RateLabel)
	assert.Equal(t, "0.0%", dash.PerCollaborator[1].RateLabel)
}

func TestRateRounding(t *testing.T) {
	cases := []struct {
		completed, total int
		want             string
	}{
		{1, 3, "33.3"},
		{2, 3, "66.7"},
		{1, 16, "6.2"},
		{3, 16, "18.8"},
		{1, 8, "12.5"},
		{0, 5, "0.0"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Rate(tc.completed, tc.total).StringFixed(1), "%d/%d", tc.completed, tc.total)
	}
}

func TestBreakdownsSumToTotal(t *testing.T) {
	ds := []domain.Demand{
		{ID: 1, CollaboratorID: "2", Type: domain.TypeDraft, Status: domain.StatusPending, CreatedAt: at(3, 9)},
		{ID: 2, CollaboratorID: "3", Type: domain.TypeProposal, Status: domain.StatusCompleted, CreatedAt: at(1, 9)},
		{ID: 3, CollaboratorID: "3", Type: domain.TypeProposal, Status: domain.StatusPending, CreatedAt: at(1, 23)},
		{ID: 4, CollaboratorID: "2", Type: domain.TypeBillingRequest, Status: domain.StatusConfirmed, CreatedAt: at(3, 12)},
	}
	dash := Compute(ds, roster, time.UTC)

	sumType := 0
	for _, tc := range dash.PerType {
		sumType += tc.Count
	}
	assert.Equal(t, dash.Totals.Total, sumType)

	sumStatus := 0
	for _, sc := range dash.PerCollaboratorStatus {
		sumStatus += sc.Count
	}
	assert.Equal(t, dash.Totals.Total, sumStatus)

	assert.Equal(t, 2, dash.Totals.Completed)
	assert.Equal(t, "50.0%", dash.Totals.RateLabel)
	assert.Equal(t, []DayCount{{Day: "2024-05-01", Count: 2}, {Day: "2024-05-03", Count: 2}}, dash.PerDay)

	assert.Equal(t, StatusCount{UserID: "2", Name: "Colaborador Maria", Status: domain.StatusConfirmed, Count: 1}, dash.PerCollaboratorStatus[5])
	assert.Equal(t, 0, dash.PerCollaborator[0].Total)
}

func TestPerDayUsesLocation(t *testing.T) {
	brt := time.FixedZone("BRT", -3*3600)
	ds := []domain.Demand{{ID: 1, CollaboratorID: "2", Type: domain.TypeDraft, Status: domain.StatusPending, CreatedAt: at(2, 1)}}
	dash := Compute(ds, roster, brt)
	assert.Equal(t, []DayCount{{Day: "2024-05-01", Count: 1}}, dash.PerDay)
}
