package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"demandline/internal/domain"
)

// DayLayout formats the keys of the per-day series.
const DayLayout = "2006-01-02"

type Totals struct {
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Rate      float64 `json:"rate"`
	RateLabel string  `json:"rate_label"`
}

type CollaboratorRow struct {
	UserID domain.UserID `json:"user_id"`
	Name   string        `json:"name"`
	Totals
}

type TypeCount struct {
	Type  domain.DemandType `json:"type"`
	Label string            `json:"label"`
	Count int               `json:"count"`
}

type StatusCount struct {
	UserID domain.UserID `json:"user_id"`
	Name   string        `json:"name"`
	Status domain.Status `json:"status"`
	Count  int           `json:"count"`
}

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Dashboard holds every aggregate derived from one filtered demand set.
type Dashboard struct {
	Totals                Totals            `json:"totals"`
	PerCollaborator       []CollaboratorRow `json:"per_collaborator"`
	PerType               []TypeCount       `json:"per_type"`
	PerCollaboratorStatus []StatusCount     `json:"per_collaborator_status"`
	PerDay                []DayCount        `json:"per_day"`
}

// Compute aggregates ds, which the caller has already filtered. Every roster
// user, type and status gets a row even when its count is zero. Days are
// taken in loc.
func Compute(ds []domain.Demand, roster []domain.User, loc *time.Location) Dashboard {
	if loc == nil {
		loc = time.Local
	}
	dash := Dashboard{Totals: totals(ds)}

	byUser := make(map[domain.UserID][]domain.Demand, len(roster))
	for _, d := range ds {
		byUser[d.CollaboratorID] = append(byUser[d.CollaboratorID], d)
	}
	for _, u := range roster {
		mine := byUser[u.ID]
		dash.PerCollaborator = append(dash.PerCollaborator, CollaboratorRow{UserID: u.ID, Name: u.Name, Totals: totals(mine)})
		for _, s := range domain.Statuses {
			dash.PerCollaboratorStatus = append(dash.PerCollaboratorStatus, StatusCount{
				UserID: u.ID,
				Name:   u.Name,
				Status: s,
				Count:  count(mine, func(d domain.Demand) bool { return d.Status == s }),
			})
		}
	}

	for _, t := range domain.DemandTypes {
		dash.PerType = append(dash.PerType, TypeCount{
			Type:  t,
			Label: t.Label(),
			Count: count(ds, func(d domain.Demand) bool { return d.Type == t }),
		})
	}

	perDay := map[string]int{}
	for _, d := range ds {
		perDay[d.CreatedAt.In(loc).Format(DayLayout)]++
	}
	dash.PerDay = make([]DayCount, 0, len(perDay))
	for day, n := range perDay {
		dash.PerDay = append(dash.PerDay, DayCount{Day: day, Count: n})
	}
	sort.Slice(dash.PerDay, func(i, j int) bool { return dash.PerDay[i].Day < dash.PerDay[j].Day })
	return dash
}

func totals(ds []domain.Demand) Totals {
	t := Totals{
		Total:     len(ds),
		Completed: count(ds, func(d domain.Demand) bool { return d.Status.Done() }),
	}
	rate := Rate(t.Completed, t.Total)
	t.Rate = rate.InexactFloat64()
	t.RateLabel = rate.StringFixed(1) + "%"
	return t
}

// Rate returns completed/total as a percentage rounded half-to-even to one
// decimal place, or zero when total is zero.
func Rate(completed, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(completed)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		RoundBank(1)
}

func count(ds []domain.Demand, pred func(domain.Demand) bool) int {
	n := 0
	for _, d := range ds {
		if pred(d) {
			n++
		}
	}
	return n
}
