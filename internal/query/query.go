package query

import (
	"sort"

	"demandline/internal/domain"
)

// DemandFilter combines its selections conjunctively.
type DemandFilter struct {
	Collaborators Selection[domain.UserID]
	Statuses      Selection[domain.Status]
	Priorities    Selection[domain.Priority]
	Types         Selection[domain.DemandType]
	Created       DateRange
}

func (f DemandFilter) Match(d domain.Demand) bool {
	return f.Collaborators.Match(d.CollaboratorID) &&
		f.Statuses.Match(d.Status) &&
		f.Priorities.Match(d.Priority) &&
		f.Types.Match(d.Type) &&
		f.Created.Contains(d.CreatedAt)
}

// Demands returns the matching demands in input order.
func Demands(ds []domain.Demand, f DemandFilter) []domain.Demand {
	out := make([]domain.Demand, 0, len(ds))
	for _, d := range ds {
		if f.Match(d) {
			out = append(out, d)
		}
	}
	return out
}

// VisibleTo returns the demands assigned to user that match f. The
// collaborator selection of f is replaced by user.
func VisibleTo(ds []domain.Demand, user domain.UserID, f DemandFilter) []domain.Demand {
	f.Collaborators = Only(user)
	return Demands(ds, f)
}

// AwaitingConfirmation returns completed demands the leader has not confirmed.
func AwaitingConfirmation(ds []domain.Demand) []domain.Demand {
	var out []domain.Demand
	for _, d := range ds {
		if d.AwaitingConfirmation() {
			out = append(out, d)
		}
	}
	return out
}

type HistoryFilter struct {
	Actors  Selection[domain.UserID]
	Types   Selection[domain.DemandType]
	Actions Selection[domain.Action]
	Period  DateRange
}

func (f HistoryFilter) Match(e domain.ActivityEntry) bool {
	return f.Actors.Match(e.ActorID) &&
		f.Types.Match(e.DemandType) &&
		f.Actions.Match(e.Action) &&
		f.Period.Contains(e.Timestamp)
}

// History filters entries and orders them most recent first. Entries
// sharing a timestamp keep their input order.
func History(entries []domain.ActivityEntry, f HistoryFilter) []domain.ActivityEntry {
	out := make([]domain.ActivityEntry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
