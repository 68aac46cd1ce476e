package store

import (
	"context"
	"time"

	"demandline/internal/domain"
)

// Store owns the demand list and the activity log of one session.
// Reads return copies; writes go through a Tx obtained from Begin.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	GetDemand(ctx context.Context, id int64) (domain.Demand, error)
	ListDemands(ctx context.Context) ([]domain.Demand, error)
	ListLog(ctx context.Context) ([]domain.ActivityEntry, error)
	Close() error
}

// Tx groups a demand write with its activity entry. Rollback after Commit is a no-op.
type Tx interface {
	// CreateDemand assigns id = current count + 1 and the initial Pending state.
	CreateDemand(ctx context.Context, in domain.NewDemand, leader domain.UserID, createdAt time.Time) (domain.Demand, error)
	// SaveDemand writes back a demand mutated by the lifecycle engine.
	SaveDemand(ctx context.Context, d domain.Demand) error
	// AppendLog appends e and returns it with its sequence number.
	AppendLog(ctx context.Context, e domain.ActivityEntry) (domain.ActivityEntry, error)
	Commit() error
	Rollback() error
}

// NewPending builds the initial record for a freshly created demand.
func NewPending(id int64, in domain.NewDemand, leader domain.UserID, createdAt time.Time) domain.Demand {
	return domain.Demand{
		ID:              id,
		Title:           in.Title,
		Description:     in.Description,
		Type:            in.Type,
		Status:          domain.StatusPending,
		LeaderID:        leader,
		CollaboratorID:  in.CollaboratorID,
		LeaderConfirmed: false,
		Priority:        in.Priority,
		CreatedAt:       createdAt,
		DueDate:         in.DueDate,
	}
}

// CloneDemand copies d so the caller cannot alias CompletedAt.
func CloneDemand(d domain.Demand) domain.Demand {
	if d.CompletedAt != nil {
		ts := *d.CompletedAt
		d.CompletedAt = &ts
	}
	return d
}
