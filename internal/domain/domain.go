package domain

import "time"

// UserID identifies an entry of the user directory.
type UserID string

type User struct {
	ID     UserID `json:"id"`
	Name   string `json:"name"`
	Leader bool   `json:"leader"`
}

type Demand struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Type            DemandType `json:"type"`
	Status          Status     `json:"status"`
	LeaderID        UserID     `json:"leader_id"`
	CollaboratorID  UserID     `json:"collaborator_id"`
	LeaderConfirmed bool       `json:"leader_confirmed"`
	Priority        Priority   `json:"priority"`
	CreatedAt       time.Time  `json:"created_at"`
	DueDate         time.Time  `json:"due_date"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// AwaitingConfirmation reports whether the leader still has to confirm d.
func (d Demand) AwaitingConfirmation() bool {
	return d.Status == StatusCompleted && !d.LeaderConfirmed
}

// NewDemand is the validated field bundle produced by the creation form.
type NewDemand struct {
	Title          string
	Description    string
	Type           DemandType
	CollaboratorID UserID
	Priority       Priority
	DueDate        time.Time
}

// ActivityEntry is an immutable snapshot written on every lifecycle step.
type ActivityEntry struct {
	Seq         int64      `json:"seq"`
	Timestamp   time.Time  `json:"timestamp"`
	DemandID    int64      `json:"demand_id"`
	DemandTitle string     `json:"demand_title"`
	DemandType  DemandType `json:"demand_type"`
	Action      Action     `json:"action"`
	ActorID     UserID     `json:"actor_id"`
	ActorName   string     `json:"actor_name"`
	Status      Status     `json:"status"`
}
