package server

import (
	"time"

	"demandline/internal/domain"
	"demandline/internal/report"
)

// Request payloads

type LoginRequest struct {
	UserID string `json:"user_id"`
}

type CreateDemandRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Type           string `json:"type" example:"proposal"`
	CollaboratorID string `json:"collaborator_id"`
	Priority       string `json:"priority" example:"high"`
	DueDate        string `json:"due_date" example:"2024-06-30" doc:"Calendar date, YYYY-MM-DD"`
}

// Response payloads

type SessionResponse struct {
	SessionID string `json:"session_id"`
}

type UserResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Leader bool   `json:"leader"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type DemandResponse struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Type            string     `json:"type"`
	TypeLabel       string     `json:"type_label"`
	Status          string     `json:"status"`
	StatusLabel     string     `json:"status_label"`
	LeaderID        string     `json:"leader_id"`
	CollaboratorID  string     `json:"collaborator_id"`
	LeaderConfirmed bool       `json:"leader_confirmed"`
	Priority        string     `json:"priority"`
	PriorityLabel   string     `json:"priority_label"`
	CreatedAt       time.Time  `json:"created_at"`
	DueDate         string     `json:"due_date"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type ActivityResponse struct {
	Seq         int64     `json:"seq"`
	Timestamp   time.Time `json:"timestamp"`
	DemandID    int64     `json:"demand_id"`
	DemandTitle string    `json:"demand_title"`
	DemandType  string    `json:"demand_type"`
	Action      string    `json:"action"`
	ActorID     string    `json:"actor_id"`
	ActorName   string    `json:"actor_name"`
	Status      string    `json:"status"`
}

type DashboardResponse = report.Dashboard

func userResponse(u domain.User) UserResponse {
	return UserResponse{ID: string(u.ID), Name: u.Name, Leader: u.Leader}
}

func demandResponse(d domain.Demand) DemandResponse {
	return DemandResponse{
		ID:              d.ID,
		Title:           d.Title,
		Description:     d.Description,
		Type:            string(d.Type),
		TypeLabel:       d.Type.Label(),
		Status:          string(d.Status),
		StatusLabel:     d.Status.Label(),
		LeaderID:        string(d.LeaderID),
		CollaboratorID:  string(d.CollaboratorID),
		LeaderConfirmed: d.LeaderConfirmed,
		Priority:        string(d.Priority),
		PriorityLabel:   d.Priority.Label(),
		CreatedAt:       d.CreatedAt,
		DueDate:         d.DueDate.Format(dateLayout),
		CompletedAt:     d.CompletedAt,
	}
}

func mapDemands(items []domain.Demand) []DemandResponse {
	out := make([]DemandResponse, 0, len(items))
	for _, d := range items {
		out = append(out, demandResponse(d))
	}
	return out
}

func mapActivity(items []domain.ActivityEntry) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(items))
	for _, e := range items {
		out = append(out, ActivityResponse{
			Seq:         e.Seq,
			Timestamp:   e.Timestamp,
			DemandID:    e.DemandID,
			DemandTitle: e.DemandTitle,
			DemandType:  string(e.DemandType),
			Action:      string(e.Action),
			ActorID:     string(e.ActorID),
			ActorName:   e.ActorName,
			Status:      string(e.Status),
		})
	}
	return out
}
