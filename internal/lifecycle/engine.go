package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"demandline/internal/domain"
	"demandline/internal/metrics"
	"demandline/internal/store"
	"demandline/internal/users"
)

// Engine is the only writer of a session's store. Every applied action
// writes its demand change and activity entry in one transaction.
type Engine struct {
	Store   store.Store
	Users   users.Directory
	Log     zerolog.Logger
	Metrics *metrics.Recorder
	Now     func() time.Time
}

func New(s store.Store, dir users.Directory) Engine {
	return Engine{
		Store: s,
		Users: dir,
		Log:   zerolog.Nop(),
		Now:   time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Create stores a new Pending demand and logs it as created by actor.
func (e Engine) Create(ctx context.Context, in domain.NewDemand, actor domain.UserID) (domain.Demand, error) {
	who, err := e.Users.Lookup(actor)
	if err != nil {
		return domain.Demand{}, e.reject(domain.ActionCreated, 0, actor, err)
	}
	if err := e.checkFields(&in); err != nil {
		return domain.Demand{}, e.reject(domain.ActionCreated, 0, actor, err)
	}

	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return domain.Demand{}, err
	}
	defer tx.Rollback()

	now := e.now()
	d, err := tx.CreateDemand(ctx, in, e.Users.Leader(), now)
	if err != nil {
		return domain.Demand{}, err
	}
	if err := e.logEntry(ctx, tx, d, domain.ActionCreated, who, now); err != nil {
		return domain.Demand{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Demand{}, err
	}
	e.applied(domain.ActionCreated, d, actor)
	return d, nil
}

func (e Engine) checkFields(in *domain.NewDemand) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return &FieldError{Field: "title", Reason: "required"}
	}
	if !in.Type.Valid() {
		return &FieldError{Field: "type", Reason: "must be one of the demand types"}
	}
	if !in.Priority.Valid() {
		return &FieldError{Field: "priority", Reason: "must be low, medium or high"}
	}
	if in.DueDate.IsZero() {
		return &FieldError{Field: "due_date", Reason: "required"}
	}
	if in.CollaboratorID == "" {
		return &FieldError{Field: "collaborator_id", Reason: "required"}
	}
	if _, err := e.Users.Lookup(in.CollaboratorID); err != nil {
		return err
	}
	return nil
}

// Complete moves a Pending demand to Completed. Any known user may complete.
func (e Engine) Complete(ctx context.Context, id int64, actor domain.UserID) (domain.Demand, error) {
	who, err := e.Users.Lookup(actor)
	if err != nil {
		return domain.Demand{}, e.reject(domain.ActionCompleted, id, actor, err)
	}
	d, err := e.Store.GetDemand(ctx, id)
	if err != nil {
		return domain.Demand{}, e.reject(domain.ActionCompleted, id, actor, err)
	}
	if err := ensureTransition(d, domain.ActionCompleted); err != nil {
		return domain.Demand{}, e.reject(domain.ActionCompleted, id, actor, err)
	}
	now := e.now()
	d.Status = domain.StatusCompleted
	d.CompletedAt = &now
	if err := e.save(ctx, d, domain.ActionCompleted, who, now); err != nil {
		return domain.Demand{}, err
	}
	e.applied(domain.ActionCompleted, d, actor)
	return d, nil
}

// Confirm records the leader's confirmation of a Completed demand.
func (e Engine) Confirm(ctx context.Context, id int64, actor domain.UserID) (domain.Demand, error) {
	who, err := e.Users.Lookup(actor)
	if err != nil {
		return domain.Demand{}, e.reject(domain.ActionConfirmed, id, actor, err)
	}
	if !e.Users.IsLeader(actor) {
		return domain.Demand{}, e.reject(domain.ActionConfirmed, id, actor, &ActorError{ActorID: actor, Action: domain.ActionConfirmed})
	}
	d, err := e.Store.GetDemand(ctx, id)
	if err != nil {
		return domain.Demand{}, e.reject(domain.ActionConfirmed, id, actor, err)
	}
	if err := ensureTransition(d, domain.ActionConfirmed); err != nil {
		return domain.Demand{}, e.reject(domain.ActionConfirmed, id, actor, err)
	}
	d.Status = domain.StatusConfirmed
	d.LeaderConfirmed = true
	if err := e.save(ctx, d, domain.ActionConfirmed, who, e.now()); err != nil {
		return domain.Demand{}, err
	}
	e.applied(domain.ActionConfirmed, d, actor)
	return d, nil
}

func ensureTransition(d domain.Demand, action domain.Action) error {
	switch action {
	case domain.ActionCompleted:
		if d.Status == domain.StatusPending {
			return nil
		}
	case domain.ActionConfirmed:
		if d.AwaitingConfirmation() {
			return nil
		}
	}
	return &TransitionError{DemandID: d.ID, From: d.Status, Action: action}
}

func (e Engine) save(ctx context.Context, d domain.Demand, action domain.Action, who domain.User, at time.Time) error {
	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := tx.SaveDemand(ctx, d); err != nil {
		return err
	}
	if err := e.logEntry(ctx, tx, d, action, who, at); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) logEntry(ctx context.Context, tx store.Tx, d domain.Demand, action domain.Action, who domain.User, at time.Time) error {
	_, err := tx.AppendLog(ctx, domain.ActivityEntry{
		Timestamp:   at,
		DemandID:    d.ID,
		DemandTitle: d.Title,
		DemandType:  d.Type,
		Action:      action,
		ActorID:     who.ID,
		ActorName:   who.Name,
		Status:      d.Status,
	})
	return err
}

func (e Engine) applied(action domain.Action, d domain.Demand, actor domain.UserID) {
	e.Metrics.Transition(string(action))
	e.Log.Info().
		Str("action", string(action)).
		Int64("demand_id", d.ID).
		Str("actor", string(actor)).
		Str("status", string(d.Status)).
		Msg("demand " + string(action))
}

func (e Engine) reject(action domain.Action, id int64, actor domain.UserID, err error) error {
	reason := Reason(err)
	e.Metrics.Rejection(string(action), reason)
	e.Log.Warn().
		Err(err).
		Str("action", string(action)).
		Int64("demand_id", id).
		Str("actor", string(actor)).
		Str("reason", reason).
		Msg("action rejected")
	return err
}
