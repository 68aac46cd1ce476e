package lifecycle

import (
	"errors"
	"fmt"

	"demandline/internal/domain"
)

// TransitionError reports an action the demand's current status does not allow.
type TransitionError struct {
	DemandID int64
	From     domain.Status
	Action   domain.Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("demand %d is %s: %s not allowed", e.DemandID, e.From, e.Action)
}

func (e *TransitionError) Unwrap() error { return domain.ErrInvalidTransition }

// ActorError reports an actor lacking the role an action needs.
type ActorError struct {
	ActorID domain.UserID
	Action  domain.Action
}

func (e *ActorError) Error() string {
	return fmt.Sprintf("user %s may not perform %s", e.ActorID, e.Action)
}

func (e *ActorError) Unwrap() error { return domain.ErrUnauthorizedActor }

type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return domain.ErrMissingField }

// Reason is the short label used in logs and metrics for a rejection.
func Reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrUnauthorizedActor):
		return "unauthorized_actor"
	case errors.Is(err, domain.ErrUnknownUser):
		return "unknown_user"
	case errors.Is(err, domain.ErrUnknownDemand):
		return "unknown_demand"
	case errors.Is(err, domain.ErrMissingField):
		return "missing_field"
	default:
		return "internal"
	}
}
