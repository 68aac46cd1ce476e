package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"demandline/internal/domain"
	"demandline/internal/lifecycle"
	"demandline/internal/query"
	"demandline/internal/session"
	"demandline/internal/users"
)

type handlers struct {
	sessions *session.Registry
	users    users.Directory
	auth     AuthConfig
}

type sessionPath struct {
	SessionID string `path:"sid"`
}

type demandPath struct {
	SessionID string `path:"sid"`
	DemandID  int64  `path:"id"`
}

// open resolves the session and the acting user, who must be on the roster.
func (h handlers) open(ctx context.Context, sid string) (*session.Session, domain.User, huma.StatusError) {
	sess, err := h.sessions.Get(sid)
	if err != nil {
		return nil, domain.User{}, handleError(err)
	}
	actor, authErr := actorFor(ctx, sid)
	if authErr != nil {
		return nil, domain.User{}, authErr
	}
	user, err := sess.Users().Lookup(actor)
	if err != nil {
		return nil, domain.User{}, handleError(err)
	}
	return sess, user, nil
}

func registerUsers(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List the user roster",
		Security:    public,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []UserResponse `json:"body"`
	}, error) {
		all := h.users.All()
		out := make([]UserResponse, 0, len(all))
		for _, u := range all {
			out = append(out, userResponse(u))
		}
		return &struct {
			Body []UserResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerSessions(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/sessions",
		Summary:       "Start an empty session",
		DefaultStatus: http.StatusCreated,
		Security:      public,
		Errors:        []int{http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SessionResponse `json:"body"`
	}, error) {
		sess, err := h.sessions.Open(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionResponse `json:"body"`
		}{Body: SessionResponse{SessionID: sess.ID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-session",
		Method:        http.MethodDelete,
		Path:          "/sessions/{sid}",
		Summary:       "End a session and discard its data",
		DefaultStatus: http.StatusNoContent,
		Security:      public,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct{}, error) {
		if err := h.sessions.Close(input.SessionID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/sessions/{sid}/login",
		Summary:     "Act as a roster user in a session",
		Security:    public,
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string       `path:"sid"`
		Body      LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		sess, err := h.sessions.Get(input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		user, err := sess.Users().Lookup(domain.UserID(strings.TrimSpace(input.Body.UserID)))
		if err != nil {
			return nil, handleError(err)
		}
		token, expires, err := signToken(h.auth, user.ID, sess.ID, time.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token, ExpiresAt: expires, User: userResponse(user)}}, nil
	})
}

func registerDemands(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-demand",
		Method:        http.MethodPost,
		Path:          "/sessions/{sid}/demands",
		Summary:       "Create a demand (leader only)",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		SessionID string              `path:"sid"`
		Body      CreateDemandRequest `json:"body"`
	}) (*struct {
		Body DemandResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		sess, actor, apiErr := h.open(ctx, input.SessionID)
		if apiErr != nil {
			return nil, apiErr
		}
		if !actor.Leader {
			return nil, handleError(&lifecycle.ActorError{ActorID: actor.ID, Action: domain.ActionCreated})
		}
		in, apiErr := newDemandFields(input.Body, sess.Location())
		if apiErr != nil {
			return nil, apiErr
		}
		d, err := sess.CreateDemand(ctx, in, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandResponse `json:"body"`
		}{Body: demandResponse(d)}, nil
	})

	transition := func(id, path, summary string, apply func(*session.Session, context.Context, int64, domain.UserID) (domain.Demand, error)) {
		huma.Register(api, huma.Operation{
			OperationID: id,
			Method:      http.MethodPost,
			Path:        path,
			Summary:     summary,
			Errors: []int{
				http.StatusUnauthorized,
				http.StatusForbidden,
				http.StatusNotFound,
				http.StatusConflict,
			},
		}, func(ctx context.Context, input *demandPath) (*struct {
			Body DemandResponse `json:"body"`
		}, error) {
			sess, actor, apiErr := h.open(ctx, input.SessionID)
			if apiErr != nil {
				return nil, apiErr
			}
			d, err := apply(sess, ctx, input.DemandID, actor.ID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body DemandResponse `json:"body"`
			}{Body: demandResponse(d)}, nil
		})
	}
	transition("complete-demand", "/sessions/{sid}/demands/{id}/complete", "Mark a pending demand completed", (*session.Session).Complete)
	transition("confirm-demand", "/sessions/{sid}/demands/{id}/confirm", "Confirm a completed demand (leader only)", (*session.Session).Confirm)
}

func newDemandFields(req CreateDemandRequest, loc *time.Location) (domain.NewDemand, huma.StatusError) {
	typ, err := domain.ParseDemandType(req.Type)
	if err != nil {
		return domain.NewDemand{}, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": "type"})
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return domain.NewDemand{}, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": "priority"})
	}
	due, apiErr := parseDate("due_date", req.DueDate, loc)
	if apiErr != nil {
		return domain.NewDemand{}, apiErr
	}
	return domain.NewDemand{
		Title:          req.Title,
		Description:    strings.TrimSpace(req.Description),
		Type:           typ,
		CollaboratorID: domain.UserID(strings.TrimSpace(req.CollaboratorID)),
		Priority:       priority,
		DueDate:        due,
	}, nil
}

func registerViews(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "my-demands",
		Method:      http.MethodGet,
		Path:        "/sessions/{sid}/demands/mine",
		Summary:     "Demands assigned to the acting user",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"sid"`
		Status    string `query:"status" doc:"Comma separated statuses or all; defaults to pending"`
		Priority  string `query:"priority" doc:"Comma separated priorities or all"`
		Type      string `query:"type" doc:"Comma separated demand types or all"`
	}) (*struct {
		Body []DemandResponse `json:"body"`
	}, error) {
		sess, actor, apiErr := h.open(ctx, input.SessionID)
		if apiErr != nil {
			return nil, apiErr
		}
		status := input.Status
		if strings.TrimSpace(status) == "" {
			status = string(domain.StatusPending)
		}
		var f query.DemandFilter
		if f.Statuses, apiErr = parseSelection("status", status, domain.ParseStatus); apiErr != nil {
			return nil, apiErr
		}
		if f.Priorities, apiErr = parseSelection("priority", input.Priority, domain.ParsePriority); apiErr != nil {
			return nil, apiErr
		}
		if f.Types, apiErr = parseSelection("type", input.Type, domain.ParseDemandType); apiErr != nil {
			return nil, apiErr
		}
		items, err := sess.ListVisibleDemands(ctx, actor.ID, f)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DemandResponse `json:"body"`
		}{Body: mapDemands(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pending-confirmations",
		Method:      http.MethodGet,
		Path:        "/sessions/{sid}/confirmations",
		Summary:     "Completed demands awaiting the leader (leader only)",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body []DemandResponse `json:"body"`
	}, error) {
		sess, actor, apiErr := h.open(ctx, input.SessionID)
		if apiErr != nil {
			return nil, apiErr
		}
		if !actor.Leader {
			return nil, handleError(&lifecycle.ActorError{ActorID: actor.ID, Action: domain.ActionConfirmed})
		}
		items, err := sess.ListPendingConfirmations(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DemandResponse `json:"body"`
		}{Body: mapDemands(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "history",
		Method:      http.MethodGet,
		Path:        "/sessions/{sid}/history",
		Summary:     "Activity log, most recent first",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"sid"`
		Actor     string `query:"actor" doc:"Comma separated user ids or all"`
		Type      string `query:"type"`
		Action    string `query:"action" doc:"created, completed, confirmed or all"`
		From      string `query:"from" doc:"First day, YYYY-MM-DD"`
		To        string `query:"to" doc:"Last day, YYYY-MM-DD"`
	}) (*struct {
		Body []ActivityResponse `json:"body"`
	}, error) {
		sess, _, apiErr := h.open(ctx, input.SessionID)
		if apiErr != nil {
			return nil, apiErr
		}
		var f query.HistoryFilter
		if f.Actors, apiErr = parseSelection("actor", input.Actor, parseUserID); apiErr != nil {
			return nil, apiErr
		}
		if f.Types, apiErr = parseSelection("type", input.Type, domain.ParseDemandType); apiErr != nil {
			return nil, apiErr
		}
		if f.Actions, apiErr = parseSelection("action", input.Action, domain.ParseAction); apiErr != nil {
			return nil, apiErr
		}
		if f.Period, apiErr = parseRange(input.From, input.To, sess.Location()); apiErr != nil {
			return nil, apiErr
		}
		items, err := sess.ListHistory(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ActivityResponse `json:"body"`
		}{Body: mapActivity(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/sessions/{sid}/dashboard",
		Summary:     "Aggregates over the filtered demands",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID    string `path:"sid"`
		Collaborator string `query:"collaborator" doc:"Comma separated user ids or all"`
		Type         string `query:"type"`
		From         string `query:"from"`
		To           string `query:"to"`
	}) (*struct {
		Body DashboardResponse `json:"body"`
	}, error) {
		sess, _, apiErr := h.open(ctx, input.SessionID)
		if apiErr != nil {
			return nil, apiErr
		}
		var f query.DemandFilter
		if f.Collaborators, apiErr = parseSelection("collaborator", input.Collaborator, parseUserID); apiErr != nil {
			return nil, apiErr
		}
		if f.Types, apiErr = parseSelection("type", input.Type, domain.ParseDemandType); apiErr != nil {
			return nil, apiErr
		}
		if f.Created, apiErr = parseRange(input.From, input.To, sess.Location()); apiErr != nil {
			return nil, apiErr
		}
		dash, err := sess.ComputeDashboard(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DashboardResponse `json:"body"`
		}{Body: dash}, nil
	})
}
