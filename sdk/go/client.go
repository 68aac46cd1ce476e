package demandlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal demandline HTTP API client bound to one session.
type Client struct {
	BaseURL     string
	SessionID   string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no token is set.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Leader bool   `json:"leader"`
}

// Demand is the API demand model.
type Demand struct {
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

type NewDemand struct {
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Type           string `json:"type"`
	CollaboratorID string `json:"collaborator_id"`
	Priority       string `json:"priority"`
	DueDate        string `json:"due_date"`
}

// Activity is one activity log entry.
type Activity struct {
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

type Totals struct {
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Rate      float64 `json:"rate"`
	RateLabel string  `json:"rate_label"`
}

type Dashboard struct {
	Totals          Totals `json:"totals"`
	PerCollaborator []struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
		Totals
	} `json:"per_collaborator"`
	PerType []struct {
		Type  string `json:"type"`
		Label string `json:"label"`
		Count int    `json:"count"`
	} `json:"per_type"`
	PerCollaboratorStatus []struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
		Status string `json:"status"`
		Count  int    `json:"count"`
	} `json:"per_collaborator_status"`
	PerDay []struct {
		Day   string `json:"day"`
		Count int    `json:"count"`
	} `json:"per_day"`
}

// Filter holds query parameters; empty fields are omitted.
type Filter map[string]string

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Code extracts error.code from the response envelope.
func (e *APIError) Code() string {
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal([]byte(e.Body), &env)
	return env.Error.Code
}

// StartSession creates a session and binds the client to it.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(ctx, http.MethodPost, "v0/sessions", nil, &resp); err != nil {
		return "", err
	}
	c.SessionID = resp.SessionID
	return resp.SessionID, nil
}

func (c *Client) EndSession(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "v0/sessions/"+url.PathEscape(c.SessionID), nil, nil)
}

func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "v0/users", nil, &resp)
	return resp, err
}

// Login selects the acting user and keeps the returned token.
func (c *Client) Login(ctx context.Context, userID string) (User, error) {
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, c.sessionPath("login"), map[string]string{"user_id": userID}, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

func (c *Client) CreateDemand(ctx context.Context, in NewDemand) (Demand, error) {
	var resp Demand
	err := c.do(ctx, http.MethodPost, c.sessionPath("demands"), in, &resp)
	return resp, err
}

func (c *Client) Complete(ctx context.Context, id int64) (Demand, error) {
	var resp Demand
	err := c.do(ctx, http.MethodPost, c.sessionPath(fmt.Sprintf("demands/%d/complete", id)), nil, &resp)
	return resp, err
}

func (c *Client) Confirm(ctx context.Context, id int64) (Demand, error) {
	var resp Demand
	err := c.do(ctx, http.MethodPost, c.sessionPath(fmt.Sprintf("demands/%d/confirm", id)), nil, &resp)
	return resp, err
}

// MyDemands lists the acting user's demands; keys are status, priority and type.
func (c *Client) MyDemands(ctx context.Context, f Filter) ([]Demand, error) {
	var resp []Demand
	err := c.do(ctx, http.MethodGet, c.sessionPath("demands/mine")+f.encode(), nil, &resp)
	return resp, err
}

func (c *Client) PendingConfirmations(ctx context.Context) ([]Demand, error) {
	var resp []Demand
	err := c.do(ctx, http.MethodGet, c.sessionPath("confirmations"), nil, &resp)
	return resp, err
}

// History keys are actor, type, action, from and to.
func (c *Client) History(ctx context.Context, f Filter) ([]Activity, error) {
	var resp []Activity
	err := c.do(ctx, http.MethodGet, c.sessionPath("history")+f.encode(), nil, &resp)
	return resp, err
}

// Dashboard keys are collaborator, type, from and to.
func (c *Client) Dashboard(ctx context.Context, f Filter) (Dashboard, error) {
	var resp Dashboard
	err := c.do(ctx, http.MethodGet, c.sessionPath("dashboard")+f.encode(), nil, &resp)
	return resp, err
}

func (f Filter) encode() string {
	q := url.Values{}
	for k, v := range f {
		if v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) sessionPath(p string) string {
	return fmt.Sprintf("v0/sessions/%s/%s", url.PathEscape(c.SessionID), strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
