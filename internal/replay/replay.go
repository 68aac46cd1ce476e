package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"demandline/internal/domain"
	"demandline/internal/lifecycle"
	"demandline/internal/session"
)

// Script is a recorded sequence of interactions replayed against a fresh session.
type Script struct {
	// Start is the clock value of the first step; zero means now.
	Start time.Time `yaml:"start"`
	// Step is how far the clock moves after each step; default one minute.
	Step  Duration `yaml:"step"`
	Steps []Step   `yaml:"steps"`
}

// Step is one interaction. Action is create, complete, confirm or wait.
type Step struct {
	Action      string   `yaml:"action"`
	Actor       string   `yaml:"actor"`
	Demand      int64    `yaml:"demand"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Type        string   `yaml:"type"`
	Assignee    string   `yaml:"collaborator"`
	Priority    string   `yaml:"priority"`
	Due         string   `yaml:"due"`
	Wait        Duration `yaml:"wait"`
	// Expect names the rejection the step should produce, e.g. unauthorized_actor.
	Expect string `yaml:"expect"`
}

// Duration reads Go duration strings such as 90m or 24h.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Outcome records what one step did.
type Outcome struct {
	Index  int            `json:"index"`
	Action string         `json:"action"`
	Actor  string         `json:"actor,omitempty"`
	Demand *domain.Demand `json:"demand,omitempty"`
	Reason string         `json:"rejected,omitempty"`
}

// StepError reports a step whose outcome differs from its expectation.
type StepError struct {
	Index int
	Step  Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Step.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func Load(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("invalid replay script: %w", err)
	}
	if len(s.Steps) == 0 {
		return Script{}, errors.New("replay script has no steps")
	}
	for i, st := range s.Steps {
		switch st.Action {
		case "create", "complete", "confirm", "wait":
		default:
			return Script{}, fmt.Errorf("step %d: unknown action %q", i+1, st.Action)
		}
	}
	return s, nil
}

// Clock is the stepping clock a replay drives.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Run opens a session on settings and applies every step. The session is
// returned open even when a step fails so callers can inspect its views.
func Run(ctx context.Context, settings session.Settings, s Script, opts ...session.Option) (*session.Session, []Outcome, error) {
	start := s.Start
	if start.IsZero() {
		start = time.Now()
	}
	if settings.Location != nil {
		start = start.In(settings.Location)
	}
	step := time.Duration(s.Step)
	if step <= 0 {
		step = time.Minute
	}
	clock := &Clock{now: start}
	sess, err := session.Open(ctx, "", settings, append(opts, session.WithClock(clock.Now))...)
	if err != nil {
		return nil, nil, err
	}
	var outcomes []Outcome
	for i, st := range s.Steps {
		out := Outcome{Index: i + 1, Action: st.Action, Actor: st.Actor}
		if st.Action == "wait" {
			clock.Advance(time.Duration(st.Wait))
			outcomes = append(outcomes, out)
			continue
		}
		d, err := apply(ctx, sess, st)
		if err != nil {
			out.Reason = lifecycle.Reason(err)
		} else {
			out.Demand = &d
		}
		outcomes = append(outcomes, out)
		if mismatch := check(st, err, out.Reason); mismatch != nil {
			return sess, outcomes, &StepError{Index: i, Step: st, Err: mismatch}
		}
		clock.Advance(step)
	}
	return sess, outcomes, nil
}

func check(st Step, err error, reason string) error {
	switch {
	case st.Expect == "" && err != nil:
		return err
	case st.Expect != "" && err == nil:
		return fmt.Errorf("expected %s, step succeeded", st.Expect)
	case st.Expect != "" && st.Expect != reason:
		return fmt.Errorf("expected %s, got %s: %w", st.Expect, reason, err)
	}
	return nil
}

func apply(ctx context.Context, sess *session.Session, st Step) (domain.Demand, error) {
	actor := domain.UserID(st.Actor)
	switch st.Action {
	case "complete":
		return sess.Complete(ctx, st.Demand, actor)
	case "confirm":
		return sess.Confirm(ctx, st.Demand, actor)
	}
	if !sess.Users().IsLeader(actor) {
		return domain.Demand{}, &lifecycle.ActorError{ActorID: actor, Action: domain.ActionCreated}
	}
	in := domain.NewDemand{
		Title:          st.Title,
		Description:    strings.TrimSpace(st.Description),
		CollaboratorID: domain.UserID(st.Assignee),
	}
	var err error
	if in.Type, err = domain.ParseDemandType(st.Type); err != nil {
		return domain.Demand{}, &lifecycle.FieldError{Field: "type", Reason: err.Error()}
	}
	if in.Priority, err = domain.ParsePriority(st.Priority); err != nil {
		return domain.Demand{}, &lifecycle.FieldError{Field: "priority", Reason: err.Error()}
	}
	if in.DueDate, err = time.ParseInLocation("2006-01-02", st.Due, sess.Location()); err != nil {
		return domain.Demand{}, &lifecycle.FieldError{Field: "due", Reason: "must be YYYY-MM-DD"}
	}
	return sess.CreateDemand(ctx, in, actor)
}
