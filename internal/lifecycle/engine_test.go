package lifecycle_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"demandline/internal/domain"
	"demandline/internal/lifecycle"
	"demandline/internal/metrics"
	"demandline/internal/store"
	"demandline/internal/store/memory"
	"demandline/internal/store/sqlite"
	"demandline/internal/users"
)

type testEnv struct {
	Engine lifecycle.Engine
	Ctx    context.Context
	Logs   *bytes.Buffer
}

var roster = []domain.User{
	{ID: "1", Name: "Líder João"},
	{ID: "2", Name: "Colaborador Maria"},
	{ID: "3", Name: "Colaborador Pedro"},
}

func newTestEnv(t *testing.T, s store.Store) testEnv {
	t.Helper()
	dir, err := users.New(roster, "1")
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	rec, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	var logs bytes.Buffer
	eng := lifecycle.New(s, dir)
	eng.Log = zerolog.New(&logs)
	eng.Metrics = rec
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	t.Cleanup(func() { s.Close() })
	return testEnv{Engine: eng, Ctx: context.Background(), Logs: &logs}
}

func proposal(title string) domain.NewDemand {
	return domain.NewDemand{
		Title:          title,
		Description:    "Send the proposal",
		Type:           domain.TypeProposal,
		CollaboratorID: "3",
		Priority:       domain.PriorityHigh,
		DueDate:        time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

func mustLog(t *testing.T, env testEnv) []domain.ActivityEntry {
	t.Helper()
	entries, err := env.Engine.Store.ListLog(env.Ctx)
	if err != nil {
		t.Fatalf("list log: %v", err)
	}
	return entries
}

func TestCreateAssignsNextIDAndPending(t *testing.T) {
	env := newTestEnv(t, memory.New())
	for i := 1; i <= 3; i++ {
		d, err := env.Engine.Create(env.Ctx, proposal("P"), "1")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if d.ID != int64(i) {
			t.Fatalf("expected id %d, got %d", i, d.ID)
		}
		if d.Status != domain.StatusPending || d.CompletedAt != nil || d.LeaderConfirmed {
			t.Fatalf("unexpected initial state: %+v", d)
		}
		if d.LeaderID != "1" {
			t.Fatalf("expected leader 1, got %s", d.LeaderID)
		}
	}
	entries := mustLog(t, env)
	if len(entries) != 3 {
		t.Fatalf("expected 3 created entries, got %d", len(entries))
	}
	if entries[0].Action != domain.ActionCreated || entries[0].ActorName != "Líder João" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	env := newTestEnv(t, memory.New())
	cases := map[string]func(*domain.NewDemand){
		"title":    func(n *domain.NewDemand) { n.Title = "   " },
		"type":     func(n *domain.NewDemand) { n.Type = "memo" },
		"priority": func(n *domain.NewDemand) { n.Priority = "" },
		"due_date": func(n *domain.NewDemand) { n.DueDate = time.Time{} },
	}
	for field, mutate := range cases {
		in := proposal("P")
		mutate(&in)
		_, err := env.Engine.Create(env.Ctx, in, "1")
		var fe *lifecycle.FieldError
		if !errors.As(err, &fe) || fe.Field != field {
			t.Fatalf("%s: expected field error, got %v", field, err)
		}
		if !errors.Is(err, domain.ErrMissingField) {
			t.Fatalf("%s: expected ErrMissingField, got %v", field, err)
		}
	}
	in := proposal("P")
	in.CollaboratorID = "9"
	if _, err := env.Engine.Create(env.Ctx, in, "1"); !errors.Is(err, domain.ErrUnknownUser) {
		t.Fatalf("expected unknown collaborator, got %v", err)
	}
	if _, err := env.Engine.Create(env.Ctx, proposal("P"), "9"); !errors.Is(err, domain.ErrUnknownUser) {
		t.Fatalf("expected unknown actor, got %v", err)
	}
	if n := len(mustLog(t, env)); n != 0 {
		t.Fatalf("rejected creates must not log, got %d entries", n)
	}
}

func TestCompleteThenConfirmScenario(t *testing.T) {
	for name, s := range map[string]func(t *testing.T) store.Store{
		"memory": func(t *testing.T) store.Store { return memory.New() },
		"sqlite": func(t *testing.T) store.Store {
			st, err := sqlite.Open(context.Background(), "engine-"+uuid.NewString())
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return st
		},
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, s(t))
			d, err := env.Engine.Create(env.Ctx, proposal("D1"), "1")
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			d, err = env.Engine.Complete(env.Ctx, d.ID, "3")
			if err != nil {
				t.Fatalf("complete: %v", err)
			}
			if d.Status != domain.StatusCompleted || d.CompletedAt == nil {
				t.Fatalf("expected completed with timestamp, got %+v", d)
			}
			d, err = env.Engine.Confirm(env.Ctx, d.ID, "1")
			if err != nil {
				t.Fatalf("confirm: %v", err)
			}
			if d.Status != domain.StatusConfirmed || !d.LeaderConfirmed || d.CompletedAt == nil {
				t.Fatalf("expected confirmed, got %+v", d)
			}

			entries := mustLog(t, env)
			if len(entries) != 3 {
				t.Fatalf("expected 3 entries, got %d", len(entries))
			}
			want := []struct {
				action domain.Action
				actor  domain.UserID
				status domain.Status
			}{
				{domain.ActionCreated, "1", domain.StatusPending},
				{domain.ActionCompleted, "3", domain.StatusCompleted},
				{domain.ActionConfirmed, "1", domain.StatusConfirmed},
			}
			for i, w := range want {
				got := entries[i]
				if got.Action != w.action || got.ActorID != w.actor || got.Status != w.status {
					t.Fatalf("entry %d: got %+v", i, got)
				}
				if got.DemandTitle != "D1" || got.DemandType != domain.TypeProposal {
					t.Fatalf("entry %d snapshot: %+v", i, got)
				}
			}
			if !entries[1].Timestamp.Before(entries[2].Timestamp) {
				t.Fatalf("expected increasing timestamps")
			}
		})
	}
}

func TestCompleteRejectsNonPending(t *testing.T) {
	env := newTestEnv(t, memory.New())
	d, _ := env.Engine.Create(env.Ctx, proposal("P"), "1")
	if _, err := env.Engine.Complete(env.Ctx, d.ID, "3"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err := env.Engine.Complete(env.Ctx, d.ID, "3")
	var te *lifecycle.TransitionError
	if !errors.As(err, &te) || te.From != domain.StatusCompleted {
		t.Fatalf("expected transition error from completed, got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if n := len(mustLog(t, env)); n != 2 {
		t.Fatalf("expected log unchanged at 2 entries, got %d", n)
	}
}

func TestConfirmRequiresPriorComplete(t *testing.T) {
	env := newTestEnv(t, memory.New())
	d, _ := env.Engine.Create(env.Ctx, proposal("P"), "1")
	if _, err := env.Engine.Confirm(env.Ctx, d.ID, "1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("confirm pending: expected invalid transition, got %v", err)
	}
	got, err := env.Engine.Store.GetDemand(env.Ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusPending || got.LeaderConfirmed {
		t.Fatalf("demand mutated by rejected confirm: %+v", got)
	}

	env.Engine.Complete(env.Ctx, d.ID, "3")
	if _, err := env.Engine.Confirm(env.Ctx, d.ID, "1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := env.Engine.Confirm(env.Ctx, d.ID, "1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("confirm twice: expected invalid transition, got %v", err)
	}
	if _, err := env.Engine.Complete(env.Ctx, d.ID, "3"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("confirmed is terminal, got %v", err)
	}
}

func TestNonLeaderConfirmIsUnauthorized(t *testing.T) {
	env := newTestEnv(t, memory.New())
	d, _ := env.Engine.Create(env.Ctx, proposal("P"), "1")
	env.Engine.Complete(env.Ctx, d.ID, "3")
	before := len(mustLog(t, env))

	_, err := env.Engine.Confirm(env.Ctx, d.ID, "2")
	var ae *lifecycle.ActorError
	if !errors.As(err, &ae) || ae.ActorID != "2" {
		t.Fatalf("expected actor error, got %v", err)
	}
	if !errors.Is(err, domain.ErrUnauthorizedActor) {
		t.Fatalf("expected ErrUnauthorizedActor, got %v", err)
	}
	// checked before the demand lookup
	if _, err := env.Engine.Confirm(env.Ctx, 99, "2"); !errors.Is(err, domain.ErrUnauthorizedActor) {
		t.Fatalf("expected unauthorized for missing demand, got %v", err)
	}
	if after := len(mustLog(t, env)); after != before {
		t.Fatalf("log changed: %d -> %d", before, after)
	}
	if !strings.Contains(env.Logs.String(), `"reason":"unauthorized_actor"`) {
		t.Fatalf("expected warn log with reason, got %s", env.Logs.String())
	}
}

func TestUnknownDemandAndUser(t *testing.T) {
	env := newTestEnv(t, memory.New())
	if _, err := env.Engine.Complete(env.Ctx, 5, "3"); !errors.Is(err, domain.ErrUnknownDemand) {
		t.Fatalf("expected unknown demand, got %v", err)
	}
	if _, err := env.Engine.Confirm(env.Ctx, 5, "1"); !errors.Is(err, domain.ErrUnknownDemand) {
		t.Fatalf("expected unknown demand, got %v", err)
	}
	if _, err := env.Engine.Complete(env.Ctx, 1, "42"); !errors.Is(err, domain.ErrUnknownUser) {
		t.Fatalf("expected unknown user, got %v", err)
	}
}

func TestLogEntriesAreSnapshots(t *testing.T) {
	env := newTestEnv(t, memory.New())
	d, _ := env.Engine.Create(env.Ctx, proposal("P"), "1")
	env.Engine.Complete(env.Ctx, d.ID, "3")
	entries := mustLog(t, env)
	if entries[0].Status != domain.StatusPending {
		t.Fatalf("created entry must keep pending snapshot, got %s", entries[0].Status)
	}
}

func TestCompletedAtMatchesStatus(t *testing.T) {
	env := newTestEnv(t, memory.New())
	for i := 0; i < 4; i++ {
		env.Engine.Create(env.Ctx, proposal("P"), "1")
	}
	env.Engine.Complete(env.Ctx, 2, "3")
	env.Engine.Complete(env.Ctx, 3, "2")
	env.Engine.Confirm(env.Ctx, 3, "1")
	demands, err := env.Engine.Store.ListDemands(env.Ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, d := range demands {
		if (d.CompletedAt != nil) != d.Status.Done() {
			t.Fatalf("demand %d: completed_at %v with status %s", d.ID, d.CompletedAt, d.Status)
		}
		if d.LeaderConfirmed != (d.Status == domain.StatusConfirmed) {
			t.Fatalf("demand %d: leader_confirmed %v with status %s", d.ID, d.LeaderConfirmed, d.Status)
		}
	}
}
