package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"demandline/internal/app"
	"demandline/internal/domain"
	"demandline/internal/query"
	"demandline/internal/replay"
	"demandline/internal/report"
	"demandline/internal/session"
)

type replayFlags struct {
	file         string
	as           string
	collaborator []string
	types        []string
	from, to     string
	today        bool
}

func replayCmd() *cobra.Command {
	var f replayFlags
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run a scripted session and print its views",
		Long: `Replay applies a YAML script of create, complete and confirm steps to a fresh
session, then prints the four views: the chosen user's pending demands, the
leader's pending confirmations, the history and the dashboard.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.file == "" {
				return fmt.Errorf("--file is required")
			}
			script, err := replay.Load(f.file)
			if err != nil {
				return err
			}
			return withRuntime(func(rt *app.Runtime) error {
				sess, outcomes, runErr := replay.Run(cmd.Context(), rt.Settings, script, rt.SessionOptions()...)
				if sess == nil {
					return runErr
				}
				defer sess.Close()
				v, err := collectViews(cmd.Context(), sess, f)
				if err != nil {
					return err
				}
				v.Steps = outcomes
				if viper.GetBool("json") {
					if err := printJSON(v); err != nil {
						return err
					}
				} else {
					renderViews(v)
				}
				return runErr
			})
		},
	}
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "replay script (YAML)")
	cmd.Flags().StringVar(&f.as, "as", "", "user whose pending demands are shown (default: every collaborator with demands)")
	cmd.Flags().StringSliceVar(&f.collaborator, "collaborator", nil, "dashboard collaborator ids (default all)")
	cmd.Flags().StringSliceVar(&f.types, "type", nil, "dashboard demand types (default all)")
	cmd.Flags().StringVar(&f.from, "from", "", "dashboard first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "dashboard last day, YYYY-MM-DD")
	cmd.Flags().BoolVar(&f.today, "today", false, "limit the dashboard to the replay clock's current day")
	return cmd
}

type views struct {
	Steps         []replay.Outcome           `json:"steps"`
	Mine          map[string][]domain.Demand `json:"my_demands"`
	Confirmations []domain.Demand            `json:"pending_confirmations"`
	History       []domain.ActivityEntry     `json:"history"`
	Dashboard     report.Dashboard           `json:"dashboard"`
	Roster        []domain.User              `json:"-"`
	Location      *time.Location             `json:"-"`
}

func (v views) name(id domain.UserID) string {
	for _, u := range v.Roster {
		if u.ID == id {
			return u.Name
		}
	}
	return string(id)
}

func collectViews(ctx context.Context, sess *session.Session, f replayFlags) (views, error) {
	v := views{Mine: map[string][]domain.Demand{}, Roster: sess.Users().All(), Location: sess.Location()}

	pending := query.DemandFilter{Statuses: query.Only(domain.StatusPending)}
	targets := v.Roster
	if f.as != "" {
		u, err := sess.Users().Lookup(domain.UserID(f.as))
		if err != nil {
			return v, err
		}
		targets = []domain.User{u}
	}
	for _, u := range targets {
		ds, err := sess.ListVisibleDemands(ctx, u.ID, pending)
		if err != nil {
			return v, err
		}
		if len(ds) > 0 || f.as != "" {
			v.Mine[string(u.ID)] = ds
		}
	}

	var err error
	if v.Confirmations, err = sess.ListPendingConfirmations(ctx); err != nil {
		return v, err
	}
	if v.History, err = sess.ListHistory(ctx, query.HistoryFilter{}); err != nil {
		return v, err
	}
	filter, err := dashboardFilter(f, sess.Location(), lastActivity(v.History))
	if err != nil {
		return v, err
	}
	if v.Dashboard, err = sess.ComputeDashboard(ctx, filter); err != nil {
		return v, err
	}
	return v, nil
}

func lastActivity(history []domain.ActivityEntry) time.Time {
	if len(history) == 0 {
		return time.Now()
	}
	return history[0].Timestamp
}

func dashboardFilter(f replayFlags, loc *time.Location, now time.Time) (query.DemandFilter, error) {
	var filter query.DemandFilter
	if len(f.collaborator) > 0 {
		ids := make([]domain.UserID, 0, len(f.collaborator))
		for _, c := range f.collaborator {
			ids = append(ids, domain.UserID(strings.TrimSpace(c)))
		}
		filter.Collaborators = query.Only(ids...)
	}
	if len(f.types) > 0 {
		types := make([]domain.DemandType, 0, len(f.types))
		for _, raw := range f.types {
			t, err := domain.ParseDemandType(raw)
			if err != nil {
				return filter, err
			}
			types = append(types, t)
		}
		filter.Types = query.Only(types...)
	}
	switch {
	case f.today:
		day := now.In(loc)
		filter.Created = query.Between(day, day)
	case f.from != "" || f.to != "":
		from, to := f.from, f.to
		if from == "" {
			from = to
		}
		if to == "" {
			to = from
		}
		start, err := time.ParseInLocation("2006-01-02", from, loc)
		if err != nil {
			return filter, fmt.Errorf("--from: %w", err)
		}
		end, err := time.ParseInLocation("2006-01-02", to, loc)
		if err != nil {
			return filter, fmt.Errorf("--to: %w", err)
		}
		filter.Created = query.Between(start, end)
	}
	return filter, nil
}

func renderViews(v views) {
	stamp := func(t time.Time) string { return t.In(v.Location).Format("02/01/2006 15:04") }

	fmt.Println("Steps")
	tw := newTable(table.Row{"#", "Action", "Actor", "Demand", "Result"})
	for _, o := range v.Steps {
		result, demand := "ok", ""
		if o.Reason != "" {
			result = "rejected: " + o.Reason
		}
		if o.Demand != nil {
			demand = fmt.Sprintf("%d %s", o.Demand.ID, o.Demand.Title)
		}
		tw.AppendRow(table.Row{o.Index, o.Action, v.name(domain.UserID(o.Actor)), demand, result})
	}
	tw.Render()

	for _, u := range v.Roster {
		ds, ok := v.Mine[string(u.ID)]
		if !ok {
			continue
		}
		fmt.Printf("\nPending demands of %s\n", u.Name)
		tw = newTable(table.Row{"ID", "Title", "Type", "Priority", "Due"})
		for _, d := range ds {
			tw.AppendRow(table.Row{d.ID, d.Title, d.Type.Label(), d.Priority.Label(), d.DueDate.Format("02/01/2006")})
		}
		tw.Render()
	}

	fmt.Println("\nAwaiting confirmation")
	tw = newTable(table.Row{"ID", "Title", "Collaborator", "Completed"})
	for _, d := range v.Confirmations {
		completed := ""
		if d.CompletedAt != nil {
			completed = stamp(*d.CompletedAt)
		}
		tw.AppendRow(table.Row{d.ID, d.Title, v.name(d.CollaboratorID), completed})
	}
	tw.Render()

	fmt.Println("\nHistory")
	tw = newTable(table.Row{"When", "Demand", "Type", "Action", "By", "Status"})
	for _, e := range v.History {
		tw.AppendRow(table.Row{stamp(e.Timestamp), e.DemandTitle, e.DemandType.Label(), e.Action.Label(), e.ActorName, e.Status.Label()})
	}
	tw.Render()

	t := v.Dashboard.Totals
	fmt.Printf("\nDashboard: %d demands, %d completed, %s completion\n", t.Total, t.Completed, t.RateLabel)
	tw = newTable(table.Row{"Collaborator", "Total", "Completed", "Rate"})
	for _, row := range v.Dashboard.PerCollaborator {
		tw.AppendRow(table.Row{row.Name, row.Total, row.Completed, row.RateLabel})
	}
	tw.Render()
	tw = newTable(table.Row{"Type", "Count"})
	for _, tc := range v.Dashboard.PerType {
		tw.AppendRow(table.Row{tc.Label, tc.Count})
	}
	tw.Render()
	tw = newTable(table.Row{"Collaborator", "Status", "Count"})
	for _, sc := range v.Dashboard.PerCollaboratorStatus {
		tw.AppendRow(table.Row{sc.Name, sc.Status.Label(), sc.Count})
	}
	tw.Render()
	tw = newTable(table.Row{"Day", "Created"})
	for _, dc := range v.Dashboard.PerDay {
		tw.AppendRow(table.Row{dc.Day, dc.Count})
	}
	tw.Render()
}

func printUsers(users []domain.User) error {
	if viper.GetBool("json") {
		return printJSON(users)
	}
	tw := newTable(table.Row{"ID", "Name", "Role"})
	for _, u := range users {
		role := "collaborator"
		if u.Leader {
			role = "leader"
		}
		tw.AppendRow(table.Row{u.ID, u.Name, role})
	}
	tw.Render()
	return nil
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}
