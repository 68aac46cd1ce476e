package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"demandline/internal/db"
	"demandline/internal/domain"
	"demandline/internal/events"
	"demandline/internal/migrate"
	"demandline/internal/store"
)

// Store keeps a session's demands in a private in-memory SQLite database.
// Nothing is written to disk; Close discards the data.
type Store struct {
	DB     *sql.DB
	Events events.Writer
}

// Open creates the database named name and applies the embedded migrations.
func Open(ctx context.Context, name string) (*Store, error) {
	conn, err := db.OpenMemory(db.Config{Name: name})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}
	return &Store{DB: conn, Events: events.Writer{DB: conn}}, nil
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	sqlTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &tx{tx: sqlTx, events: s.Events}, nil
}

const demandColumns = `id,title,description,type,status,leader_id,collaborator_id,leader_confirmed,priority,created_at,due_date,completed_at`

func (s *Store) GetDemand(ctx context.Context, id int64) (domain.Demand, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+demandColumns+` FROM demands WHERE id=?`, id)
	d, err := scanDemand(row)
	if err == sql.ErrNoRows {
		return d, fmt.Errorf("demand %d: %w", id, domain.ErrUnknownDemand)
	}
	return d, err
}

func (s *Store) ListDemands(ctx context.Context) ([]domain.Demand, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+demandColumns+` FROM demands ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Demand
	for rows.Next() {
		d, err := scanDemand(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (s *Store) ListLog(ctx context.Context) ([]domain.ActivityEntry, error) {
	return s.Events.List(ctx)
}

func (s *Store) Close() error {
	return s.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDemand(row scanner) (domain.Demand, error) {
	var d domain.Demand
	var description, completedAt sql.NullString
	var typ, status, leader, collaborator, priority, createdAt, dueDate string
	var confirmed int
	err := row.Scan(&d.ID, &d.Title, &description, &typ, &status, &leader, &collaborator, &confirmed, &priority, &createdAt, &dueDate, &completedAt)
	if err != nil {
		return d, err
	}
	if description.Valid {
		d.Description = description.String
	}
	d.Type = domain.DemandType(typ)
	d.Status = domain.Status(status)
	d.LeaderID = domain.UserID(leader)
	d.CollaboratorID = domain.UserID(collaborator)
	d.LeaderConfirmed = confirmed != 0
	d.Priority = domain.Priority(priority)
	if d.CreatedAt, err = time.Parse(events.TimeLayout, createdAt); err != nil {
		return d, fmt.Errorf("demand %d created_at: %w", d.ID, err)
	}
	if d.DueDate, err = time.Parse(events.TimeLayout, dueDate); err != nil {
		return d, fmt.Errorf("demand %d due_date: %w", d.ID, err)
	}
	if completedAt.Valid {
		ts, err := time.Parse(events.TimeLayout, completedAt.String)
		if err != nil {
			return d, fmt.Errorf("demand %d completed_at: %w", d.ID, err)
		}
		d.CompletedAt = &ts
	}
	return d, nil
}

type tx struct {
	tx     *sql.Tx
	events events.Writer
}

func (t *tx) CreateDemand(ctx context.Context, in domain.NewDemand, leader domain.UserID, createdAt time.Time) (domain.Demand, error) {
	var count int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM demands`).Scan(&count); err != nil {
		return domain.Demand{}, fmt.Errorf("count demands: %w", err)
	}
	d := store.NewPending(count+1, in, leader, createdAt)
	_, err := t.tx.ExecContext(ctx, `INSERT INTO demands(`+demandColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.Title, nullable(d.Description), string(d.Type), string(d.Status), string(d.LeaderID), string(d.CollaboratorID),
		boolInt(d.LeaderConfirmed), string(d.Priority), d.CreatedAt.Format(events.TimeLayout), d.DueDate.Format(events.TimeLayout), nullableTime(d.CompletedAt))
	if err != nil {
		return domain.Demand{}, fmt.Errorf("insert demand: %w", err)
	}
	return d, nil
}

func (t *tx) SaveDemand(ctx context.Context, d domain.Demand) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE demands SET title=?, description=?, type=?, status=?, collaborator_id=?, leader_confirmed=?, priority=?, due_date=?, completed_at=? WHERE id=?`,
		d.Title, nullable(d.Description), string(d.Type), string(d.Status), string(d.CollaboratorID), boolInt(d.LeaderConfirmed),
		string(d.Priority), d.DueDate.Format(events.TimeLayout), nullableTime(d.CompletedAt), d.ID)
	if err != nil {
		return fmt.Errorf("update demand: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("demand %d: %w", d.ID, domain.ErrUnknownDemand)
	}
	return nil
}

func (t *tx) AppendLog(ctx context.Context, e domain.ActivityEntry) (domain.ActivityEntry, error) {
	return t.events.Append(ctx, t.tx, e)
}

func (t *tx) Commit() error { return t.tx.Commit() }

func (t *tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.Format(events.TimeLayout)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
