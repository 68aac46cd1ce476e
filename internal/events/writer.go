package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"demandline/internal/domain"
)

// TimeLayout is how timestamps are stored in SQL text columns.
const TimeLayout = time.RFC3339Nano

// Writer appends activity entries to the activity_log table.
type Writer struct {
	DB *sql.DB
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, e domain.ActivityEntry) (domain.ActivityEntry, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO activity_log(ts,demand_id,demand_title,demand_type,action,actor_id,actor_name,status) VALUES (?,?,?,?,?,?,?,?)`,
		e.Timestamp.Format(TimeLayout), e.DemandID, e.DemandTitle, string(e.DemandType), string(e.Action), string(e.ActorID), e.ActorName, string(e.Status))
	if err != nil {
		return e, fmt.Errorf("append activity: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return e, err
	}
	e.Seq = seq
	return e, nil
}

// List returns every entry in insertion order.
func (w Writer) List(ctx context.Context) ([]domain.ActivityEntry, error) {
	rows, err := w.DB.QueryContext(ctx, `SELECT seq,ts,demand_id,demand_title,demand_type,action,actor_id,actor_name,status FROM activity_log ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		var ts, demandType, action, actor, stat string
		if err := rows.Scan(&e.Seq, &ts, &e.DemandID, &e.DemandTitle, &demandType, &action, &actor, &e.ActorName, &stat); err != nil {
			return nil, err
		}
		if e.Timestamp, err = time.Parse(TimeLayout, ts); err != nil {
			return nil, fmt.Errorf("activity %d timestamp: %w", e.Seq, err)
		}
		e.DemandType = domain.DemandType(demandType)
		e.Action = domain.Action(action)
		e.ActorID = domain.UserID(actor)
		e.Status = domain.Status(stat)
		out = append(out, e)
	}
	return out, rows.Err()
}
