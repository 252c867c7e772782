package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jirevwe/threadpool/faults"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// rfc3339Milli is like time.RFC3339Nano, but with millisecond precision
	rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"
)

var (
	createFaults = `create table if not exists faults (
			id TEXT not null primary key,
			task_id TEXT not null,
			worker_id TEXT not null,
			kind TEXT not null,
			message TEXT not null,
			payload BLOB not null,
			occurred_at TEXT not null,
			created_at TEXT not null default (strftime('%Y-%m-%dT%H:%M:%fZ'))
		) strict;`

	createFaultsTaskIndex = `create index if not exists idx_faults_task_id on faults (task_id);`
)

type faultRow struct {
	Id         string `db:"id"`
	TaskId     string `db:"task_id"`
	WorkerId   string `db:"worker_id"`
	Kind       string `db:"kind"`
	Message    string `db:"message"`
	Payload    []byte `db:"payload"`
	OccurredAt string `db:"occurred_at"`
	CreatedAt  string `db:"created_at"`
}

// Sqlite archives fault reports in a sqlite database. It implements
// faults.Reporter.
type Sqlite struct {
	logger *slog.Logger
	db     *sqlx.DB
}

var _ faults.Reporter = (*Sqlite)(nil)

func NewSqlite(dbPath string, logger *slog.Logger) (*Sqlite, error) {
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("%s?mode=rwc&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA journal_size_limit = 67108864;")
	if err != nil {
		return nil, closeOnError(db, err)
	}

	s := &Sqlite{db: db, logger: logger}

	ctx := context.Background()
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, createFaults); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, createFaultsTaskIndex); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, closeOnError(db, err)
	}

	return s, nil
}

// Report stores r. The full report is kept as a msgpack payload next to the
// indexed columns.
func (s *Sqlite) Report(ctx context.Context, r faults.Report) error {
	payload, err := r.Marshal()
	if err != nil {
		return fmt.Errorf("cannot encode fault %s: %w", r.Id, err)
	}

	row := faultRow{
		Id:         r.Id,
		TaskId:     r.TaskId,
		WorkerId:   r.WorkerId,
		Kind:       string(r.Kind),
		Message:    r.Message,
		Payload:    payload,
		OccurredAt: r.OccurredAt.UTC().Format(rfc3339Milli),
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, innerErr := tx.NamedExecContext(ctx, `insert into faults (id, task_id, worker_id, kind, message, payload, occurred_at)
			values (:id, :task_id, :worker_id, :kind, :message, :payload, :occurred_at)`, row)
		return innerErr
	})
}

// List returns at most limit reports, newest first. Rows whose payload
// cannot be decoded are logged and skipped.
func (s *Sqlite) List(ctx context.Context, limit int) ([]faults.Report, error) {
	var rows []faultRow
	err := s.db.SelectContext(ctx, &rows, `select * from faults order by id desc limit $1`, limit)
	if err != nil {
		return nil, err
	}

	reports := make([]faults.Report, 0, len(rows))
	for _, row := range rows {
		r, err := faults.UnmarshalReport(row.Payload)
		if err != nil {
			s.logger.Error("cannot decode fault payload", "fault_id", row.Id, "error", err)
			continue
		}
		reports = append(reports, r)
	}

	return reports, nil
}

func (s *Sqlite) Count(ctx context.Context) (n int, err error) {
	err = s.db.GetContext(ctx, &n, `select count(*) from faults`)
	return n, err
}

// Prune deletes reports that occurred before cutoff and returns how many
// were removed.
func (s *Sqlite) Prune(ctx context.Context, cutoff time.Time) (n int64, err error) {
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, innerErr := tx.ExecContext(ctx, `delete from faults where occurred_at < $1`, cutoff.UTC().Format(rfc3339Milli))
		if innerErr != nil {
			return innerErr
		}
		n, innerErr = res.RowsAffected()
		return innerErr
	})
	return n, err
}

func (s *Sqlite) Truncate(ctx context.Context) (err error) {
	_, err = s.db.ExecContext(ctx, `delete from faults`)
	return err
}

func (s *Sqlite) Close() error {
	return s.db.Close()
}

func (s *Sqlite) inTx(ctx context.Context, cb func(*sqlx.Tx) error) (err error) {
	tx, beginErr := s.db.BeginTxx(ctx, nil)
	if beginErr != nil {
		return fmt.Errorf("cannot start tx: %w", beginErr)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = rollback(tx, nil)
			panic(rec)
		}
	}()

	if err = cb(tx); err != nil {
		return rollback(tx, err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("cannot commit tx: %w", commitErr)
	}

	return nil
}

func rollback(tx *sqlx.Tx, err error) error {
	if txErr := tx.Rollback(); txErr != nil {
		return fmt.Errorf("cannot roll back tx after error (tx error: %v), original error: %w", txErr, err)
	}
	return err
}

func closeOnError(db *sqlx.DB, err error) error {
	if closeErr := db.Close(); closeErr != nil {
		return fmt.Errorf("cannot close db (close error: %v), original error: %w", closeErr, err)
	}
	return err
}
