package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to a SQLite database.
type DB struct {
	db *sql.DB
}

// NewDB opens (or creates) a SQLite database at path and runs schema migrations.
func NewDB(path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS traffic (
    day TEXT PRIMARY KEY,
    uploaded INTEGER NOT NULL DEFAULT 0,
    downloaded INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS transfers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    size INTEGER NOT NULL,
    status TEXT NOT NULL,
    share_code TEXT,
    error TEXT,
    created_at INTEGER NOT NULL,
    finished_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_transfers_created ON transfers(created_at);
`
	_, err := d.db.Exec(schema)
	return err
}

// --- Traffic ---

// AddTraffic adds byte counts to day, creating the row if needed.
func (d *DB) AddTraffic(day string, uploaded, downloaded int64) error {
	_, err := d.db.Exec(
		`INSERT INTO traffic (day, uploaded, downloaded) VALUES (?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET
		   uploaded = uploaded + excluded.uploaded,
		   downloaded = downloaded + excluded.downloaded`,
		day, uploaded, downloaded,
	)
	if err != nil {
		return fmt.Errorf("add traffic: %w", err)
	}
	return nil
}

// ListTraffic returns the most recent days first.
func (d *DB) ListTraffic(limit int) ([]Traffic, error) {
	rows, err := d.db.Query(
		`SELECT day, uploaded, downloaded FROM traffic ORDER BY day DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list traffic: %w", err)
	}
	defer rows.Close()

	var out []Traffic
	for rows.Next() {
		var t Traffic
		if err := rows.Scan(&t.Day, &t.Uploaded, &t.Downloaded); err != nil {
			return nil, fmt.Errorf("scan traffic: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PruneTraffic deletes days before the given day and returns the count removed.
func (d *DB) PruneTraffic(before string) (int64, error) {
	res, err := d.db.Exec(`DELETE FROM traffic WHERE day < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("prune traffic: %w", err)
	}
	return res.RowsAffected()
}

// --- Transfers ---

// CreateTransfer inserts a running transfer.
func (d *DB) CreateTransfer(t *Transfer) error {
	_, err := d.db.Exec(
		`INSERT INTO transfers (id, name, size, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Size, t.Status, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}

// FinishTransfer sets the final status of a transfer.
func (d *DB) FinishTransfer(id, status, shareCode, errMsg string, finishedAt int64) error {
	res, err := d.db.Exec(
		`UPDATE transfers SET status = ?, share_code = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, shareCode, errMsg, finishedAt, id,
	)
	if err != nil {
		return fmt.Errorf("finish transfer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish transfer rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish transfer: %w", sql.ErrNoRows)
	}
	return nil
}

// GetTransfer retrieves a transfer by ID.
func (d *DB) GetTransfer(id string) (*Transfer, error) {
	t := &Transfer{}
	var code, errMsg sql.NullString
	var finished sql.NullInt64
	err := d.db.QueryRow(
		`SELECT id, name, size, status, share_code, error, created_at, finished_at
		 FROM transfers WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.Size, &t.Status, &code, &errMsg, &t.CreatedAt, &finished)
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	t.ShareCode, t.Error = code.String, errMsg.String
	if finished.Valid {
		t.FinishedAt = &finished.Int64
	}
	return t, nil
}

// ListTransfers returns the newest transfers first.
func (d *DB) ListTransfers(limit int) ([]Transfer, error) {
	rows, err := d.db.Query(
		`SELECT id, name, size, status, share_code, error, created_at, finished_at
		 FROM transfers ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var t Transfer
		var code, errMsg sql.NullString
		var finished sql.NullInt64
		if err := rows.Scan(&t.ID, &t.Name, &t.Size, &t.Status, &code, &errMsg, &t.CreatedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.ShareCode, t.Error = code.String, errMsg.String
		if finished.Valid {
			f := finished.Int64
			t.FinishedAt = &f
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PruneTransfers deletes finished transfers created before the cutoff.
func (d *DB) PruneTransfers(before int64) (int64, error) {
	res, err := d.db.Exec(
		`DELETE FROM transfers WHERE created_at < ? AND status != ?`, before, TransferRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("prune transfers: %w", err)
	}
	return res.RowsAffected()
}

// FailRunningTransfers marks transfers left running by a previous process.
func (d *DB) FailRunningTransfers(now int64) (int64, error) {
	res, err := d.db.Exec(
		`UPDATE transfers SET status = ?, error = ?, finished_at = ? WHERE status = ?`,
		TransferFailed, "interrupted", now, TransferRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail running transfers: %w", err)
	}
	return res.RowsAffected()
}
