package kpi

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JamesWheadon/Carbon-Intensity/core/savings"
)

// SQLiteStore persists daily savings in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ savings.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS daily_savings (
        day INTEGER PRIMARY KEY,
        queries INTEGER,
        recommended INTEGER,
        slot_saving REAL
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add inserts or merges the record into its day.
func (s *SQLiteStore) Add(r savings.Record) error {
	d := savings.Day(r.Date)
	_, err := s.db.Exec(`INSERT INTO daily_savings (day, queries, recommended, slot_saving)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(day) DO UPDATE SET
            queries = queries + excluded.queries,
            recommended = recommended + excluded.recommended,
            slot_saving = slot_saving + excluded.slot_saving`,
		d.Unix(), r.Queries, r.Recommended, r.SlotSaving)
	return err
}

// Query returns records for the days in [start,end].
func (s *SQLiteStore) Query(start, end time.Time) ([]savings.Record, error) {
	start = savings.Day(start)
	end = savings.Day(end)
	rows, err := s.db.Query(`SELECT day, queries, recommended, slot_saving
        FROM daily_savings WHERE day >= ? AND day <= ? ORDER BY day`,
		start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []savings.Record
	for rows.Next() {
		var ts int64
		var r savings.Record
		if err := rows.Scan(&ts, &r.Queries, &r.Recommended, &r.SlotSaving); err != nil {
			return nil, err
		}
		r.Date = time.Unix(ts, 0).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
