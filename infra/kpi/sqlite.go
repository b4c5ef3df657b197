package kpi

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	core "github.com/kilianp07/trafficgrid/core/metrics/eco"
)

// SQLiteStore persists station energy KPI records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS station_kpi (
        station_id TEXT,
        day INTEGER,
        delivered REAL,
        renewable REAL,
        sessions INTEGER,
        PRIMARY KEY(station_id, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add inserts or updates the KPI record.
func (s *SQLiteStore) Add(r core.Record) error {
	d := core.Day(r.Date)
	_, err := s.db.Exec(`INSERT INTO station_kpi (station_id, day, delivered, renewable, sessions)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(station_id, day) DO UPDATE SET
            delivered = delivered + excluded.delivered,
            renewable = renewable + excluded.renewable,
            sessions = sessions + excluded.sessions`,
		r.StationID, d.Unix(), r.DeliveredKWh, r.RenewableKWh, r.Sessions)
	return err
}

// Query returns records in the range [start,end].
func (s *SQLiteStore) Query(stationID string, start, end time.Time) ([]core.Record, error) {
	start = core.Day(start)
	end = core.Day(end)
	rows, err := s.db.Query(`SELECT station_id, day, delivered, renewable, sessions
        FROM station_kpi WHERE station_id = ? AND day >= ? AND day <= ? ORDER BY day`,
		stationID, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []core.Record
	for rows.Next() {
		var r core.Record
		var ts int64
		if err := rows.Scan(&r.StationID, &ts, &r.DeliveredKWh, &r.RenewableKWh, &r.Sessions); err != nil {
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
