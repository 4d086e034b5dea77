package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/urbanhealthlab/icemapper/internal/ice"
	"github.com/urbanhealthlab/icemapper/internal/incident"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tract_raw_counts (
	geo_id                 TEXT NOT NULL,
	vintage                INTEGER NOT NULL,
	total_population       INTEGER NOT NULL,
	total_black            INTEGER NOT NULL,
	total_hispanic         INTEGER NOT NULL,
	total_white_nh         INTEGER NOT NULL,
	household_income_total INTEGER NOT NULL,
	brackets_all           TEXT NOT NULL,
	brackets_white_nh      TEXT NOT NULL,
	in_poverty             INTEGER NOT NULL,
	poverty_universe       INTEGER NOT NULL,
	fetched_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (geo_id, vintage)
);

CREATE TABLE IF NOT EXISTS tract_indices (
	geo_id           TEXT NOT NULL,
	vintage          INTEGER NOT NULL,
	ice_race_income  REAL,
	ice_race         REAL,
	ice_income       REAL,
	prop_in_poverty  REAL,
	prop_black       REAL,
	prop_hispanic    REAL,
	prop_white_nh    REAL,
	total_population INTEGER NOT NULL,
	anomalous        INTEGER NOT NULL DEFAULT 0,
	computed_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (geo_id, vintage)
);

CREATE TABLE IF NOT EXISTS incident_counts (
	geo_id    TEXT PRIMARY KEY,
	incidents INTEGER NOT NULL,
	murders   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tract_indices_anomalous ON tract_indices(anomalous);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertRawCounts(ctx context.Context, vintage int, recs []ice.TractRawCounts) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tract_raw_counts (
			geo_id, vintage, total_population, total_black, total_hispanic,
			total_white_nh, household_income_total, brackets_all,
			brackets_white_nh, in_poverty, poverty_universe
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (geo_id, vintage) DO UPDATE SET
			total_population = excluded.total_population,
			total_black = excluded.total_black,
			total_hispanic = excluded.total_hispanic,
			total_white_nh = excluded.total_white_nh,
			household_income_total = excluded.household_income_total,
			brackets_all = excluded.brackets_all,
			brackets_white_nh = excluded.brackets_white_nh,
			in_poverty = excluded.in_poverty,
			poverty_universe = excluded.poverty_universe,
			fetched_at = datetime('now')`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare raw counts upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, rec := range recs {
		allJSON, err := json.Marshal(rec.BracketsAll)
		if err != nil {
			return n, eris.Wrap(err, "sqlite: marshal brackets")
		}
		whiteJSON, err := json.Marshal(rec.BracketsWhiteNH)
		if err != nil {
			return n, eris.Wrap(err, "sqlite: marshal brackets")
		}

		if _, err := stmt.ExecContext(ctx,
			rec.GeoID, vintage, rec.TotalPopulation, rec.TotalBlack, rec.TotalHispanic,
			rec.TotalWhiteNH, rec.HouseholdIncomeTotal, string(allJSON),
			string(whiteJSON), rec.InPoverty, rec.PovertyUniverse,
		); err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert raw counts %s", rec.GeoID)
		}
		n++
	}

	return n, eris.Wrap(tx.Commit(), "sqlite: commit raw counts")
}

func (s *SQLiteStore) ListRawCounts(ctx context.Context, vintage int) ([]ice.TractRawCounts, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT geo_id, total_population, total_black, total_hispanic,
		       total_white_nh, household_income_total, brackets_all,
		       brackets_white_nh, in_poverty, poverty_universe
		FROM tract_raw_counts WHERE vintage = ? ORDER BY geo_id`, vintage)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list raw counts")
	}
	defer rows.Close() //nolint:errcheck

	var recs []ice.TractRawCounts
	for rows.Next() {
		var rec ice.TractRawCounts
		var allJSON, whiteJSON string
		if err := rows.Scan(
			&rec.GeoID, &rec.TotalPopulation, &rec.TotalBlack, &rec.TotalHispanic,
			&rec.TotalWhiteNH, &rec.HouseholdIncomeTotal, &allJSON,
			&whiteJSON, &rec.InPoverty, &rec.PovertyUniverse,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan raw counts")
		}
		if err := json.Unmarshal([]byte(allJSON), &rec.BracketsAll); err != nil {
			return nil, eris.Wrapf(err, "sqlite: brackets for %s", rec.GeoID)
		}
		if err := json.Unmarshal([]byte(whiteJSON), &rec.BracketsWhiteNH); err != nil {
			return nil, eris.Wrapf(err, "sqlite: brackets for %s", rec.GeoID)
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list raw counts iterate")
}

func (s *SQLiteStore) UpsertIndices(ctx context.Context, vintage int, recs []ice.TractIndices) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tract_indices (
			geo_id, vintage, ice_race_income, ice_race, ice_income,
			prop_in_poverty, prop_black, prop_hispanic, prop_white_nh,
			total_population, anomalous
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (geo_id, vintage) DO UPDATE SET
			ice_race_income = excluded.ice_race_income,
			ice_race = excluded.ice_race,
			ice_income = excluded.ice_income,
			prop_in_poverty = excluded.prop_in_poverty,
			prop_black = excluded.prop_black,
			prop_hispanic = excluded.prop_hispanic,
			prop_white_nh = excluded.prop_white_nh,
			total_population = excluded.total_population,
			anomalous = excluded.anomalous,
			computed_at = datetime('now')`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare indices upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			rec.GeoID, vintage, rec.ICERaceIncome, rec.ICERace, rec.ICEIncome,
			rec.PropInPoverty, rec.PropBlack, rec.PropHispanic, rec.PropWhiteNH,
			rec.TotalPopulation, rec.Anomalous,
		); err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert indices %s", rec.GeoID)
		}
		n++
	}

	return n, eris.Wrap(tx.Commit(), "sqlite: commit indices")
}

func (s *SQLiteStore) ListIndices(ctx context.Context, vintage int) ([]ice.TractIndices, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT geo_id, ice_race_income, ice_race, ice_income, prop_in_poverty,
		       prop_black, prop_hispanic, prop_white_nh, total_population, anomalous
		FROM tract_indices WHERE vintage = ? ORDER BY geo_id`, vintage)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list indices")
	}
	defer rows.Close() //nolint:errcheck

	var recs []ice.TractIndices
	for rows.Next() {
		rec, err := scanIndices(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list indices iterate")
}

func scanIndices(rows *sql.Rows) (ice.TractIndices, error) {
	var rec ice.TractIndices
	var raceIncome, race, income, poverty, black, hispanic, whiteNH sql.NullFloat64
	if err := rows.Scan(
		&rec.GeoID, &raceIncome, &race, &income, &poverty,
		&black, &hispanic, &whiteNH, &rec.TotalPopulation, &rec.Anomalous,
	); err != nil {
		return rec, eris.Wrap(err, "sqlite: scan indices")
	}
	rec.ICERaceIncome = nullToPtr(raceIncome)
	rec.ICERace = nullToPtr(race)
	rec.ICEIncome = nullToPtr(income)
	rec.PropInPoverty = nullToPtr(poverty)
	rec.PropBlack = nullToPtr(black)
	rec.PropHispanic = nullToPtr(hispanic)
	rec.PropWhiteNH = nullToPtr(whiteNH)
	return rec, nil
}

func nullToPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func (s *SQLiteStore) UpsertIncidentCounts(ctx context.Context, counts []incident.TractCounts) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, tc := range counts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO incident_counts (geo_id, incidents, murders) VALUES (?, ?, ?)
			ON CONFLICT (geo_id) DO UPDATE SET
				incidents = excluded.incidents,
				murders = excluded.murders`,
			tc.GeoID, tc.Incidents, tc.Murders,
		); err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert incident counts %s", tc.GeoID)
		}
		n++
	}

	return n, eris.Wrap(tx.Commit(), "sqlite: commit incident counts")
}

func (s *SQLiteStore) ListIncidentCounts(ctx context.Context) ([]incident.TractCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT geo_id, incidents, murders FROM incident_counts ORDER BY geo_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list incident counts")
	}
	defer rows.Close() //nolint:errcheck

	var counts []incident.TractCounts
	for rows.Next() {
		var tc incident.TractCounts
		if err := rows.Scan(&tc.GeoID, &tc.Incidents, &tc.Murders); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan incident counts")
		}
		counts = append(counts, tc)
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: list incident counts iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, kind string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)`,
		id, kind, string(RunStatusRunning), now,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{ID: id, Kind: kind, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, summary map[string]any, runErr error) error {
	status := RunStatusComplete
	if runErr != nil {
		status = RunStatusFailed
		if summary == nil {
			summary = map[string]any{}
		}
		summary["error"] = runErr.Error()
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func (s *SQLiteStore) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(countTables))
	for _, table := range countTables {
		var n int64
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", table)
		}
		counts[table] = n
	}
	return counts, nil
}
