package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/urbanhealthlab/icemapper/internal/ice"
	"github.com/urbanhealthlab/icemapper/internal/incident"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tract_raw_counts (
	geo_id                 TEXT NOT NULL,
	vintage                INT NOT NULL,
	total_population       BIGINT NOT NULL,
	total_black            BIGINT NOT NULL,
	total_hispanic         BIGINT NOT NULL,
	total_white_nh         BIGINT NOT NULL,
	household_income_total BIGINT NOT NULL,
	brackets_all           JSONB NOT NULL,
	brackets_white_nh      JSONB NOT NULL,
	in_poverty             BIGINT NOT NULL,
	poverty_universe       BIGINT NOT NULL,
	fetched_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (geo_id, vintage)
);

CREATE TABLE IF NOT EXISTS tract_indices (
	geo_id           TEXT NOT NULL,
	vintage          INT NOT NULL,
	ice_race_income  DOUBLE PRECISION,
	ice_race         DOUBLE PRECISION,
	ice_income       DOUBLE PRECISION,
	prop_in_poverty  DOUBLE PRECISION,
	prop_black       DOUBLE PRECISION,
	prop_hispanic    DOUBLE PRECISION,
	prop_white_nh    DOUBLE PRECISION,
	total_population BIGINT NOT NULL,
	anomalous        BOOLEAN NOT NULL DEFAULT false,
	computed_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (geo_id, vintage)
);

CREATE TABLE IF NOT EXISTS incident_counts (
	geo_id    TEXT PRIMARY KEY,
	incidents BIGINT NOT NULL,
	murders   BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	summary     JSONB,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_tract_indices_anomalous ON tract_indices(anomalous);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const upsertRawCountsSQL = `
	INSERT INTO tract_raw_counts (
		geo_id, vintage, total_population, total_black, total_hispanic,
		total_white_nh, household_income_total, brackets_all,
		brackets_white_nh, in_poverty, poverty_universe
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (geo_id, vintage) DO UPDATE SET
		total_population = EXCLUDED.total_population,
		total_black = EXCLUDED.total_black,
		total_hispanic = EXCLUDED.total_hispanic,
		total_white_nh = EXCLUDED.total_white_nh,
		household_income_total = EXCLUDED.household_income_total,
		brackets_all = EXCLUDED.brackets_all,
		brackets_white_nh = EXCLUDED.brackets_white_nh,
		in_poverty = EXCLUDED.in_poverty,
		poverty_universe = EXCLUDED.poverty_universe,
		fetched_at = now()`

func (s *PostgresStore) UpsertRawCounts(ctx context.Context, vintage int, recs []ice.TractRawCounts) (int64, error) {
	var n int64
	for _, rec := range recs {
		allJSON, err := json.Marshal(rec.BracketsAll)
		if err != nil {
			return n, eris.Wrap(err, "postgres: marshal brackets")
		}
		whiteJSON, err := json.Marshal(rec.BracketsWhiteNH)
		if err != nil {
			return n, eris.Wrap(err, "postgres: marshal brackets")
		}

		if _, err := s.pool.Exec(ctx, upsertRawCountsSQL,
			rec.GeoID, vintage, rec.TotalPopulation, rec.TotalBlack, rec.TotalHispanic,
			rec.TotalWhiteNH, rec.HouseholdIncomeTotal, allJSON,
			whiteJSON, rec.InPoverty, rec.PovertyUniverse,
		); err != nil {
			return n, eris.Wrapf(err, "postgres: upsert raw counts %s", rec.GeoID)
		}
		n++
	}
	return n, nil
}

func (s *PostgresStore) ListRawCounts(ctx context.Context, vintage int) ([]ice.TractRawCounts, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT geo_id, total_population, total_black, total_hispanic,
		       total_white_nh, household_income_total, brackets_all,
		       brackets_white_nh, in_poverty, poverty_universe
		FROM tract_raw_counts WHERE vintage = $1 ORDER BY geo_id`, vintage)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list raw counts")
	}
	defer rows.Close()

	var recs []ice.TractRawCounts
	for rows.Next() {
		var rec ice.TractRawCounts
		var allJSON, whiteJSON []byte
		if err := rows.Scan(
			&rec.GeoID, &rec.TotalPopulation, &rec.TotalBlack, &rec.TotalHispanic,
			&rec.TotalWhiteNH, &rec.HouseholdIncomeTotal, &allJSON,
			&whiteJSON, &rec.InPoverty, &rec.PovertyUniverse,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw counts")
		}
		if err := json.Unmarshal(allJSON, &rec.BracketsAll); err != nil {
			return nil, eris.Wrapf(err, "postgres: brackets for %s", rec.GeoID)
		}
		if err := json.Unmarshal(whiteJSON, &rec.BracketsWhiteNH); err != nil {
			return nil, eris.Wrapf(err, "postgres: brackets for %s", rec.GeoID)
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list raw counts iterate")
}

const upsertIndicesSQL = `
	INSERT INTO tract_indices (
		geo_id, vintage, ice_race_income, ice_race, ice_income,
		prop_in_poverty, prop_black, prop_hispanic, prop_white_nh,
		total_population, anomalous
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (geo_id, vintage) DO UPDATE SET
		ice_race_income = EXCLUDED.ice_race_income,
		ice_race = EXCLUDED.ice_race,
		ice_income = EXCLUDED.ice_income,
		prop_in_poverty = EXCLUDED.prop_in_poverty,
		prop_black = EXCLUDED.prop_black,
		prop_hispanic = EXCLUDED.prop_hispanic,
		prop_white_nh = EXCLUDED.prop_white_nh,
		total_population = EXCLUDED.total_population,
		anomalous = EXCLUDED.anomalous,
		computed_at = now()`

func (s *PostgresStore) UpsertIndices(ctx context.Context, vintage int, recs []ice.TractIndices) (int64, error) {
	var n int64
	for _, rec := range recs {
		if _, err := s.pool.Exec(ctx, upsertIndicesSQL,
			rec.GeoID, vintage, rec.ICERaceIncome, rec.ICERace, rec.ICEIncome,
			rec.PropInPoverty, rec.PropBlack, rec.PropHispanic, rec.PropWhiteNH,
			rec.TotalPopulation, rec.Anomalous,
		); err != nil {
			return n, eris.Wrapf(err, "postgres: upsert indices %s", rec.GeoID)
		}
		n++
	}
	return n, nil
}

func (s *PostgresStore) ListIndices(ctx context.Context, vintage int) ([]ice.TractIndices, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT geo_id, ice_race_income, ice_race, ice_income, prop_in_poverty,
		       prop_black, prop_hispanic, prop_white_nh, total_population, anomalous
		FROM tract_indices WHERE vintage = $1 ORDER BY geo_id`, vintage)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list indices")
	}
	defer rows.Close()

	var recs []ice.TractIndices
	for rows.Next() {
		var rec ice.TractIndices
		if err := rows.Scan(
			&rec.GeoID, &rec.ICERaceIncome, &rec.ICERace, &rec.ICEIncome, &rec.PropInPoverty,
			&rec.PropBlack, &rec.PropHispanic, &rec.PropWhiteNH, &rec.TotalPopulation, &rec.Anomalous,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan indices")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list indices iterate")
}

func (s *PostgresStore) UpsertIncidentCounts(ctx context.Context, counts []incident.TractCounts) (int64, error) {
	var n int64
	for _, tc := range counts {
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO incident_counts (geo_id, incidents, murders) VALUES ($1, $2, $3)
			ON CONFLICT (geo_id) DO UPDATE SET
				incidents = EXCLUDED.incidents,
				murders = EXCLUDED.murders`,
			tc.GeoID, tc.Incidents, tc.Murders,
		); err != nil {
			return n, eris.Wrapf(err, "postgres: upsert incident counts %s", tc.GeoID)
		}
		n++
	}
	return n, nil
}

func (s *PostgresStore) ListIncidentCounts(ctx context.Context) ([]incident.TractCounts, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT geo_id, incidents, murders FROM incident_counts ORDER BY geo_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list incident counts")
	}
	defer rows.Close()

	var counts []incident.TractCounts
	for rows.Next() {
		var tc incident.TractCounts
		if err := rows.Scan(&tc.GeoID, &tc.Incidents, &tc.Murders); err != nil {
			return nil, eris.Wrap(err, "postgres: scan incident counts")
		}
		counts = append(counts, tc)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: list incident counts iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, kind string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, kind, string(RunStatusRunning), now,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &Run{ID: id, Kind: kind, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, summary map[string]any, runErr error) error {
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
		return eris.Wrap(err, "postgres: marshal run summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, summary = $2, finished_at = $3 WHERE id = $4`,
		string(status), summaryJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(countTables))
	for _, table := range countTables {
		var n int64
		if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", table)
		}
		counts[table] = n
	}
	return counts, nil
}
