package store

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanhealthlab/icemapper/internal/ice"
	"github.com/urbanhealthlab/icemapper/internal/incident"
)

// anyArgs builds n pgxmock.AnyArg matchers; pgxmock requires the expected
// argument count to match exactly, so expectations for parameterized
// statements must declare one matcher per placeholder.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tract_raw_counts").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertRawCounts(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO tract_raw_counts").
		WithArgs(anyArgs(11)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO tract_raw_counts").
		WithArgs(anyArgs(11)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := s.UpsertRawCounts(context.Background(), 2018,
		[]ice.TractRawCounts{sampleRaw("36047000100"), sampleRaw("36047000200")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertIndices_StopsOnError(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO tract_indices").
		WithArgs(anyArgs(11)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO tract_indices").
		WithArgs(anyArgs(11)...).
		WillReturnError(eris.New("connection reset"))

	recs := []ice.TractIndices{
		{GeoID: "36047000100", TotalPopulation: 1000},
		{GeoID: "36047000200", TotalPopulation: 500},
	}
	n, err := s.UpsertIndices(context.Background(), 2018, recs)
	require.Error(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, err.Error(), "36047000200")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListIncidentCounts(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT geo_id, incidents, murders FROM incident_counts").
		WillReturnRows(pgxmock.NewRows([]string{"geo_id", "incidents", "murders"}).
			AddRow("36047000100", int64(12), int64(3)).
			AddRow("36047000200", int64(5), int64(0)))

	got, err := s.ListIncidentCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, incident.TractCounts{GeoID: "36047000100", Incidents: 12, Murders: 3}, got[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RunLifecycle(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(ctx, "fetch")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	mock.ExpectExec("UPDATE runs SET").
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.FinishRun(ctx, run.ID, map[string]any{"tracts": 10}, nil))

	mock.ExpectExec("UPDATE runs SET").
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = s.FinishRun(ctx, "missing-run", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Counts(t *testing.T) {
	s, mock := newMockPostgres(t)

	for i := range countTables {
		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(i)))
	}

	counts, err := s.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts["tract_raw_counts"])
	assert.Equal(t, int64(3), counts["runs"])
	require.NoError(t, mock.ExpectationsWereMet())
}
