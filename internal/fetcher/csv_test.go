package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) [][]string {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)
	return rows
}

func TestStreamCSV_WithHeader(t *testing.T) {
	input := "geo_id,pop\n36047000100,1000\n36047000200,2500\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows := collectRows(t, rowCh, errCh)
	assert.Equal(t, []string{"geo_id", "pop"}, <-headerCh)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"36047000100", "1000"}, rows[0])
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := " a , b \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{TrimSpace: true})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a", "b"}, rows[0])
}

func TestStreamCSV_VariableFields(t *testing.T) {
	input := "a,b,c\nd,e\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 2)
	assert.Len(t, rows[1], 2)
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a,b\nc,d\n"), CSVOptions{})
	for range rowCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}
