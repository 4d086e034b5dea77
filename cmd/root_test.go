package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanhealthlab/icemapper/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"fetch", "incidents", "tracts", "compute", "export", "run", "status"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "icemapper", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestFetchCommand_Flags(t *testing.T) {
	flag := fetchCmd.Flags().Lookup("year")
	require.NotNil(t, flag, "fetch command should have --year flag")
	assert.Equal(t, "0", flag.DefValue)

	require.NotNil(t, fetchCmd.Flags().Lookup("counties"))
}

func TestRunCommand_Flags(t *testing.T) {
	require.NotNil(t, runCmd.Flags().Lookup("skip-fetch"))
	require.NotNil(t, runCmd.Flags().Lookup("skip-incidents"))
}

func TestFetchScope_Defaults(t *testing.T) {
	cfg = &config.Config{
		Census: config.CensusConfig{
			Year:     2018,
			Counties: []string{"005", "047"},
		},
	}
	t.Cleanup(func() { cfg = nil })

	year, counties, err := fetchScope(fetchCmd)
	require.NoError(t, err)
	assert.Equal(t, 2018, year)
	assert.Equal(t, []string{"005", "047"}, counties)
}

func TestFetchScope_CountiesOverride(t *testing.T) {
	cfg = &config.Config{
		Census: config.CensusConfig{Year: 2018, Counties: []string{"005"}},
	}
	t.Cleanup(func() { cfg = nil })

	require.NoError(t, fetchCmd.Flags().Set("counties", " 047 ,061,"))
	t.Cleanup(func() { _ = fetchCmd.Flags().Set("counties", "") })

	_, counties, err := fetchScope(fetchCmd)
	require.NoError(t, err)
	assert.Equal(t, []string{"047", "061"}, counties)
}
