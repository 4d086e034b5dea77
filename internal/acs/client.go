package acs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urbanhealthlab/icemapper/internal/fetcher"
	"github.com/urbanhealthlab/icemapper/internal/ice"
)

// missingCount marks a suppressed or absent estimate in TractRawCounts.
// The Census API encodes these as large negative sentinels (-666666666 and
// kin) or empty cells; the calculator only needs to know the count is gone.
const missingCount = -1

// Options configures the ACS client.
type Options struct {
	BaseURL string // default https://api.census.gov/data
	APIKey  string // optional; raises the daily request quota
	Year    int    // ACS 5-year vintage
	State   string // state FIPS, e.g. "36"
}

// Client fetches ACS 5-year tract estimates for one state and vintage.
type Client struct {
	f    fetcher.Fetcher
	opts Options
}

// NewClient creates an ACS client.
func NewClient(f fetcher.Fetcher, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.census.gov/data"
	}
	return &Client{f: f, opts: opts}
}

// FetchCounty fetches raw counts for every tract in one county. The API
// returns a whole county in a single response, so there is no pagination.
func (c *Client) FetchCounty(ctx context.Context, county string) ([]ice.TractRawCounts, error) {
	vars := Variables()
	codes := make([]string, len(vars))
	for i, v := range vars {
		codes[i] = string(v)
	}

	params := url.Values{
		"get": {strings.Join(codes, ",")},
		"for": {"tract:*"},
		"in":  {fmt.Sprintf("state:%s county:%s", c.opts.State, county)},
	}
	if c.opts.APIKey != "" {
		params.Set("key", c.opts.APIKey)
	}
	reqURL := fmt.Sprintf("%s/%d/acs/acs5?%s", c.opts.BaseURL, c.opts.Year, params.Encode())

	body, err := c.f.Download(ctx, reqURL)
	if err != nil {
		return nil, eris.Wrapf(err, "acs: fetch county %s", county)
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "acs: read county %s", county)
	}

	recs, err := parseResponse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "acs: county %s", county)
	}

	zap.L().Info("acs: county fetched",
		zap.String("county", county),
		zap.Int("tracts", len(recs)),
	)
	return recs, nil
}

// FetchCounties fetches all counties with bounded concurrency and returns
// the combined records sorted by geo_id.
func (c *Client) FetchCounties(ctx context.Context, counties []string, concurrency int) ([]ice.TractRawCounts, error) {
	if concurrency <= 0 {
		concurrency = 3
	}

	var mu sync.Mutex
	var all []ice.TractRawCounts

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, county := range counties {
		g.Go(func() error {
			recs, err := c.FetchCounty(gCtx, county)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, recs...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].GeoID < all[j].GeoID })
	return all, nil
}

// parseResponse decodes the Census array-of-arrays JSON payload. The first
// row is the header; geography columns (state, county, tract) are appended
// by the API after the requested estimates.
func parseResponse(data []byte) ([]ice.TractRawCounts, error) {
	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrap(err, "decode response")
	}
	if len(rows) == 0 {
		return nil, eris.New("empty response")
	}

	colIdx := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		colIdx[name] = i
	}

	// A missing requested column is a contract violation and fails the run.
	required := append([]string{"state", "county", "tract"}, func() []string {
		var s []string
		for _, v := range Variables() {
			s = append(s, string(v))
		}
		return s
	}()...)
	for _, name := range required {
		if _, ok := colIdx[name]; !ok {
			return nil, eris.Errorf("response missing column %q", name)
		}
	}

	recs := make([]ice.TractRawCounts, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(rows[0]) {
			return nil, eris.Errorf("row has %d columns, header has %d", len(row), len(rows[0]))
		}

		get := func(v Variable) int64 {
			return parseCount(row[colIdx[string(v)]])
		}

		rec := ice.TractRawCounts{
			GeoID:                row[colIdx["state"]] + row[colIdx["county"]] + row[colIdx["tract"]],
			TotalPopulation:      get(VarTotalPopulation),
			TotalBlack:           get(VarTotalBlack),
			TotalHispanic:        get(VarTotalHispanic),
			TotalWhiteNH:         get(VarTotalWhiteNH),
			HouseholdIncomeTotal: get(VarHouseholdIncomeTotal),
			InPoverty:            get(VarInPoverty),
			PovertyUniverse:      get(VarPovertyUniverse),
		}
		for i := range ice.NumBrackets {
			rec.BracketsAll[i] = get(bracketVarsAll[i])
			rec.BracketsWhiteNH[i] = get(bracketVarsWhiteNH[i])
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

// parseCount converts one ACS cell to a count, mapping empty cells and the
// API's negative sentinels to missingCount.
func parseCount(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return missingCount
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return missingCount
	}
	return n
}
