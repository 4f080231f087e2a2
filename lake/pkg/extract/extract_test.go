package extract_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrodata/prodlake/lake/pkg/dataset"
	"github.com/petrodata/prodlake/lake/pkg/extract"
	"github.com/petrodata/prodlake/lake/pkg/source"
	sourcetesting "github.com/petrodata/prodlake/lake/pkg/source/testing"
	laketesting "github.com/petrodata/prodlake/lake/pkg/testing"
)

func intPtr(v int) *int { return &v }

const wellsCSV = `API_WellNo,Well_Status,Operator_number,Completion,Surface_Longitude,Surface_latitude,County
1,Allegany,100,AC,0,40.1,ignored
2,Allegany,101,AC,-79.2,39.9,ignored
`

type fixture struct {
	srv     *sourcetesting.Server
	staging dataset.Staging
	cfg     extract.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := laketesting.NewLogger(t)
	srv := sourcetesting.NewServer(t)

	oil := sourcetesting.BuildWorkbook(t, sourcetesting.Sheet{Name: "WV", Rows: [][]any{
		{"title"}, {"units"}, {"Date", "x", "Production"}, {"2021-01", "", 10},
	}})
	gas := sourcetesting.BuildWorkbook(t, sourcetesting.Sheet{Name: "WV", Rows: [][]any{
		{"title"}, {"units"}, {"Date", "x", "Production"}, {"2021-01", "", 20}, {"2021-02", "", 30},
	}})
	archive := sourcetesting.BuildZip(t, map[string]string{"wellspublic.csv": wellsCSV})

	fetcher, err := source.NewHTTPFetcher(source.HTTPFetcherConfig{Logger: log})
	require.NoError(t, err)

	dir := t.TempDir()
	staging := dataset.Staging{RawDir: filepath.Join(dir, "raw"), ProcessedDir: filepath.Join(dir, "processed")}
	sheets := []source.SheetSpec{{Name: "WV", SkipRows: 2, DateColumn: source.Selector{Index: intPtr(0)}, ValueColumn: source.Selector{Index: intPtr(2)}}}

	return &fixture{
		srv:     srv,
		staging: staging,
		cfg: extract.Config{
			Logger:  log,
			Fetcher: fetcher,
			Staging: staging,
			Oil:     extract.WorkbookSource{Dataset: "oil_production", URL: srv.Handle("/oil.xlsx", oil), Sheets: sheets},
			Gas:     extract.WorkbookSource{Dataset: "gas_production", URL: srv.Handle("/gas.xlsx", gas), Sheets: sheets},
			Wells: extract.ArchiveSource{
				Dataset: "wellspublic",
				URL:     srv.Handle("/wellDOS.zip", archive),
				Member:  "wellspublic.csv",
				Columns: []dataset.Mapping{
					{Source: "API_WellNo", Target: "id"},
					{Source: "Well_Status", Target: "county"},
					{Source: "Operator_number", Target: "operator"},
					{Source: "Completion", Target: "status"},
					{Source: "Surface_Longitude", Target: "longitude"},
					{Source: "Surface_latitude", Target: "latitude"},
				},
			},
		},
	}
}

func TestLake_Extract_Run_WritesRawDatasets(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	ex, err := extract.New(fx.cfg)
	require.NoError(t, err)

	res, err := ex.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Datasets, 3)
	assert.Equal(t, 5, res.Rows())

	oil, err := dataset.ReadCSV(fx.staging.Raw("oil_production"))
	require.NoError(t, err)
	assert.Equal(t, []string{"year_month", "production", "state"}, oil.Columns)
	assert.Equal(t, [][]string{{"2021-01", "10", "WV"}}, oil.Rows)

	gas, err := dataset.ReadCSV(fx.staging.Raw("gas_production"))
	require.NoError(t, err)
	assert.Equal(t, 2, gas.Len())

	wells, err := dataset.ReadCSV(fx.staging.Raw("wellspublic"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "county", "operator", "status", "longitude", "latitude"}, wells.Columns)
	assert.Equal(t, []string{"2", "Allegany", "101", "AC", "-79.2", "39.9"}, wells.Rows[1])
}

func TestLake_Extract_Run_AbortsOnFetchFailure(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	fx.srv.Fail("/gas.xlsx", http.StatusInternalServerError)

	ex, err := extract.New(fx.cfg)
	require.NoError(t, err)

	res, err := ex.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to extract gas_production")

	// The oil file written before the failure stays; nothing after it is attempted.
	require.Len(t, res.Datasets, 1)
	assert.FileExists(t, fx.staging.Raw("oil_production"))
	assert.NoFileExists(t, fx.staging.Raw("gas_production"))
	assert.NoFileExists(t, fx.staging.Raw("wellspublic"))
	assert.Zero(t, fx.srv.Hits("/wellDOS.zip"))
}

func TestLake_Extract_Run_MissingWellColumn(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	fx.cfg.Wells.Columns = append(fx.cfg.Wells.Columns, dataset.Mapping{Source: "Elevation", Target: "elevation"})

	ex, err := extract.New(fx.cfg)
	require.NoError(t, err)

	_, err = ex.Run(context.Background())
	require.ErrorIs(t, err, dataset.ErrColumnNotFound)
	assert.Contains(t, err.Error(), "Elevation")
}

func TestLake_Extract_Run_KeepsPreviousRawOnParseFailure(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	require.NoError(t, os.MkdirAll(fx.staging.RawDir, 0o755))
	require.NoError(t, os.WriteFile(fx.staging.Raw("oil_production"), []byte("previous"), 0o644))
	fx.srv.Handle("/oil.xlsx", []byte("not a workbook"))

	ex, err := extract.New(fx.cfg)
	require.NoError(t, err)
	_, err = ex.Run(context.Background())
	require.Error(t, err)

	data, err := os.ReadFile(fx.staging.Raw("oil_production"))
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestLake_Extract_Config_Validate(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	cfg := fx.cfg
	cfg.Fetcher = nil
	_, err := extract.New(cfg)
	require.Error(t, err)

	cfg = fx.cfg
	cfg.Oil.Sheets = nil
	_, err = extract.New(cfg)
	require.Error(t, err)
}
