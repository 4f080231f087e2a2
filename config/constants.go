package config

import "time"

const (
	// Source endpoints.
	OilProductionURL = "https://www.eia.gov/petroleum/production/xls/comp-stat-oil.xlsx"
	GasProductionURL = "https://www.eia.gov/petroleum/production/xls/comp-stat-gas.xlsx"
	WellsArchiveURL  = "https://www.dec.ny.gov/fs/data/wellDOS.zip"
	WellsArchiveCSV  = "wellspublic.csv"

	// Store drivers.
	DriverSQLite   = "sqlite"
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"

	DefaultStoreDSN   = "produccion_petrolera.db"
	DefaultStagingDir = "data"

	DefaultSourceTimeout     = 30 * time.Second
	DefaultUserAgent         = "prodlake/1.0"
	DefaultAggregateOperator = "EIA State Aggregate"
	DefaultWellsState        = "NY"

	DefaultOilUnit = "Thousand Barrels"
	DefaultGasUnit = "Million Cubic Feet"

	// Staging layout under the staging dir.
	RawDir       = "raw"
	ProcessedDir = "processed"

	OilDataset   = "oil_production"
	GasDataset   = "gas_production"
	WellsDataset = "wellspublic"

	CountySummaryFile = "wells_by_county.csv"
	GeoJSONFile       = "wellspublic.geojson"

	// Destination tables fed directly from processed staging files.
	OilTable   = "oil_production"
	GasTable   = "gas_production"
	WellsTable = "wells_by_county"
)
