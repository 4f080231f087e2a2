package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	flag "github.com/spf13/pflag"

	"github.com/petrodata/prodlake/config"
	"github.com/petrodata/prodlake/lake/pkg/logger"
	"github.com/petrodata/prodlake/lake/pkg/metrics"
	"github.com/petrodata/prodlake/lake/pkg/pipeline"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configFlag := flag.String("config", "", "path to a YAML config file (defaults reproduce the stock pipeline)")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	storeDriverFlag := flag.String("store-driver", config.DriverSQLite, "destination store driver (sqlite, duckdb, postgres)")
	storeDSNFlag := flag.String("store-dsn", config.DefaultStoreDSN, "destination store file path or postgres:// URI")
	stagingDirFlag := flag.String("staging-dir", config.DefaultStagingDir, "directory for raw and processed staging files")
	schemaFlag := flag.String("schema", "", "path to a DDL script (defaults to the embedded schema for the driver)")
	retriesFlag := flag.Int("retries", 0, "extra download attempts per source")
	excludeLongitudeFlag := flag.Bool("exclude-longitude", false, "drop the longitude property from GeoJSON features")
	publishURIFlag := flag.String("publish-uri", "", "s3://bucket/prefix to upload artifacts to (S3_* or AWS_* env vars supply credentials)")
	metricsTextfileFlag := flag.String("metrics-textfile", "", "write prometheus metrics to this file when the run ends")
	quietFlag := flag.Bool("quiet", false, "do not print the county table and run summary")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("prodlake %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags given explicitly take precedence over the config file and environment.
	if flag.CommandLine.Changed("verbose") {
		cfg.Verbose = *verboseFlag
	}
	if flag.CommandLine.Changed("store-driver") {
		cfg.Store.Driver = *storeDriverFlag
	}
	if flag.CommandLine.Changed("store-dsn") {
		cfg.Store.DSN = *storeDSNFlag
	}
	if flag.CommandLine.Changed("staging-dir") {
		cfg.Staging.Dir = *stagingDirFlag
	}
	if flag.CommandLine.Changed("schema") {
		cfg.Schema.Path = *schemaFlag
	}
	if flag.CommandLine.Changed("retries") {
		cfg.Sources.Retries = *retriesFlag
	}
	if flag.CommandLine.Changed("exclude-longitude") {
		cfg.Report.ExcludeLongitude = *excludeLongitudeFlag
	}
	if flag.CommandLine.Changed("publish-uri") {
		cfg.Publish.URI = *publishURIFlag
	}
	if flag.CommandLine.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = *metricsTextfileFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(cfg.Verbose)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info("prodlake: received signal", "signal", sig.String())
		cancel()
	}()

	m := metrics.New()
	m.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	var console io.Writer = os.Stdout
	if *quietFlag {
		console = nil
	}

	p, err := pipeline.New(ctx, pipeline.Config{
		Logger:  log,
		App:     cfg,
		Metrics: m,
		Console: console,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	sum, err := p.Run(ctx)
	if !*quietFlag {
		printSummary(os.Stdout, sum)
	}
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) && errors.Is(stageErr.Err, context.Canceled) {
			return fmt.Errorf("interrupted during %s", stageErr.Stage)
		}
		return err
	}
	return nil
}

func printSummary(w io.Writer, sum *pipeline.Summary) {
	if sum == nil {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Stage", "Result"})
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	if sum.Extract != nil {
		table.Append([]string{pipeline.StageExtract, strconv.Itoa(sum.Extract.Rows()) + " raw rows"})
	}
	if sum.Normalize != nil {
		out := 0
		for _, s := range sum.Normalize.Datasets {
			out += s.RowsOut
		}
		table.Append([]string{pipeline.StageNormalize, strconv.Itoa(out) + " processed rows"})
	}
	if sum.Load != nil {
		table.Append([]string{pipeline.StageLoad, fmt.Sprintf("%d rows, %d volumes, %d wells",
			sum.Load.Rows(), sum.Load.Entities.ProductionVolumes, sum.Load.Entities.Wells)})
	}
	if sum.Report != nil {
		table.Append([]string{pipeline.StageReport, fmt.Sprintf("%d counties, %d features",
			len(sum.Report.Counties), sum.Report.Features)})
	}
	for _, uri := range sum.Published {
		table.Append([]string{pipeline.StagePublish, uri})
	}
	table.SetFooter([]string{"run " + sum.RunID, sum.Duration.Round(time.Millisecond).String()})
	table.Render()
}
