// Command loanprep turns a raw loan-application CSV into an engineered,
// fully numeric feature table.
//
// Usage:
//
//	loanprep -config configs/pipelines/combined.json
//	loanprep -input raw.csv.gz -output engineered.parquet -sink parquet -v
//
// Flags override values from the config file; an absent -config means the
// built-in defaults.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"loanprep/internal/config"
	"loanprep/internal/metrics"
	"loanprep/internal/metrics/datadog"
	"loanprep/internal/metrics/prompush"
	"loanprep/internal/pipeline"

	// register all database backends with the storage factory; the sink
	// kind picks one at run time.
	_ "loanprep/internal/storage/all"
)

const (
	defaultPushgatewayURL = "http://localhost:9091"
	defaultStatsdAddr     = "127.0.0.1:8125"
)

// overrides holds the CLI values that replace config file settings. Zero
// values mean "not set".
type overrides struct {
	input      string
	output     string
	sink       string
	sampleRows int
	chunkSize  int
}

func (o overrides) apply(p config.Pipeline) config.Pipeline {
	if o.input != "" {
		p.Source.Kind = "file"
		p.Source.File.Path = o.input
	}
	if o.output != "" {
		p.Sink.Path = o.output
	}
	if o.sink != "" {
		p.Sink.Kind = o.sink
	}
	if o.sampleRows != 0 {
		p.Chunking.SampleRows = o.sampleRows
	}
	if o.chunkSize != 0 {
		p.Chunking.ChunkSize = o.chunkSize
	}
	return p
}

func main() {
	var (
		cfgPath           string
		ov                overrides
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "pipeline config JSON path (default: built-in settings)")
	flag.StringVar(&ov.input, "input", "", "raw CSV path; .gz and .zst are detected (overrides source.file.path)")
	flag.StringVar(&ov.output, "output", "", "output path (overrides sink.path)")
	flag.StringVar(&ov.sink, "sink", "", "sink kind: csv, parquet, arrow, sqlite, postgres, mssql, mysql (overrides sink.kind)")
	flag.IntVar(&ov.sampleRows, "sample-rows", 0, "rows used for schema discovery (overrides chunking.sample_rows)")
	flag.IntVar(&ov.chunkSize, "chunk-size", 0, "rows per later chunk (overrides chunking.chunk_size)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: pushgateway, datadog, none (overrides env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddrFlg, "statsd-addr", "", "DogStatsD address (overrides env DD_AGENT_ADDR)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := loadPipeline(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	p = ov.apply(p)

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", describe(cfgPath))
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", describe(cfgPath))
		os.Exit(0)
	}

	backendName := pick(metricsBackendFlg, os.Getenv("METRICS_BACKEND"), "none")
	flush := setupMetrics(backendName, p.Job,
		pick(pushGatewayURLFlg, os.Getenv("PUSHGATEWAY_URL"), defaultPushgatewayURL),
		pick(statsdAddrFlg, os.Getenv("DD_AGENT_ADDR"), defaultStatsdAddr),
		*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	start := time.Now()

	if *verbose {
		log.Printf("pipeline: job=%s input=%s sink=%s output=%s sample_rows=%s chunk_size=%s",
			p.Job, p.Source.File.Path, p.Sink.Kind, p.Sink.Path,
			humanize.Comma(int64(p.Chunking.SampleRows)), humanize.Comma(int64(p.Chunking.ChunkSize)))
	}

	sum, err := pipeline.Run(ctx, p, pipeline.WithVerbose(*verbose))
	stop()
	flush()
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) {
			fatalf("loanprep: failed at stage %s: %v", se.Stage, err)
		}
		fatalf("loanprep: %v", err)
	}

	fmt.Printf("wrote %s rows (%d columns) to %s\n", humanize.Comma(sum.RowsWritten), sum.Schema.Len(), target(p))
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// loadPipeline reads path, or returns the defaults when path is empty.
func loadPipeline(path string) (config.Pipeline, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFile(path)
}

// setupMetrics installs the named backend and returns the function that
// flushes it. Backend failures only disable metrics.
func setupMetrics(name, job, gwURL, statsdAddr string, verbose bool) (flush func()) {
	flush = func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}

	switch name {
	case "pushgateway":
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, name, job)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       statsdAddr,
			GlobalTags: []string{"job:" + job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", statsdAddr, name, job)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", name)
		}
		return func() {}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
		return func() {}
	}
	return flush
}

// pick returns the first non-empty value.
func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func describe(cfgPath string) string {
	if cfgPath == "" {
		return "(built-in defaults)"
	}
	return cfgPath
}

func target(p config.Pipeline) string {
	if config.IsDBSink(p.Sink.Kind) {
		return p.Sink.Kind + ":" + p.Sink.DB.Table
	}
	return p.Sink.Path
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
