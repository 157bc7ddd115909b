package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"creditetl/internal/catalog"
	"creditetl/internal/ddl"
	"creditetl/internal/logging"
	"creditetl/internal/probe"
)

// main samples the raw objects under -location and prints a catalog registry
// fragment for them, or the CREATE TABLE statement of the inferred schema
// when -ddl names a dialect.
//
// The result is meant to be reviewed and merged into configs/catalog.json.
func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		flagLocation = fs.String("location", "", "raw-data location (s3://bucket/prefix/ or file:///dir)")
		flagFormat   = fs.String("format", "", "csv or json; detected from the sample when empty")
		flagDelim    = fs.String("delimiter", "", "CSV delimiter; detected from the header when empty")
		flagBytes    = fs.Int("bytes", 64<<10, "number of bytes to sample from the first object")
		flagRows     = fs.Int("rows", 10000, "maximum number of rows used for type inference")
		flagDatabase = fs.String("database", "retail_db_catalog", "catalog database the entry is placed under")
		flagTable    = fs.String("table", "raw", "catalog table name")
		flagDDL      = fs.String("ddl", "", "print CREATE TABLE for this dialect instead: postgres|mysql|mssql|sqlite")
		flagPretty   = fs.Bool("pretty", true, "pretty-print JSON output")
	)
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if *flagLocation == "" {
		fmt.Fprintln(stderr, "missing -location")
		fs.Usage()
		return 2
	}

	log, err := logging.FromEnv(false)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer log.Sync() //nolint:errcheck

	var delim rune
	if *flagDelim != "" {
		delim = []rune(*flagDelim)[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	res, err := probe.Probe(ctx, probe.Options{
		Location:  *flagLocation,
		Format:    *flagFormat,
		Delimiter: delim,
		MaxBytes:  *flagBytes,
		MaxRows:   *flagRows,
	})
	if err != nil {
		log.Error("probe: failed", zap.String("location", *flagLocation), zap.Error(err))
		return 1
	}
	log.Info("probe: sampled",
		zap.String("object", res.Object),
		zap.Int("rows", res.Rows),
		zap.Int("columns", len(res.Entry.Columns)),
	)
	for from, to := range res.Renames {
		log.Warn("probe: column is not a plain identifier", zap.String("column", from), zap.String("suggested", to))
	}

	if *flagDDL != "" {
		d, ok := dialects[*flagDDL]
		if !ok {
			fmt.Fprintf(stderr, "unknown dialect %q\n", *flagDDL)
			return 2
		}
		stmt, err := ddl.BuildCreateTable(ddl.FromSchema(*flagTable, res.Entry.Columns, d), d)
		if err != nil {
			log.Error("probe: ddl", zap.Error(err))
			return 1
		}
		fmt.Fprintln(stdout, stmt)
		return 0
	}

	doc := map[string]map[string]map[string]catalog.Entry{
		"databases": {*flagDatabase: {*flagTable: res.Entry}},
	}
	enc := json.NewEncoder(stdout)
	if *flagPretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		log.Error("probe: encode", zap.Error(err))
		return 1
	}
	return 0
}

var dialects = map[string]ddl.Dialect{
	"postgres": ddl.Postgres,
	"mysql":    ddl.MySQL,
	"mssql":    ddl.MSSQL,
	"sqlite":   ddl.SQLite,
}
