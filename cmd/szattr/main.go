package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"szattr/internal"
	"szattr/internal/config"
	"szattr/internal/geo"
	"szattr/internal/normalize"
	"szattr/internal/pipeline"
	"szattr/internal/schema"
	"szattr/internal/storage"
)

const cordSavedKey = "cord_stats.last_saved"

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	cmd := os.Args[1]
	switch cmd {
	case "parse":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "JSONL file (default stdin)")
		groups := fs.Bool("groups", false, "emit grouped attribute instances")
		skipInvalid := fs.Bool("skip-invalid", false, "log and skip malformed records")
		xlsx := fs.String("xlsx", "", "also export normalized attributes to this workbook")
		_ = fs.Parse(os.Args[2:])

		var in io.Reader = os.Stdin
		if strings.TrimSpace(*input) != "" {
			f, err := os.Open(*input)
			must(err)
			defer f.Close()
			in = f
		}
		svc := pipeline.NewParseService(loadParser(cfg), logger)
		res, err := svc.Run(ctx, in, os.Stdout, pipeline.ParseOptions{Groups: *groups, SkipInvalid: *skipInvalid, XLSXPath: *xlsx})
		must(err)
		logger.Printf("parse done records=%d attributes=%d invalid=%d", res.Records, res.Attributes, res.InvalidRecords)
	case "geo:extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		progress := fs.Int("o", cfg.ProgressEvery, "output statistics every N records")
		alpha := fs.String("a", "", "only records whose primary name starts with this value")
		debug := fs.Bool("D", false, "dump parsed records")
		skipInvalid := fs.Bool("skip-invalid", false, "log and skip malformed records")
		_ = fs.Parse(os.Args[2:])
		args := fs.Args()
		if len(args) < 2 {
			must(fmt.Errorf("geo:extract needs <source|all> <geo...|all>"))
		}

		geoCfg, err := geo.LoadConfig(cfg.GeoConfigPath)
		must(err)
		if cfg.OutputDir != "" {
			geoCfg.OutputPath = cfg.OutputDir
		}
		svc := pipeline.NewExtractService(loadParser(cfg), geoCfg, logger)
		start := time.Now()
		res, err := svc.Run(ctx, pipeline.ExtractOptions{
			Source:        args[0],
			Targets:       args[1:],
			ProgressEvery: *progress,
			AlphaFilter:   *alpha,
			SkipInvalid:   *skipInvalid,
			Debug:         *debug,
		})
		recordRun(cfg, logger, cmd, res.Status, res.Counts(), func(db *storage.DB) error {
			return db.AddInvalidCountries(res.InvalidCountries)
		})
		must(err)
		for _, src := range res.Sources {
			for _, t := range src.Targets {
				if t.Count > 0 {
					fmt.Printf("%s -> %s: %d\n", src.Code, t.FileName, t.Count)
				}
			}
		}
		must(pipeline.WriteInvalidCountries(os.Stdout, res.InvalidCountries))
		fmt.Printf("geo extract %s in %s\n", res.Status, time.Since(start).Round(time.Second))
	case "geo:invalid":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		_ = fs.Parse(os.Args[2:])
		geos := fs.Args()
		if len(geos) == 0 {
			must(fmt.Errorf("geo:invalid needs <geo...>"))
		}

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		invalid := geo.InvalidCountryLog{}
		for _, name := range geos {
			values, err := db.InvalidCountries(name)
			must(err)
			if len(values) > 0 {
				invalid[name] = values
			}
		}
		must(pipeline.WriteInvalidCountries(os.Stdout, invalid))
	case "stats:jsonl":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dir := fs.String("dir", "", "directory of <source>-<geo>.jsonl files")
		skipInvalid := fs.Bool("skip-invalid", false, "log and skip malformed records")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*dir) == "" {
			must(fmt.Errorf("--dir is required"))
		}

		svc := pipeline.NewFileStatsService(loadParser(cfg), logger, statsOptions(cfg, *skipInvalid))
		res, err := svc.Collect(ctx, *dir)
		status := pipeline.StatusComplete
		if err != nil {
			status = pipeline.StatusErrored
		}
		recordRun(cfg, logger, cmd, status, internal.RunCounts{"files": len(res.Files)}, func(db *storage.DB) error {
			return recordFileStats(db, res.Files)
		})
		must(err)
		fmt.Printf("file stats written to %s files=%d\n", res.CSVPath, len(res.Files))
	case "stats:cord":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		path := fs.String("path", "", "directory or glob of <source>-<geo>.jsonl files")
		skipInvalid := fs.Bool("skip-invalid", false, "log and skip malformed records")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*path) == "" {
			must(fmt.Errorf("--path is required"))
		}

		svc := pipeline.NewCordStatsService(loadParser(cfg), logger, statsOptions(cfg, *skipInvalid), cfg.CordStatsFile)
		res, err := svc.Update(ctx, *path)
		status := pipeline.StatusComplete
		if err != nil {
			status = pipeline.StatusErrored
		}
		recordRun(cfg, logger, cmd, status, internal.RunCounts{"files": len(res.Files), "updated": len(res.Updated)}, func(db *storage.DB) error {
			if err := recordFileStats(db, res.Files); err != nil {
				return err
			}
			if !res.Saved {
				return nil
			}
			return db.SetMetadata(cordSavedKey, time.Now().UTC().Format(time.RFC3339)+" "+res.StatsFile)
		})
		must(err)
		if !res.Saved {
			fmt.Println("no updates needed")
			return
		}
		fmt.Printf("updated %d rows in %s (backup %s)\n", len(res.Updated), res.StatsFile, res.BackupFile)
	case "stats:show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		source := fs.String("source", "", "source code")
		geoName := fs.String("geo", "", "geo name")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*source) == "" || strings.TrimSpace(*geoName) == "" {
			must(fmt.Errorf("--source and --geo are required"))
		}

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		counts, err := db.GetFileStats(*source, *geoName)
		must(err)
		if len(counts) == 0 {
			must(fmt.Errorf("no stats recorded for %s-%s", *source, *geoName))
		}
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%-24s %d\n", name, counts[name])
		}
	case "runs:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "number of runs")
		_ = fs.Parse(os.Args[2:])

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		runs, err := db.ListRuns(*limit)
		must(err)
		for _, r := range runs {
			fmt.Printf("%s  %-12s %-14s %s %v\n", r.CreatedAt, r.Command, r.Status, r.TraceID, r.Counts)
		}
		saved, err := db.GetMetadata(cordSavedKey)
		must(err)
		if saved != nil {
			fmt.Printf("cord stats last saved: %s\n", *saved)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func loadParser(cfg config.Config) *normalize.Parser {
	must(cfg.Require("SCHEMA_PATH", cfg.SchemaPath))
	store, err := schema.Load(cfg.SchemaPath)
	must(err)
	return normalize.NewParser(store)
}

func statsOptions(cfg config.Config, skipInvalid bool) pipeline.StatsOptions {
	return pipeline.StatsOptions{
		SkipInvalid:   skipInvalid,
		Workers:       cfg.StatsWorkers,
		RateLimitRPS:  cfg.StatsRateLimitRPS,
		ProgressEvery: cfg.ProgressEvery,
	}
}

// recordRun writes the run to the ledger. Ledger failures are logged, never fatal.
func recordRun(cfg config.Config, logger *log.Logger, command, status string, counts internal.RunCounts, extra func(*storage.DB) error) {
	if !cfg.RecordLedger {
		return
	}
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Printf("ledger: %v", err)
		return
	}
	defer db.Close()

	if err := db.InsertRun(pipeline.TraceID(), command, status, counts); err != nil {
		logger.Printf("ledger: %v", err)
	}
	if extra != nil {
		if err := extra(db); err != nil {
			logger.Printf("ledger: %v", err)
		}
	}
}

func recordFileStats(db *storage.DB, files []*pipeline.FileCounts) error {
	for _, f := range files {
		if err := db.ReplaceFileStats(f.Source, f.Geo, f.LedgerCounts()); err != nil {
			return err
		}
	}
	return nil
}

func usage() {
	fmt.Println("usage: szattr <command>")
	fmt.Println("commands:")
	fmt.Println("  parse [--input=records.jsonl] [--groups] [--skip-invalid] [--xlsx=./out/attributes.xlsx]")
	fmt.Println("  geo:extract [-o 100000] [-a alpha] [-D] [--skip-invalid] <source|all> <geo...|all>")
	fmt.Println("  geo:invalid <geo...>")
	fmt.Println("  stats:jsonl --dir=./out [--skip-invalid]")
	fmt.Println("  stats:cord --path=./out [--skip-invalid]")
	fmt.Println("  stats:show --source=SRC --geo=las_vegas")
	fmt.Println("  runs:list [--limit=20]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
