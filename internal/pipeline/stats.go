package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"szattr/internal"
	"szattr/internal/normalize"
	"szattr/internal/worker"
)

type StatsOptions struct {
	Workers       int
	RateLimitRPS  float64
	ProgressEvery int
	SkipInvalid   bool
}

// FileCounts is the feature census of one <source>-<geo>.jsonl file.
type FileCounts struct {
	Path           string
	Source         string
	Geo            string
	Rows           int
	InvalidRecords int
	RecordTypes    map[string]int
	Features       map[string]int
	// Columns holds the statistics workbook columns in first-seen order.
	Columns *ColumnCounts
}

// RecordTypeTotal is the number of RECORD_TYPE values seen, the "records" column of the
// CSV report.
func (c *FileCounts) RecordTypeTotal() int {
	total := 0
	for _, n := range c.RecordTypes {
		total += n
	}
	return total
}

type counter struct {
	parser *normalize.Parser
	logger *log.Logger
	opts   StatsOptions
}

func (c counter) countFiles(ctx context.Context, files []string) ([]*FileCounts, error) {
	results, err := worker.ProcessAll(ctx, files, c.countFile, worker.Options{
		Workers:       c.opts.Workers,
		RateLimitRPS:  c.opts.RateLimitRPS,
		FailurePolicy: worker.FailurePolicyFailFast,
	})
	if err != nil {
		return nil, err
	}
	out := make([]*FileCounts, 0, len(results))
	for _, r := range results {
		out = append(out, r.Output)
	}
	return out, nil
}

func (c counter) countFile(ctx context.Context, path string) (*FileCounts, error) {
	source, geoName, err := splitSourceGeo(path)
	if err != nil {
		return nil, err
	}
	counts := &FileCounts{
		Path:        path,
		Source:      source,
		Geo:         geoName,
		RecordTypes: map[string]int{},
		Features:    map[string]int{},
		Columns:     NewColumnCounts(),
	}
	counts.Columns.Set("SOURCE", source)
	counts.Columns.Set("GEO", geoName)
	counts.Columns.Set("RECORD_COUNT", 0)

	err = eachLine(ctx, path, func(lineNo int, line []byte) error {
		attrs, err := c.parser.Parse(line)
		if err != nil {
			if !c.opts.SkipInvalid {
				return fmt.Errorf("%s row %d: %w", path, lineNo, err)
			}
			counts.InvalidRecords++
			c.logger.Printf("%s row %d: %v", path, lineNo, err)
			return nil
		}
		for _, a := range attrs {
			if a.FeatureType == nil || *a.FeatureType == "" {
				continue
			}
			if *a.FeatureType == internal.FeatureRecordType {
				counts.RecordTypes[a.Value]++
				counts.Columns.Inc(a.Value + "_COUNT")
			} else {
				counts.Features[*a.FeatureType]++
				counts.Columns.Inc(*a.FeatureType + "_FEATURES")
			}
		}
		counts.Rows++
		counts.Columns.Set("RECORD_COUNT", counts.Rows)
		if c.opts.ProgressEvery > 0 && counts.Rows%c.opts.ProgressEvery == 0 {
			c.logger.Printf("%d rows processed for %s", counts.Rows, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Printf("%d rows processed for %s, complete!", counts.Rows, path)
	return counts, nil
}

type FileStatsService struct {
	counter counter
}

func NewFileStatsService(parser *normalize.Parser, logger *log.Logger, opts StatsOptions) *FileStatsService {
	return &FileStatsService{counter: counter{parser: parser, logger: logger, opts: opts}}
}

type FileStatsResult struct {
	Files   []*FileCounts
	CSVPath string
}

// Collect counts record types and features for every *.jsonl file in dir and writes
// dir/file_stats.csv.
func (s *FileStatsService) Collect(ctx context.Context, dir string) (FileStatsResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return FileStatsResult{}, err
	}
	if len(files) == 0 {
		return FileStatsResult{}, fmt.Errorf("no .jsonl files found in %s", dir)
	}
	sort.Strings(files)

	counts, err := s.counter.countFiles(ctx, files)
	if err != nil {
		return FileStatsResult{}, err
	}

	out := filepath.Join(dir, "file_stats.csv")
	if err := s.writeCSV(out, counts); err != nil {
		return FileStatsResult{}, err
	}
	return FileStatsResult{Files: counts, CSVPath: out}, nil
}

func (s *FileStatsService) writeCSV(path string, counts []*FileCounts) error {
	rtSet := map[string]struct{}{}
	ftSet := map[string]struct{}{}
	for _, c := range counts {
		for rt := range c.RecordTypes {
			rtSet[rt] = struct{}{}
		}
		for ft := range c.Features {
			ftSet[ft] = struct{}{}
		}
	}
	recordTypes := keys(rtSet)
	sort.Strings(recordTypes)
	features := keys(ftSet)
	s.counter.parser.Store().SortFeatureCodes(features)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"source", "geo", "records"}, recordTypes...)
	header = append(header, features...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, c := range counts {
		row := []string{c.Source, c.Geo, strconv.Itoa(c.RecordTypeTotal())}
		for _, rt := range recordTypes {
			row = append(row, strconv.Itoa(c.RecordTypes[rt]))
		}
		for _, ft := range features {
			row = append(row, strconv.Itoa(c.Features[ft]))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// LedgerCounts returns the integer workbook columns for the run ledger.
func (c *FileCounts) LedgerCounts() internal.RunCounts {
	out := internal.RunCounts{}
	for _, name := range c.Columns.Names() {
		if v, ok := c.Columns.Get(name); ok {
			if n, isInt := v.(int); isInt {
				out[name] = n
			}
		}
	}
	return out
}
