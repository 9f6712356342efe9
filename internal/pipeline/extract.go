package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	json "github.com/goccy/go-json"

	"szattr/internal"
	"szattr/internal/geo"
	"szattr/internal/normalize"
	"szattr/internal/util"
)

const (
	StatusComplete    = "Complete"
	StatusInterrupted = "Interrupted"
	StatusErrored     = "Errored out!"
)

var validRecordTypes = []string{"PERSON", "ORGANIZATION"}

var addrMarker = []byte("ADDR_")

type ExtractOptions struct {
	// Source is a configured source code or "all".
	Source string
	// Targets are configured geo names; a single "all" selects every active geo.
	Targets       []string
	ProgressEvery int
	AlphaFilter   string
	SkipInvalid   bool
	Debug         bool
}

type TargetStats struct {
	Geo      string
	FileName string
	Count    int

	file *os.File
	w    *bufio.Writer
}

type SourceStats struct {
	Code            string
	Path            string
	Rows            int
	NoAddressSkips  int
	RecordTypeSkips int
	AlphaSkips      int
	InvalidRecords  int
	Targets         []*TargetStats
}

type ExtractResult struct {
	Status           string
	Sources          []*SourceStats
	InvalidCountries geo.InvalidCountryLog
}

// Counts flattens the result for the run ledger.
func (r ExtractResult) Counts() internal.RunCounts {
	out := internal.RunCounts{}
	for _, s := range r.Sources {
		out[s.Code+".rows"] = s.Rows
		for _, t := range s.Targets {
			out[s.Code+"."+t.Geo] = t.Count
		}
	}
	return out
}

type ExtractService struct {
	parser *normalize.Parser
	cfg    *geo.Config
	logger *log.Logger
}

func NewExtractService(parser *normalize.Parser, cfg *geo.Config, logger *log.Logger) *ExtractService {
	return &ExtractService{parser: parser, cfg: cfg, logger: logger}
}

// Run copies every record with at least one address inside a target geo into
// <output>/<source>-<geo>[-<ALPHA>].jsonl. Files are only created for targets with matches.
func (s *ExtractService) Run(ctx context.Context, opts ExtractOptions) (ExtractResult, error) {
	sources, err := s.selectSources(opts.Source)
	if err != nil {
		return ExtractResult{}, err
	}
	targets, err := s.selectTargets(opts.Targets)
	if err != nil {
		return ExtractResult{}, err
	}

	alpha := strings.ToLower(opts.AlphaFilter)
	alphaExt := ""
	if alpha != "" {
		alphaExt = "-" + strings.ToUpper(alpha)
	}

	matcher := geo.NewMatcher(s.cfg)
	result := ExtractResult{Status: StatusComplete, InvalidCountries: matcher.Invalid}
	for _, src := range sources {
		stats := &SourceStats{Code: src.Code, Path: src.Path}
		for _, t := range targets {
			stats.Targets = append(stats.Targets, &TargetStats{
				Geo:      t,
				FileName: filepath.Join(s.cfg.OutputPath, fmt.Sprintf("%s-%s%s.jsonl", src.Code, t, alphaExt)),
			})
		}
		result.Sources = append(result.Sources, stats)
	}

	defer func() {
		for _, src := range result.Sources {
			for _, t := range src.Targets {
				if err := t.close(); err != nil {
					s.logger.Printf("close %s: %v", t.FileName, err)
				}
			}
		}
	}()

	for _, stats := range result.Sources {
		s.logger.Printf("processing %s", stats.Path)
		err := eachLine(ctx, stats.Path, func(lineNo int, line []byte) error {
			stats.Rows++
			if opts.ProgressEvery > 0 && stats.Rows%opts.ProgressEvery == 0 {
				s.logProgress(stats)
			}
			return s.processLine(stats, matcher, alpha, line, opts)
		})
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result.Status = StatusInterrupted
			break
		}
		if err != nil {
			result.Status = StatusErrored
			return result, fmt.Errorf("%s: %w", stats.Path, err)
		}
	}

	for _, stats := range result.Sources {
		s.logProgress(stats)
	}
	return result, nil
}

func (s *ExtractService) processLine(stats *SourceStats, matcher *geo.Matcher, alpha string, line []byte, opts ExtractOptions) error {
	if !bytes.Contains(line, addrMarker) {
		stats.NoAddressSkips++
		return nil
	}

	attrs, err := s.parser.Parse(line)
	if err != nil {
		if opts.SkipInvalid {
			stats.InvalidRecords++
			s.logger.Printf("%s row %d: %v", stats.Path, stats.Rows, err)
			return nil
		}
		return fmt.Errorf("row %d: %w", stats.Rows, err)
	}
	if opts.Debug {
		s.logger.Print(spew.Sdump(attrs))
	}

	var recordTypes, names []string
	var addrs []geo.Address
	for _, a := range attrs {
		switch {
		case a.Attribute == internal.FeatureRecordType:
			recordTypes = append(recordTypes, a.Value)
		case a.Attribute == "NAME" && alpha != "":
			if name := primaryName(a); name != "" {
				names = append(names, name)
			}
		case a.Attribute == "ADDRESS":
			addrs = append(addrs, geo.AddressFromAttribute(a))
		}
	}

	if !anyIn(recordTypes, validRecordTypes) {
		stats.RecordTypeSkips++
		if opts.Debug {
			s.logger.Print("-> invalid record_type")
		}
		return nil
	}
	if alpha != "" && !util.HasAnyPrefixOf(names, alpha) {
		stats.AlphaSkips++
		if opts.Debug {
			s.logger.Print("-> failed alpha check")
		}
		return nil
	}

	for _, t := range stats.Targets {
		for i, addr := range addrs {
			passed := matcher.Match(t.Geo, addr)
			if opts.Debug {
				s.logger.Printf("testing addr %d for %s: passed=%t full=%q city=%q state=%q country=%q",
					i+1, strings.ToUpper(t.Geo), passed, addr.Full, addr.City, addr.State, addr.Country)
			}
			if !passed {
				continue
			}
			if err := t.write(line); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteInvalidCountries prints the per-geo log of addresses rejected on country as indented
// JSON with sorted keys.
func WriteInvalidCountries(w io.Writer, log geo.InvalidCountryLog) error {
	blob, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Invalid country log\n%s\n", blob); err != nil {
		return err
	}
	return nil
}

func (s *ExtractService) logProgress(stats *SourceStats) {
	s.logger.Printf("%d rows read from %s", stats.Rows, stats.Path)
	for _, t := range stats.Targets {
		s.logger.Printf("\t%s - %d rows found", t.Geo, t.Count)
	}
}

func (s *ExtractService) selectSources(source string) ([]geo.SourceFile, error) {
	if strings.EqualFold(source, "all") {
		return s.cfg.SourceFiles, nil
	}
	sf, ok := s.cfg.Source(source)
	if !ok {
		codes := make([]string, 0, len(s.cfg.SourceFiles))
		for _, c := range s.cfg.SourceFiles {
			codes = append(codes, c.Code)
		}
		return nil, fmt.Errorf("%s not configured, configured files: %s", source, strings.Join(codes, ", "))
	}
	return []geo.SourceFile{sf}, nil
}

func (s *ExtractService) selectTargets(targets []string) ([]string, error) {
	if len(targets) == 1 && targets[0] == "all" {
		return s.cfg.TargetNames, nil
	}
	if len(targets) == 0 {
		return nil, errors.New("at least one target geo is required")
	}
	for _, t := range targets {
		if _, ok := s.cfg.Targets[t]; !ok {
			return nil, fmt.Errorf("unknown target geo %s, available: %s, all", t, strings.Join(s.cfg.TargetNames, ", "))
		}
	}
	return targets, nil
}

// primaryName picks the first present organization, full or last name, lowercased. A
// blank NAME_ORG still wins over NAME_FULL.
func primaryName(a internal.NormalizedAttribute) string {
	for _, code := range []string{"NAME_ORG", "NAME_FULL", "NAME_LAST"} {
		if v := a.StringValue(code); v != "" {
			return strings.ToLower(strings.TrimSpace(v))
		}
	}
	return ""
}

func anyIn(values, allowed []string) bool {
	for _, v := range values {
		if util.EqualsAny(v, allowed) {
			return true
		}
	}
	return false
}

func (t *TargetStats) write(line []byte) error {
	if t.w == nil {
		if err := os.MkdirAll(filepath.Dir(t.FileName), 0o755); err != nil {
			return err
		}
		f, err := os.Create(t.FileName)
		if err != nil {
			return err
		}
		t.file = f
		t.w = bufio.NewWriter(f)
	}
	if _, err := t.w.Write(line); err != nil {
		return err
	}
	if line[len(line)-1] != '\n' {
		if err := t.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	t.Count++
	return nil
}

func (t *TargetStats) close() error {
	if t.file == nil {
		return nil
	}
	flushErr := t.w.Flush()
	closeErr := t.file.Close()
	t.file, t.w = nil, nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
