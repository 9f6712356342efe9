package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"

	json "github.com/goccy/go-json"

	"szattr/internal/normalize"
)

type ParseOptions struct {
	// Groups emits the grouped attribute instances instead of the assembled attributes.
	Groups      bool
	SkipInvalid bool
	// XLSXPath, when set, also writes every normalized attribute to a workbook.
	XLSXPath string
}

type ParseResult struct {
	Records        int
	Attributes     int
	InvalidRecords int
}

type ParseService struct {
	parser *normalize.Parser
	logger *log.Logger
}

func NewParseService(parser *normalize.Parser, logger *log.Logger) *ParseService {
	return &ParseService{parser: parser, logger: logger}
}

// Run normalizes every JSONL record read from in and writes one JSON array per record to out.
func (s *ParseService) Run(ctx context.Context, in io.Reader, out io.Writer, opts ParseOptions) (ParseResult, error) {
	w := bufio.NewWriter(out)
	var res ParseResult
	groups := normalize.NewGroups()
	var rows []AttributeRow

	err := eachReaderLine(ctx, in, func(lineNo int, line []byte) error {
		rec, err := normalize.ParseRecord(line)
		if err != nil {
			if !opts.SkipInvalid {
				return fmt.Errorf("row %d: %w", lineNo, err)
			}
			res.InvalidRecords++
			s.logger.Printf("row %d: %v", lineNo, err)
			return nil
		}
		res.Records++

		var blob []byte
		if opts.Groups {
			s.parser.Resolver().GroupInto(groups, rec)
			res.Attributes += groups.Len()
			blob, err = json.Marshal(groups)
		} else {
			attrs := s.parser.Normalize(rec)
			res.Attributes += len(attrs)
			if opts.XLSXPath != "" {
				for _, a := range attrs {
					rows = append(rows, AttributeRow{RecordNo: lineNo, NormalizedAttribute: a})
				}
			}
			blob, err = json.Marshal(attrs)
		}
		if err != nil {
			return err
		}
		if _, err := w.Write(blob); err != nil {
			return err
		}
		return w.WriteByte('\n')
	})
	if flushErr := w.Flush(); err == nil {
		err = flushErr
	}
	if err != nil {
		return res, err
	}
	if opts.XLSXPath != "" && !opts.Groups {
		if err := ExportAttributesToXLSX(rows, opts.XLSXPath); err != nil {
			return res, err
		}
	}
	return res, nil
}
