package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"szattr/internal/normalize"
)

const lastUpdatedColumn = "LAST_UPDATED"

type CordStatsService struct {
	counter       counter
	statsFileName string
	now           func() time.Time
}

func NewCordStatsService(parser *normalize.Parser, logger *log.Logger, opts StatsOptions, statsFileName string) *CordStatsService {
	return &CordStatsService{
		counter:       counter{parser: parser, logger: logger, opts: opts},
		statsFileName: statsFileName,
		now:           time.Now,
	}
}

type CordResult struct {
	StatsFile  string
	BackupFile string
	Files      []*FileCounts
	Updated    []string
	Saved      bool
}

// Update recounts every matching JSONL file and brings its row of the statistics workbook
// up to date. target is a directory (all *.jsonl inside) or a glob. The workbook lives next to
// the files; the previous version is kept as <name>.bak when anything changed.
func (s *CordStatsService) Update(ctx context.Context, target string) (CordResult, error) {
	dir := target
	pattern := target
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		pattern = filepath.Join(target, "*.jsonl")
	} else {
		dir = filepath.Dir(target)
	}

	files, err := filepath.Glob(pattern)
	if err != nil {
		return CordResult{}, err
	}
	if len(files) == 0 {
		return CordResult{}, errors.New("no files found")
	}
	sort.Strings(files)

	result := CordResult{StatsFile: filepath.Join(dir, s.statsFileName)}
	if _, err := os.Stat(result.StatsFile); err != nil {
		return CordResult{}, fmt.Errorf("%s not found: %w", result.StatsFile, err)
	}

	counts, err := s.counter.countFiles(ctx, files)
	if err != nil {
		return CordResult{}, err
	}
	result.Files = counts

	wb, err := excelize.OpenFile(result.StatsFile)
	if err != nil {
		return CordResult{}, err
	}
	defer wb.Close()

	sheet := wb.GetSheetName(0)
	for _, c := range counts {
		updated, err := s.updateRow(wb, sheet, c)
		if err != nil {
			return CordResult{}, fmt.Errorf("%s: %w", c.Path, err)
		}
		if updated {
			s.counter.logger.Printf("-->> updated %s", c.Path)
			result.Updated = append(result.Updated, c.Path)
		}
	}

	if len(result.Updated) == 0 {
		return result, nil
	}

	result.BackupFile = result.StatsFile + ".bak"
	if err := os.Remove(result.BackupFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return CordResult{}, err
	}
	if err := os.Rename(result.StatsFile, result.BackupFile); err != nil {
		return CordResult{}, err
	}
	if err := wb.SaveAs(result.StatsFile); err != nil {
		return CordResult{}, err
	}
	result.Saved = true
	s.counter.logger.Printf("updates saved to %s", result.StatsFile)
	return result, nil
}

func (s *CordStatsService) updateRow(wb *excelize.File, sheet string, c *FileCounts) (bool, error) {
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, errors.New("statistics sheet has no header row")
	}
	header := append([]string(nil), rows[0]...)
	srcCol, geoCol := indexOf(header, "SOURCE"), indexOf(header, "GEO")
	if srcCol < 0 || geoCol < 0 {
		return false, errors.New("statistics sheet needs SOURCE and GEO columns")
	}

	get := func(row, col int) (string, error) {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return "", err
		}
		return wb.GetCellValue(sheet, cell)
	}
	set := func(row, col int, value any) error {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		return wb.SetCellValue(sheet, cell, value)
	}

	rowIdx := 0
	for i, row := range rows {
		if cellAt(row, srcCol) == c.Source && cellAt(row, geoCol) == c.Geo {
			rowIdx = i + 1
			break
		}
	}
	if rowIdx == 0 {
		// new rows copy the formatting of the current last row
		last := len(rows)
		if err := wb.DuplicateRow(sheet, last); err != nil {
			return false, err
		}
		rowIdx = last + 1
		for col := range header {
			if err := set(rowIdx, col, 0); err != nil {
				return false, err
			}
		}
	}

	updated := false
	for _, name := range c.Columns.Names() {
		value, _ := c.Columns.Get(name)
		col := indexOf(header, name)
		if col < 0 {
			header = append(header, name)
			col = len(header) - 1
			if err := set(1, col, name); err != nil {
				return false, err
			}
			if err := set(rowIdx, col, value); err != nil {
				return false, err
			}
			updated = true
			continue
		}
		current, err := get(rowIdx, col)
		if err != nil {
			return false, err
		}
		if current != fmt.Sprint(value) {
			if err := set(rowIdx, col, value); err != nil {
				return false, err
			}
			updated = true
		}
	}

	for col, name := range header {
		if _, ok := c.Columns.Get(name); ok || name == lastUpdatedColumn {
			continue
		}
		current, err := get(rowIdx, col)
		if err != nil {
			return false, err
		}
		if current != "" && current != "0" {
			if err := set(rowIdx, col, 0); err != nil {
				return false, err
			}
			updated = true
		}
	}

	if !updated {
		return false, nil
	}
	col := indexOf(header, lastUpdatedColumn)
	if col < 0 {
		header = append(header, lastUpdatedColumn)
		col = len(header) - 1
		if err := set(1, col, lastUpdatedColumn); err != nil {
			return false, err
		}
	}
	return true, set(rowIdx, col, s.now())
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}
