package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func mkStatsWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func cellValue(t *testing.T, f *excelize.File, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(f.GetSheetName(0), cell)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestCordStatsUpdate(t *testing.T) {
	dir := t.TempDir()
	writeStatsFixtures(t, dir)
	statsFile := filepath.Join(dir, "_CORD_STATS.xlsx")
	mkStatsWorkbook(t, statsFile, [][]any{
		{"SOURCE", "GEO", "RECORD_COUNT", "PERSON_COUNT", "NAME_FEATURES", "STALE_FEATURES", "LAST_UPDATED"},
		{"SRC", "vegas", 9, 9, 9, 5, ""},
	})

	svc := NewCordStatsService(testParser(t), discardLogger(), StatsOptions{Workers: 2}, "_CORD_STATS.xlsx")
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	res, err := svc.Update(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Saved || len(res.Updated) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(res.BackupFile); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(statsFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	checks := map[string]string{
		"C2": "2",
		"D2": "1",
		"E2": "3",
		"F2": "0",
		"H1": "ADDRESS_FEATURES",
		"H2": "1",
		"I1": "ORGANIZATION_COUNT",
		"I2": "1",
		"A3": "SRC",
		"B3": "reno",
		"C3": "1",
		"D3": "1",
		"H3": "0",
		"J1": "PHONE_FEATURES",
		"J3": "1",
	}
	for cell, want := range checks {
		if got := cellValue(t, f, cell); got != want {
			t.Fatalf("%s: got %q want %q", cell, got, want)
		}
	}
	if cellValue(t, f, "G2") == "" || cellValue(t, f, "G3") == "" {
		t.Fatal("LAST_UPDATED not set")
	}

	again, err := svc.Update(context.Background(), filepath.Join(dir, "*.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if again.Saved || len(again.Updated) != 0 {
		t.Fatalf("expected no changes on rerun: %+v", again)
	}
}

func TestCordStatsRequiresWorkbook(t *testing.T) {
	dir := t.TempDir()
	writeStatsFixtures(t, dir)

	svc := NewCordStatsService(testParser(t), discardLogger(), StatsOptions{}, "_CORD_STATS.xlsx")
	if _, err := svc.Update(context.Background(), dir); err == nil {
		t.Fatal("expected missing workbook error")
	}
	if _, err := svc.Update(context.Background(), filepath.Join(dir, "*.none")); err == nil {
		t.Fatal("expected no files error")
	}
}
