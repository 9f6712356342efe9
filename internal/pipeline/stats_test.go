package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeStatsFixtures(t *testing.T, dir string) {
	t.Helper()
	writeLines(t, filepath.Join(dir, "SRC-vegas.jsonl"),
		`{"RECORD_TYPE": "PERSON", "NAME_FULL": "A", "ADDR_CITY": "Las Vegas"}`,
		`{"RECORD_TYPE": "ORGANIZATION", "NAME_ORG": "B", "NAMES": [{"NAME_FULL": "C"}]}`,
	)
	writeLines(t, filepath.Join(dir, "SRC-reno.jsonl"),
		`{"DATA_SOURCE": "SRC", "RECORD_TYPE": "PERSON", "PHONE_NUMBER": "555"}`,
	)
}

func TestFileStatsCollect(t *testing.T) {
	dir := t.TempDir()
	writeStatsFixtures(t, dir)

	svc := NewFileStatsService(testParser(t), discardLogger(), StatsOptions{Workers: 2})
	res, err := svc.Collect(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("files=%d", len(res.Files))
	}

	f, err := os.Open(res.CSVPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	want := [][]string{
		{"source", "geo", "records", "ORGANIZATION", "PERSON", "NAME", "ADDRESS", "PHONE"},
		{"SRC", "reno", "1", "0", "1", "0", "0", "1"},
		{"SRC", "vegas", "2", "1", "1", "3", "1", "0"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("got %v\nwant %v", rows, want)
	}
}

func TestFileStatsRejectsBadFileName(t *testing.T) {
	dir := t.TempDir()
	writeLines(t, filepath.Join(dir, "nodash.jsonl"), `{"RECORD_TYPE": "PERSON"}`)

	svc := NewFileStatsService(testParser(t), discardLogger(), StatsOptions{})
	if _, err := svc.Collect(context.Background(), dir); err == nil {
		t.Fatal("expected file name error")
	}
}

func TestFileStatsNoFiles(t *testing.T) {
	svc := NewFileStatsService(testParser(t), discardLogger(), StatsOptions{})
	if _, err := svc.Collect(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestFileStatsSkipInvalid(t *testing.T) {
	dir := t.TempDir()
	writeLines(t, filepath.Join(dir, "SRC-vegas.jsonl"),
		`{"RECORD_TYPE": "PERSON", "NAME_FULL": "A"}`,
		`{"RECORD_TYPE": "PERSON", "NAME_FULL": "B",}`,
	)

	strict := NewFileStatsService(testParser(t), discardLogger(), StatsOptions{})
	if _, err := strict.Collect(context.Background(), dir); err == nil {
		t.Fatal("expected error for malformed record")
	}

	lenient := NewFileStatsService(testParser(t), discardLogger(), StatsOptions{SkipInvalid: true})
	res, err := lenient.Collect(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	counts := res.Files[0]
	if counts.Rows != 1 || counts.InvalidRecords != 1 || counts.RecordTypes["PERSON"] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}
