package storage

import (
	"path/filepath"
	"testing"

	"szattr/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)

	if err := db.InsertRun("t1", "geo:extract", "Complete", internal.RunCounts{"rows": 10}); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertRun("t2", "stats:jsonl", "Complete", internal.RunCounts{"files": 2}); err != nil {
		t.Fatal(err)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("len=%d", len(runs))
	}
	if runs[0].TraceID != "t2" || runs[0].Counts["files"] != 2 {
		t.Fatalf("unexpected first run: %+v", runs[0])
	}
	if runs[1].Command != "geo:extract" || runs[1].Counts["rows"] != 10 {
		t.Fatalf("unexpected second run: %+v", runs[1])
	}
}

func TestReplaceFileStats(t *testing.T) {
	db := openTestDB(t)

	if err := db.ReplaceFileStats("ICIJ", "vegas", internal.RunCounts{"RECORD_COUNT": 3, "NAME_FEATURES": 5}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceFileStats("ICIJ", "vegas", internal.RunCounts{"RECORD_COUNT": 4}); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetFileStats("ICIJ", "vegas")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got["RECORD_COUNT"] != 4 {
		t.Fatalf("unexpected stats: %v", got)
	}
}

func TestAddInvalidCountriesAccumulates(t *testing.T) {
	db := openTestDB(t)

	log := map[string]map[string]int{"vegas": {"las vegas, nv, mexico": 2}}
	if err := db.AddInvalidCountries(log); err != nil {
		t.Fatal(err)
	}
	if err := db.AddInvalidCountries(log); err != nil {
		t.Fatal(err)
	}

	got, err := db.InvalidCountries("vegas")
	if err != nil {
		t.Fatal(err)
	}
	if got["las vegas, nv, mexico"] != 4 {
		t.Fatalf("unexpected counts: %v", got)
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)

	missing, err := db.GetMetadata("schema.path")
	if err != nil || missing != nil {
		t.Fatalf("expected no value, got %v %v", missing, err)
	}
	if err := db.SetMetadata("schema.path", "/a.json"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("schema.path", "/b.json"); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetMetadata("schema.path")
	if err != nil || got == nil || *got != "/b.json" {
		t.Fatalf("unexpected value %v %v", got, err)
	}
}
