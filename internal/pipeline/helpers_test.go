package pipeline

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"szattr/internal/normalize"
	"szattr/internal/schema"
)

func testParser(t *testing.T) *normalize.Parser {
	t.Helper()
	store, err := schema.Load(filepath.Join("testdata", "sz_config.json"))
	if err != nil {
		t.Fatal(err)
	}
	return normalize.NewParser(store)
}

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	blob, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSuffix(string(blob), "\n"), "\n")
}
