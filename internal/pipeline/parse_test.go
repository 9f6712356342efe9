package pipeline

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"
)

func TestParseServiceWritesOneLinePerRecord(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`{"RECORD_TYPE": "PERSON", "NAME_FULL": "Ann Lee", "PHONE_NUMBER": 7025550100}`,
		``,
		`{"NAMES": [{"NAME_FULL": "A"}, {"NAME_FULL": "B"}]}`,
	}, "\n"))
	var out bytes.Buffer

	svc := NewParseService(testParser(t), discardLogger())
	res, err := svc.Run(context.Background(), in, &out, ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Records != 2 || res.Attributes != 5 {
		t.Fatalf("unexpected result: %+v", res)
	}

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%d", len(lines))
	}
	var first []map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first[2]["ATTRIBUTE"] != "PHONE" || first[2]["ATTR_VALUE"] != "7025550100" {
		t.Fatalf("unexpected phone attribute: %v", first[2])
	}
	var second []map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if second[0]["SEGMENT"] != "NAMES-1" || second[1]["SEGMENT"] != "NAMES-2" {
		t.Fatalf("unexpected segments: %v", second)
	}
}

func TestParseServiceGroups(t *testing.T) {
	in := strings.NewReader(`{"ADDR_CITY": "Reno", "ADDR_STATE": "NV"}` + "\n")
	var out bytes.Buffer

	svc := NewParseService(testParser(t), discardLogger())
	if _, err := svc.Run(context.Background(), in, &out, ParseOptions{Groups: true}); err != nil {
		t.Fatal(err)
	}
	var groups map[string][]map[string]any
	if err := json.Unmarshal(out.Bytes(), &groups); err != nil {
		t.Fatal(err)
	}
	members := groups["ROOT|ADDRESS|"]
	if len(members) != 2 || members[0]["ATTR_CODE"] != "ADDR_CITY" {
		t.Fatalf("unexpected groups: %v", groups)
	}
}

func TestParseServiceInvalidRecords(t *testing.T) {
	input := `{"NAME_FULL": "A"}` + "\n" + `[1, 2]` + "\n"

	svc := NewParseService(testParser(t), discardLogger())
	if _, err := svc.Run(context.Background(), strings.NewReader(input), &bytes.Buffer{}, ParseOptions{}); err == nil {
		t.Fatal("expected error for non-object record")
	}

	var out bytes.Buffer
	res, err := svc.Run(context.Background(), strings.NewReader(input), &out, ParseOptions{SkipInvalid: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Records != 1 || res.InvalidRecords != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestParseServiceExportsWorkbook(t *testing.T) {
	in := strings.NewReader(`{"RECORD_TYPE": "PERSON", "ADDR_CITY": "Reno", "ADDR_FROM_DATE": "2020-01-01"}` + "\n")
	path := filepath.Join(t.TempDir(), "attrs", "out.xlsx")

	svc := NewParseService(testParser(t), discardLogger())
	if _, err := svc.Run(context.Background(), in, &bytes.Buffer{}, ParseOptions{XLSXPath: path}); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows=%d", len(rows))
	}
	addr := rows[2]
	if addr[3] != "ADDRESS" || addr[6] != "Reno" || addr[7] != "2020-01-01" {
		t.Fatalf("unexpected address row: %v", addr)
	}
}
