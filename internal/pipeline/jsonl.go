package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// eachLine calls fn for every non-blank line of path. line keeps its trailing newline so it
// can be copied to an output file unchanged.
func eachLine(ctx context.Context, path string, fn func(lineNo int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return eachReaderLine(ctx, f, fn)
}

func eachReaderLine(ctx context.Context, in io.Reader, fn func(lineNo int, line []byte) error) error {
	r := bufio.NewReaderSize(in, 1<<20)
	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, readErr := r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			lineNo++
			if err := fn(lineNo, line); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// splitSourceGeo reads "<source>-<geo>.jsonl".
func splitSourceGeo(path string) (string, string, error) {
	base := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	parts := strings.Split(base, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("file name %s is not <source>-<geo>.jsonl", filepath.Base(path))
	}
	return parts[0], parts[1], nil
}

// ColumnCounts keeps counters in first-seen order.
type ColumnCounts struct {
	names  []string
	values map[string]any
}

func NewColumnCounts() *ColumnCounts {
	return &ColumnCounts{values: map[string]any{}}
}

func (c *ColumnCounts) Set(name string, value any) {
	if _, ok := c.values[name]; !ok {
		c.names = append(c.names, name)
	}
	c.values[name] = value
}

func (c *ColumnCounts) Inc(name string) {
	n, _ := c.values[name].(int)
	c.Set(name, n+1)
}

func (c *ColumnCounts) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *ColumnCounts) Get(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}

func (c *ColumnCounts) Int(name string) int {
	n, _ := c.values[name].(int)
	return n
}
