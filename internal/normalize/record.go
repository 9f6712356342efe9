package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// RecordParseError is returned for an input line that is not a well-formed record.
type RecordParseError struct {
	Err error
}

func (e *RecordParseError) Error() string {
	return fmt.Sprintf("parse record: %v", e.Err)
}

func (e *RecordParseError) Unwrap() error { return e.Err }

type Field struct {
	Name  string
	Value any
}

// Record is a JSON object with its key order preserved. Values are strings, json.Number,
// bool, nil, nested Records or []any.
type Record struct {
	Fields []Field
}

// Get returns the last value stored under name, matching JSON decoding semantics for
// duplicate keys.
func (r Record) Get(name string) (any, bool) {
	for i := len(r.Fields) - 1; i >= 0; i-- {
		if r.Fields[i].Name == name {
			return r.Fields[i].Value, true
		}
	}
	return nil, false
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r Record) String() string {
	blob, err := r.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(blob)
}

// ParseRecord decodes one serialized record. The top level must be an object, and every
// top-level list must hold objects only.
func ParseRecord(line []byte) (Record, error) {
	// Token does not check separators or number syntax.
	if !json.Valid(line) {
		return Record{}, &RecordParseError{Err: errors.New("invalid JSON")}
	}
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Record{}, &RecordParseError{Err: err}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Record{}, &RecordParseError{Err: errors.New("record is not a JSON object")}
	}
	rec, err := decodeObject(dec)
	if err != nil {
		return Record{}, &RecordParseError{Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Record{}, &RecordParseError{Err: errors.New("unexpected data after record")}
	}

	for _, f := range rec.Fields {
		list, ok := f.Value.([]any)
		if !ok {
			continue
		}
		for i, child := range list {
			if _, ok := child.(Record); !ok {
				return Record{}, &RecordParseError{Err: fmt.Errorf("%s[%d] is not an object", f.Name, i)}
			}
		}
	}
	return rec, nil
}

func decodeObject(dec *json.Decoder) (Record, error) {
	rec := Record{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return Record{}, err
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return rec, nil
		}
		name, ok := tok.(string)
		if !ok {
			return Record{}, fmt.Errorf("unexpected token %v", tok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return Record{}, err
		}
		rec.Fields = append(rec.Fields, Field{Name: name, Value: value})
	}
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	out := []any{}
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); ok {
		switch d {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", d)
		}
	}
	return tok, nil
}

// isEmpty reports whether a value is skipped during grouping: null, "", false, numeric zero,
// and empty lists or objects.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	case int:
		return t == 0
	case []any:
		return len(t) == 0
	case Record:
		return len(t.Fields) == 0
	}
	return false
}
