package schema

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"szattr/internal"
	"szattr/internal/util"
)

// LoadError reports why a schema file could not be turned into a Store.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load schema %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

type schemaFile struct {
	Config *struct {
		Attributes []internal.AttributeDefinition `json:"CFG_ATTR"`
		Features   []internal.FeatureDefinition   `json:"CFG_FTYPE"`
	} `json:"G2_CONFIG"`
}

func Load(path string) (*Store, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return Parse(path, blob)
}

// Parse builds a Store from schema file contents; path is only used in errors.
func Parse(path string, blob []byte) (*Store, error) {
	var raw schemaFile
	if err := json.Unmarshal(util.StripComments(blob), &raw); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if raw.Config == nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("missing G2_CONFIG")}
	}
	if raw.Config.Attributes == nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("missing G2_CONFIG.CFG_ATTR")}
	}
	if raw.Config.Features == nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("missing G2_CONFIG.CFG_FTYPE")}
	}
	for i, a := range raw.Config.Attributes {
		if a.AttrCode == "" {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("CFG_ATTR[%d] has no ATTR_CODE", i)}
		}
	}
	for i, f := range raw.Config.Features {
		if f.FeatureCode == "" {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("CFG_FTYPE[%d] has no FTYPE_CODE", i)}
		}
	}
	return NewStore(raw.Config.Attributes, raw.Config.Features), nil
}
