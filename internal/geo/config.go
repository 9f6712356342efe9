package geo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"szattr/internal/util"
)

// ConfigError reports an unreadable or inconsistent geo configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("geo config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

type Target struct {
	Name        string   `json:"-" yaml:"-"`
	Function    string   `json:"function" yaml:"function"`
	Cities      []string `json:"cities" yaml:"cities"`
	States      []string `json:"states" yaml:"states"`
	PostalCodes []string `json:"postal_codes" yaml:"postal_codes"`
	Countries   []string `json:"countries" yaml:"countries"`

	citiesPad []string
	statesPad []string
	strategy  Strategy
}

type SourceFile struct {
	Code string
	Path string
}

type Config struct {
	OutputPath  string
	SourceFiles []SourceFile
	Targets     map[string]*Target
	// TargetNames lists the active targets sorted by name.
	TargetNames []string
}

type rawConfig struct {
	OutputPath  string             `json:"output_path" yaml:"output_path"`
	SourceFiles map[string]string  `json:"source_files" yaml:"source_files"`
	TargetGeos  map[string]*Target `json:"target_geos" yaml:"target_geos"`
}

// LoadConfig reads a YAML file (.yaml, .yml) or JSON with comments (anything else).
// Targets whose key starts with "inactive" are dropped.
func LoadConfig(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var raw rawConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(blob, &raw)
	default:
		err = json.Unmarshal(util.StripComments(blob), &raw)
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	cfg, err := buildConfig(raw)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

func buildConfig(raw rawConfig) (*Config, error) {
	if strings.TrimSpace(raw.OutputPath) == "" {
		return nil, fmt.Errorf("output_path is required")
	}
	cfg := &Config{
		OutputPath: raw.OutputPath,
		Targets:    map[string]*Target{},
	}

	for code, path := range raw.SourceFiles {
		cfg.SourceFiles = append(cfg.SourceFiles, SourceFile{Code: code, Path: path})
	}
	sort.Slice(cfg.SourceFiles, func(i, j int) bool { return cfg.SourceFiles[i].Code < cfg.SourceFiles[j].Code })

	for name, t := range raw.TargetGeos {
		if strings.HasPrefix(name, "inactive") || t == nil {
			continue
		}
		strategy, ok := strategies[t.Function]
		if !ok {
			return nil, fmt.Errorf("target %s: unknown function %q (available: %s)", name, t.Function, strings.Join(StrategyNames(), ", "))
		}
		t.Name = name
		t.strategy = strategy
		t.Cities = normalizeAll(t.Cities)
		t.States = normalizeAll(t.States)
		t.PostalCodes = normalizeAll(t.PostalCodes)
		t.Countries = normalizeAll(t.Countries)
		t.citiesPad = util.Pad(t.Cities)
		t.statesPad = util.Pad(t.States)
		cfg.Targets[name] = t
		cfg.TargetNames = append(cfg.TargetNames, name)
	}
	sort.Strings(cfg.TargetNames)
	return cfg, nil
}

func (c *Config) Source(code string) (SourceFile, bool) {
	for _, sf := range c.SourceFiles {
		if sf.Code == code {
			return sf, true
		}
	}
	return SourceFile{}, false
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, util.NormalizeGeo(v))
	}
	return out
}
