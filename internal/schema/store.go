package schema

import (
	"sort"

	"szattr/internal"
)

// Store holds the attribute and feature-type definitions keyed by code.
// It is read-only once built and may be shared between goroutines.
type Store struct {
	attrs    map[string]internal.AttributeDefinition
	features map[string]internal.FeatureDefinition
}

func NewStore(attrs []internal.AttributeDefinition, features []internal.FeatureDefinition) *Store {
	s := &Store{
		attrs:    make(map[string]internal.AttributeDefinition, len(attrs)),
		features: make(map[string]internal.FeatureDefinition, len(features)),
	}
	for _, a := range attrs {
		s.attrs[a.AttrCode] = a
	}
	for _, f := range features {
		s.features[f.FeatureCode] = f
	}
	return s
}

// Attribute returns a copy of the definition for code.
func (s *Store) Attribute(code string) (internal.AttributeDefinition, bool) {
	a, ok := s.attrs[code]
	return a, ok
}

func (s *Store) Feature(code string) (internal.FeatureDefinition, bool) {
	f, ok := s.features[code]
	return f, ok
}

func (s *Store) Len() int { return len(s.attrs) }

func (s *Store) FeatureLen() int { return len(s.features) }

// SortFeatureCodes orders codes by FTYPE_ID. Codes missing from the store go last, by name.
func (s *Store) SortFeatureCodes(codes []string) {
	sort.SliceStable(codes, func(i, j int) bool {
		fi, iok := s.features[codes[i]]
		fj, jok := s.features[codes[j]]
		switch {
		case iok && jok:
			if fi.FeatureID != fj.FeatureID {
				return fi.FeatureID < fj.FeatureID
			}
			return codes[i] < codes[j]
		case iok:
			return true
		case jok:
			return false
		default:
			return codes[i] < codes[j]
		}
	})
}
