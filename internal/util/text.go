package util

import (
	"strings"
)

var commaReplacer = strings.NewReplacer(",", " ")

// NormalizeGeo lowercases and trims a single address component.
func NormalizeGeo(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// NormalizeFullAddress lowercases a free-form address, turns commas into spaces and pads it
// with one space on each side so padded tokens can be found with strings.Contains.
func NormalizeFullAddress(input string) string {
	return " " + strings.ToLower(commaReplacer.Replace(input)) + " "
}

// Pad surrounds every value with single spaces.
func Pad(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, " "+v+" ")
	}
	return out
}

func ContainsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func EqualsAny(s string, values []string) bool {
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}

func HasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// HasAnyPrefixOf reports whether any of values starts with prefix.
func HasAnyPrefixOf(values []string, prefix string) bool {
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}
