package geo

import (
	"fmt"
	"sort"
	"strings"

	"szattr/internal"
	"szattr/internal/util"
)

// Address holds the lowercased components of one ADDRESS attribute. Full is comma-free and
// space padded.
type Address struct {
	Full       string
	HasFull    bool
	City       string
	State      string
	PostalCode string
	Country    string
}

func AddressFromAttribute(a internal.NormalizedAttribute) Address {
	full := util.NormalizeFullAddress(a.StringValue("ADDR_FULL"))
	return Address{
		Full:       full,
		HasFull:    util.NormalizeGeo(full) != "",
		City:       util.NormalizeGeo(a.StringValue("ADDR_CITY")),
		State:      util.NormalizeGeo(a.StringValue("ADDR_STATE")),
		PostalCode: util.NormalizeGeo(a.StringValue("ADDR_POSTAL_CODE")),
		Country:    util.NormalizeGeo(a.StringValue("ADDR_COUNTRY")),
	}
}

func (a Address) describe() string {
	return fmt.Sprintf("%s, %s, %s", a.City, a.State, a.Country)
}

// Strategy decides whether an address falls inside a target.
type Strategy func(t *Target, addr Address) bool

var strategies = map[string]Strategy{
	"pure_config":     PureConfig,
	"city_or_country": CityOrCountry,
}

func StrategyNames() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PureConfig requires every configured dimension (city, state, postal code) to match.
// An empty list matches anything.
func PureConfig(t *Target, addr Address) bool {
	anyCity := len(t.Cities) == 0
	anyState := len(t.States) == 0
	anyPostal := len(t.PostalCodes) == 0

	if addr.HasFull {
		if !anyCity && !util.ContainsAny(addr.Full, t.citiesPad) {
			return false
		}
		if !anyState && !util.ContainsAny(addr.Full, t.statesPad) {
			return false
		}
		if anyPostal {
			return true
		}
		for _, p := range t.PostalCodes {
			if strings.Contains(addr.Full, " "+p) {
				return true
			}
		}
		return false
	}

	return (anyCity || util.EqualsAny(addr.City, t.Cities)) &&
		(anyState || util.EqualsAny(addr.State, t.States)) &&
		(anyPostal || util.HasAnyPrefix(addr.PostalCode, t.PostalCodes))
}

// CityOrCountry serves places that are both a city and a country, so the name may show up
// in either field.
func CityOrCountry(t *Target, addr Address) bool {
	if addr.HasFull {
		return util.ContainsAny(addr.Full, t.citiesPad)
	}
	return util.ContainsAny(addr.City, t.Cities) || util.ContainsAny(addr.Country, t.Countries)
}

// InvalidCountryLog counts, per target, addresses that matched the target's strategy but
// sit in a country the target does not list.
type InvalidCountryLog map[string]map[string]int

func (l InvalidCountryLog) Add(target, value string) {
	if l[target] == nil {
		l[target] = map[string]int{}
	}
	l[target][value]++
}

type Matcher struct {
	cfg     *Config
	Invalid InvalidCountryLog
}

func NewMatcher(cfg *Config) *Matcher {
	return &Matcher{cfg: cfg, Invalid: InvalidCountryLog{}}
}

// Match runs the target's strategy and, when it passes, confirms the country.
func (m *Matcher) Match(target string, addr Address) bool {
	t, ok := m.cfg.Targets[target]
	if !ok {
		return false
	}
	return t.strategy(t, addr) && m.confirmCountry(t, addr)
}

func (m *Matcher) confirmCountry(t *Target, addr Address) bool {
	var inCountry bool
	switch {
	case addr.Country != "":
		inCountry = util.EqualsAny(addr.Country, t.Countries)
	case addr.HasFull:
		inCountry = util.ContainsAny(addr.Full, util.Pad(t.Countries))
	default:
		inCountry = true
	}
	if !inCountry {
		m.Invalid.Add(t.Name, addr.describe())
	}
	return inCountry
}
