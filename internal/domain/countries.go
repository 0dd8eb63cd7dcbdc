package domain

import (
	"sort"
	"strings"
)

// CountryDirectory resolves phone numbers to country policies by longest
// dialing-code prefix. It is loaded once at process start.
type CountryDirectory struct {
	byCode map[string]CountryConfig
	codes  []string // sorted by length, longest first
}

// NewCountryDirectory builds a directory from the configured countries
func NewCountryDirectory(countries []CountryConfig) *CountryDirectory {
	d := &CountryDirectory{
		byCode: make(map[string]CountryConfig, len(countries)),
		codes:  make([]string, 0, len(countries)),
	}
	for _, c := range countries {
		if c.Code == "" {
			continue
		}
		d.byCode[c.Code] = c
		d.codes = append(d.codes, c.Code)
	}
	sort.Slice(d.codes, func(i, j int) bool {
		return len(d.codes[i]) > len(d.codes[j])
	})
	return d
}

// Resolve matches a phone number against the configured dialing codes
func (d *CountryDirectory) Resolve(phone string) (CountryConfig, bool) {
	for _, code := range d.codes {
		if strings.HasPrefix(phone, code) {
			return d.byCode[code], true
		}
	}
	return CountryConfig{}, false
}

// CountrySlug converts a country name into its artifact partition folder name
func CountrySlug(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}
