// Package courier identifies courier providers from AWB (airway bill) numbers.
package courier

import "regexp"

// Provider is a known courier provider with the AWB format it issues.
type Provider struct {
	// Code is the stable identifier used across orders and shipments.
	Code string
	// Name is the human-readable provider name.
	Name string

	pattern *regexp.Regexp
}

// providers is the ordered detection list. First match wins, so patterns are
// kept mutually exclusive: Delhivery AWBs are 13-17 digits with a fixed 1490
// prefix, Bluedart AWBs are exactly 10 digits, Shadowfax AWBs carry an SF
// prefix. A 10-digit number starting with 1490 cannot reach the Delhivery
// pattern because of its minimum length.
var providers = []Provider{
	{Code: "delhivery", Name: "Delhivery", pattern: regexp.MustCompile(`^1490\d{9,13}$`)},
	{Code: "bluedart", Name: "Bluedart", pattern: regexp.MustCompile(`^\d{10}$`)},
	{Code: "shadowfax", Name: "Shadowfax", pattern: regexp.MustCompile(`^SF\d{10,12}$`)},
}

// Detect returns the provider code whose AWB pattern matches the given
// number, or "" when no pattern matches. An empty result is not an error;
// it means the caller must select the provider manually.
func Detect(awb string) string {
	for _, p := range providers {
		if p.pattern.MatchString(awb) {
			return p.Code
		}
	}
	return ""
}

// Known reports whether code identifies a supported courier provider.
func Known(code string) bool {
	for _, p := range providers {
		if p.Code == code {
			return true
		}
	}
	return false
}

// Providers returns the supported providers in detection order.
func Providers() []Provider {
	out := make([]Provider, len(providers))
	copy(out, providers)
	return out
}
