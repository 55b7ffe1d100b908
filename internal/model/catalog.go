package model

import "strings"

// Countries lists the display names offered by the country filter, in the
// order they are presented.
var Countries = []string{
	"United States",
	"United Kingdom",
	"Australia",
	"Canada",
	"Kenya",
	"India",
	"Germany",
	"France",
	"Italy",
	"Netherlands",
	"Norway",
	"Sweden",
	"China",
	"Japan",
	"South Korea",
	"Russia",
	"Brazil",
	"Argentina",
	"Mexico",
	"South Africa",
	"Nigeria",
	"Egypt",
	"Saudi Arabia",
	"United Arab Emirates",
	"Kuwait",
}

// Categories lists the category filter values accepted by the headline API.
var Categories = []string{
	"Business",
	"Entertainment",
	"General",
	"Health",
	"Science",
	"Sports",
	"Technology",
}

var countryCodes = map[string]string{
	"kenya":                "ke",
	"united states":        "us",
	"united kingdom":       "gb",
	"australia":            "au",
	"canada":               "ca",
	"india":                "in",
	"germany":              "de",
	"france":               "fr",
	"italy":                "it",
	"netherlands":          "nl",
	"norway":               "no",
	"sweden":               "se",
	"china":                "cn",
	"japan":                "jp",
	"south korea":          "kr",
	"russia":               "ru",
	"brazil":               "br",
	"argentina":            "ar",
	"mexico":               "mx",
	"south africa":         "za",
	"nigeria":              "ng",
	"egypt":                "eg",
	"saudi arabia":         "sa",
	"united arab emirates": "ae",
	"kuwait":               "kw",
}

// NormalizeCountry maps a country display name to its ISO 3166 alpha-2 code.
// Known codes pass through unchanged; anything else becomes "".
func NormalizeCountry(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return ""
	}
	if code, ok := countryCodes[key]; ok {
		return code
	}
	for _, code := range countryCodes {
		if code == key {
			return code
		}
	}
	return ""
}

// NormalizeCategory lower-cases a category. Unknown categories become "".
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	for _, known := range Categories {
		if strings.ToLower(known) == c {
			return c
		}
	}
	return ""
}
