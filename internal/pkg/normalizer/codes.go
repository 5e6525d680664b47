package normalizer

import "strings"

// countryAliases maps provider-native country codes onto internal 2-letter
// codes. Providers mix ISO 3166-1 alpha-2, alpha-3 and a few house codes.
var countryAliases = map[string]string{
	"UK":  "GB",
	"EL":  "GR",
	"USA": "US",
	"GBR": "GB",
	"DEU": "DE",
	"FRA": "FR",
	"ESP": "ES",
	"ITA": "IT",
	"NLD": "NL",
	"CHE": "CH",
	"AUT": "AT",
	"TUR": "TR",
	"ARE": "AE",
	"SAU": "SA",
	"JPN": "JP",
	"KOR": "KR",
	"CHN": "CN",
	"HKG": "HK",
	"TWN": "TW",
	"SGP": "SG",
	"THA": "TH",
	"VNM": "VN",
	"IDN": "ID",
	"MYS": "MY",
	"PHL": "PH",
	"IND": "IN",
	"AUS": "AU",
	"NZL": "NZ",
	"CAN": "CA",
	"MEX": "MX",
	"BRA": "BR",
	"ARG": "AR",
	"ZAF": "ZA",
	"EGY": "EG",
	"RUS": "RU",
	"UKR": "UA",
	"POL": "PL",
	"PRT": "PT",
	"GRC": "GR",
	"SWE": "SE",
	"NOR": "NO",
	"DNK": "DK",
	"FIN": "FI",
	"IRL": "IE",
	"BEL": "BE",
	"CZE": "CZ",
	"HUN": "HU",
	"ROU": "RO",
	"BGR": "BG",
	"HRV": "HR",
	"ISR": "IL",
	"QAT": "QA",
	"KWT": "KW",
	"BHR": "BH",
	"OMN": "OM",
	"JOR": "JO",
}

// ResolveCountryCode normalizes a provider-native country code to the
// internal 2-letter form. An empty string means the code is unresolvable.
func ResolveCountryCode(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return ""
	}
	if mapped, ok := countryAliases[c]; ok {
		return mapped
	}
	if len(c) == 2 {
		return c
	}
	return ""
}
