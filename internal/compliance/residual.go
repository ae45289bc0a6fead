package compliance

import (
	"regexp"
	"strings"

	"msg-deidentifier/internal/phi"
)

// detector flags values of an unmapped field that look like a regulated
// identifier.
type detector struct {
	category phi.Category
	pattern  *regexp.Regexp
	// skip excludes locations where a match is structural, not PHI.
	skip func(loc phi.FieldLocation) bool
}

// structuralURLFields hold canonical URLs (code systems, profiles) in FHIR.
var structuralURLFields = map[string]bool{
	"SYSTEM":                true,
	"URL":                   true,
	"PROFILE":               true,
	"VALUESET":              true,
	"DEFINITION":            true,
	"INSTANTIATESCANONICAL": true,
}

// detectors in priority order. A value may trigger several.
var detectors = []detector{
	// Social security numbers
	{category: phi.SSN, pattern: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	// Email addresses
	{category: phi.Email, pattern: regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	// North American phone numbers; bare digit runs are left alone
	{category: phi.Phone, pattern: regexp.MustCompile(`(?:\(\d{3}\)\s?|\b\d{3}[-. ])\d{3}[-. ]\d{4}\b`)},
	// Dotted IPv4 not embedded in a longer dotted number such as an OID
	{category: phi.IPAddress, pattern: regexp.MustCompile(`(?:^|[^\d.])(?:25[0-5]|2[0-4]\d|1?\d?\d)(?:\.(?:25[0-5]|2[0-4]\d|1?\d?\d)){3}(?:$|[^\d.])`)},
	// Web addresses
	{category: phi.URL, pattern: regexp.MustCompile(`(?i)\bhttps?://\S+`), skip: isStructuralURL},
}

func isStructuralURL(loc phi.FieldLocation) bool {
	path := strings.ToUpper(phi.PlainPath(loc.Path))
	if i := strings.LastIndex(path, "."); i >= 0 {
		path = path[i+1:]
	}
	return structuralURLFields[path]
}

// Scan returns the categories whose patterns occur in value.
func Scan(loc phi.FieldLocation, value string) []phi.Category {
	var found []phi.Category
	for _, d := range detectors {
		if d.skip != nil && d.skip(loc) {
			continue
		}
		if d.pattern.MatchString(value) {
			found = append(found, d.category)
		}
	}
	return found
}
