package identity

import (
	"strings"

	"msg-deidentifier/internal/phi"
)

// PlaceholderValues are values that indicate missing or test data in any
// category. They carry no identity and pass through unchanged.
var PlaceholderValues = map[string]bool{
	"":         true,
	`""`:       true, // HL7 explicit null
	"unknown":  true,
	"unk":      true,
	"n/a":      true,
	"na":       true,
	"null":     true,
	"none":     true,
	"redacted": true,
}

// PlaceholderNames are name values that indicate missing/test data
var PlaceholderNames = map[string]bool{
	"noname":      true,
	"anonymous":   true,
	"test":        true,
	"patient":     true,
	"patienttest": true, // "Test Patient" after NormalizeName
}

// PlaceholderDOBs are date values that indicate missing/test data
var PlaceholderDOBs = map[string]bool{
	"00000000": true,
	"11111111": true,
	"19000101": true,
	"99999999": true,
}

// IsPlaceholder reports whether value is a missing-data marker for cat.
func IsPlaceholder(cat phi.Category, value string) bool {
	v := strings.TrimSpace(value)
	if PlaceholderValues[strings.ToLower(v)] {
		return true
	}
	switch cat {
	case phi.Name:
		return PlaceholderNames[strings.ToLower(NormalizeName(v))]
	case phi.DateOfEvent:
		return PlaceholderDOBs[v]
	}
	return false
}
