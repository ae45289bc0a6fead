// Package identity derives stable replacement values for regulated
// identifiers from a run-scoped salt. No mapping table is kept: every output
// is a pure function of (category, value, salt), so the same value maps to
// the same pseudonym in every file of a batch and in every later run that
// uses the same salt.
package identity

import (
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"msg-deidentifier/internal/phi"
)

var (
	nameTokenRegex  = regexp.MustCompile(`[^\s^,]+`)
	streetLineRegex = regexp.MustCompile(`^(\d+[A-Za-z]?)\s+\S`)
	postalCodeRegex = regexp.MustCompile(`^[A-Za-z0-9]{2,5}(?:[ -][A-Za-z0-9]{3,4})?$`)
	ageRegex        = regexp.MustCompile(`^(\s*)(\d+)\s*([A-Za-z]*)\s*$`)

	tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// yearUnits are the age units that denote years: none (HL7, FHIR), "Y"
// (DICOM AS) and the UCUM "a".
var yearUnits = map[string]bool{
	"": true, "y": true, "a": true, "yr": true, "yrs": true, "year": true, "years": true,
}

// Pseudonymize returns the replacement for original in category cat.
//
// Placeholder values and dates are returned unchanged; dates are shifted by
// the temporal package instead.
func Pseudonymize(cat phi.Category, original, salt string) string {
	if cat == phi.None || cat.IsDate() || IsPlaceholder(cat, original) {
		return original
	}
	value := strings.TrimSpace(original)

	switch cat {
	case phi.Name:
		return pseudonymizeName(original, salt)
	case phi.GeoSubdivision:
		return pseudonymizeGeo(original, salt)
	case phi.Email:
		d := Digest(cat, strings.ToLower(value), salt)
		return "user-" + hex.EncodeToString(d)[:10] + "@example.org"
	case phi.URL:
		d := Digest(cat, value, salt)
		return "https://example.org/r/" + hex.EncodeToString(d)[:12]
	case phi.IPAddress:
		d := Digest(cat, value, salt)
		return fmt.Sprintf("10.%d.%d.%d", d[0], d[1], d[2])
	case phi.OtherUniqueID:
		return pseudonymizeUniqueID(value, salt)
	case phi.FullFacePhoto:
		return ""
	case phi.AgeOver89:
		return CapAge(original)
	default:
		return preserveFormat(original, Digest(cat, value, salt))
	}
}

// pseudonymizeName replaces every name token independently, so "DOE^JOHN"
// and "John Doe" share their replacements. Separators and the case style of
// each token are preserved.
func pseudonymizeName(value, salt string) string {
	return nameTokenRegex.ReplaceAllStringFunc(value, func(tok string) string {
		norm := NormalizeName(tok)
		if norm == "" {
			return tok
		}
		d := Digest(phi.Name, norm, salt)
		if len(norm) == 1 {
			// initials stay initials
			return applyCase(tok, string(rune('A'+d[0]%26)))
		}
		return applyCase(tok, nameTable[digestIndex(d, len(nameTable))])
	})
}

func pseudonymizeGeo(value, salt string) string {
	trimmed := strings.TrimSpace(value)
	norm := strings.ToUpper(strings.Join(strings.Fields(trimmed), " "))
	d := Digest(phi.GeoSubdivision, norm, salt)

	if m := streetLineRegex.FindStringSubmatch(trimmed); m != nil {
		number := preserveFormat(m[1], d)
		street := streetTable[digestIndex(d[8:], len(streetTable))]
		suffix := streetSuffixTable[int(d[16])%len(streetSuffixTable)]
		return applyCase(trimmed, fmt.Sprintf("%s %s %s", number, street, suffix))
	}
	if postalCodeRegex.MatchString(trimmed) && strings.ContainsAny(trimmed, "0123456789") {
		return preserveFormat(trimmed, d)
	}
	return applyCase(trimmed, placeTable[digestIndex(d, len(placeTable))])
}

// pseudonymizeUniqueID renders a 16 character base32 token. A reference
// prefix such as "Patient/", "urn:uuid:" or the contained marker "#" is kept
// and only the id part is hashed, so a resource id and every reference to it
// map to the same token.
func pseudonymizeUniqueID(value, salt string) string {
	prefix, id := "", value
	switch {
	case strings.LastIndex(value, "/") >= 0:
		i := strings.LastIndex(value, "/")
		prefix, id = value[:i+1], value[i+1:]
	case strings.HasPrefix(value, "urn:uuid:"):
		prefix, id = "urn:uuid:", strings.TrimPrefix(value, "urn:uuid:")
	case strings.HasPrefix(value, "#"):
		prefix, id = "#", value[1:]
	}
	if id == "" {
		return value
	}
	d := Digest(phi.OtherUniqueID, id, salt)
	return prefix + strings.ToLower(tokenEncoding.EncodeToString(d[:10]))
}

// CapAge collapses ages above 89 years to 90, keeping the digit width and
// unit ("093Y" becomes "090Y"). Other values are returned unchanged.
func CapAge(value string) string {
	m := ageRegex.FindStringSubmatch(value)
	if m == nil || !yearUnits[strings.ToLower(m[3])] {
		return value
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n <= 89 {
		return value
	}
	return m[1] + fmt.Sprintf("%0*d", len(m[2]), 90) + m[3]
}

// preserveFormat replaces each digit with a digit and each ASCII letter with
// a letter of the same case. Everything else is copied.
func preserveFormat(value string, digest []byte) string {
	s := newByteStream(digest)
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			b.WriteByte('0' + s.next()%10)
		case r >= 'A' && r <= 'Z':
			b.WriteByte('A' + s.next()%26)
		case r >= 'a' && r <= 'z':
			b.WriteByte('a' + s.next()%26)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// applyCase renders repl in the case style of orig: upper, lower or title.
func applyCase(orig, repl string) string {
	hasUpper := strings.ToLower(orig) != orig
	hasLower := strings.ToUpper(orig) != orig
	switch {
	case hasLower && !hasUpper:
		return strings.ToLower(repl)
	case hasLower && hasUpper:
		return titleCase(repl)
	default:
		return strings.ToUpper(repl)
	}
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if w[0] >= 'a' && w[0] <= 'z' {
			words[i] = string(w[0]-'a'+'A') + w[1:]
		}
	}
	return strings.Join(words, " ")
}
