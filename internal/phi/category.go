package phi

import (
	"fmt"
	"strings"
)

// Category is one of the regulated identifier classes of the Safe Harbor
// de-identification method. The zero value None means "not regulated".
type Category int

const (
	None Category = iota
	Name
	GeoSubdivision
	DateOfEvent
	Phone
	Fax
	Email
	SSN
	MedicalRecordNumber
	HealthPlanBeneficiaryID
	AccountNumber
	CertificateOrLicenseNumber
	VehicleID
	DeviceID
	URL
	IPAddress
	BiometricID
	FullFacePhoto
	OtherUniqueID
	AgeOver89
)

var categoryNames = [...]string{
	None:                       "None",
	Name:                       "Name",
	GeoSubdivision:             "GeoSubdivision",
	DateOfEvent:                "DateOfEvent",
	Phone:                      "Phone",
	Fax:                        "Fax",
	Email:                      "Email",
	SSN:                        "SSN",
	MedicalRecordNumber:        "MedicalRecordNumber",
	HealthPlanBeneficiaryID:    "HealthPlanBeneficiaryId",
	AccountNumber:              "AccountNumber",
	CertificateOrLicenseNumber: "CertificateOrLicenseNumber",
	VehicleID:                  "VehicleId",
	DeviceID:                   "DeviceId",
	URL:                        "Url",
	IPAddress:                  "IpAddress",
	BiometricID:                "BiometricId",
	FullFacePhoto:              "FullFacePhoto",
	OtherUniqueID:              "OtherUniqueId",
	AgeOver89:                  "AgeOver89",
}

// aliases accepted by ParseCategory in addition to the canonical names.
var categoryAliases = map[string]Category{
	"NAMES":      Name,
	"ADDRESS":    GeoSubdivision,
	"GEO":        GeoSubdivision,
	"DATE":       DateOfEvent,
	"DATES":      DateOfEvent,
	"DOB":        DateOfEvent,
	"TELEPHONE":  Phone,
	"MRN":        MedicalRecordNumber,
	"HEALTHPLAN": HealthPlanBeneficiaryID,
	"ACCOUNT":    AccountNumber,
	"LICENSE":    CertificateOrLicenseNumber,
	"VEHICLE":    VehicleID,
	"DEVICE":     DeviceID,
	"IP":         IPAddress,
	"BIOMETRIC":  BiometricID,
	"PHOTO":      FullFacePhoto,
	"UID":        OtherUniqueID,
	"AGE":        AgeOver89,
}

// Categories lists every regulated category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryNames)-1)
	for c := Name; c <= AgeOver89; c++ {
		out = append(out, c)
	}
	return out
}

// String returns the canonical category name.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// IsDate reports whether values of the category are shifted rather than
// pseudonymized.
func (c Category) IsDate() bool {
	return c == DateOfEvent
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name or alias.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, ok := ParseCategory(string(text))
	if !ok {
		return fmt.Errorf("unknown identifier category %q", string(text))
	}
	*c = parsed
	return nil
}

// ParseCategory resolves a canonical name or alias, case-insensitively.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if key == "" {
		return None, false
	}
	for c := Name; c <= AgeOver89; c++ {
		if strings.ToUpper(categoryNames[c]) == key {
			return c, true
		}
	}
	if c, ok := categoryAliases[key]; ok {
		return c, true
	}
	return None, false
}
