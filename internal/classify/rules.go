package classify

import "msg-deidentifier/internal/phi"

func group(std phi.Standard, container string, cat phi.Category, paths ...string) []Rule {
	rules := make([]Rule, 0, len(paths))
	for _, p := range paths {
		rules = append(rules, Rule{Standard: std, Container: container, Path: p, Category: cat})
	}
	return rules
}

// blank marks rules whose values are cleared.
func blank(rules []Rule) []Rule {
	for i := range rules {
		rules[i].Blank = true
	}
	return rules
}

// DefaultRules returns the built-in Safe Harbor rule table for HL7 v2, FHIR
// and DICOM.
func DefaultRules() []Rule {
	var rules []Rule
	for _, set := range [][]Rule{hl7Rules(), fhirRules(), dicomRules(), suffixRules()} {
		rules = append(rules, set...)
	}
	return rules
}

// hl7Rules covers component-level paths. A field without components is
// looked up as component 1.
func hl7Rules() []Rule {
	h := func(seg string, cat phi.Category, paths ...string) []Rule {
		return group(phi.HL7, seg, cat, paths...)
	}
	var rules []Rule
	add := func(r []Rule) { rules = append(rules, r...) }

	// Message header and event
	add(h("MSH", phi.DateOfEvent, "7.1"))
	add(h("EVN", phi.DateOfEvent, "2.1", "3.1", "6.1"))

	// Patient identification
	add(h("PID", phi.MedicalRecordNumber, "2.1", "3.1", "4.1"))
	add(h("PID", phi.Name, "5.1", "5.2", "5.3", "6.1", "6.2", "6.3", "9.1", "9.2", "9.3"))
	add(h("PID", phi.DateOfEvent, "7.1", "29.1", "33.1"))
	add(h("PID", phi.GeoSubdivision, "11.1", "11.2", "11.3", "11.5", "11.9", "12.1", "23.1"))
	add(h("PID", phi.Phone, "13.1", "13.12", "14.1", "14.12"))
	add(h("PID", phi.Email, "13.4", "14.4"))
	add(h("PID", phi.AccountNumber, "18.1"))
	add(h("PID", phi.SSN, "19.1"))
	add(h("PID", phi.CertificateOrLicenseNumber, "20.1"))
	add(h("PID", phi.OtherUniqueID, "21.1"))

	// Additional demographics
	add(h("PD1", phi.Name, "4.2", "4.3"))

	// Next of kin
	add(h("NK1", phi.Name, "2.1", "2.2", "2.3", "30.1", "30.2", "30.3"))
	add(h("NK1", phi.GeoSubdivision, "4.1", "4.2", "4.3", "4.5", "32.1", "32.3", "32.5"))
	add(h("NK1", phi.Phone, "5.1", "6.1", "31.1"))
	add(h("NK1", phi.Email, "5.4", "6.4"))
	add(h("NK1", phi.DateOfEvent, "8.1", "9.1", "16.1"))
	add(h("NK1", phi.OtherUniqueID, "33.1"))
	add(h("NK1", phi.SSN, "37.1"))

	// Visit
	add(h("PV1", phi.Name, "7.2", "7.3", "8.2", "8.3", "9.2", "9.3", "17.2", "17.3"))
	add(h("PV1", phi.AccountNumber, "19.1"))
	add(h("PV1", phi.DateOfEvent, "44.1", "45.1"))
	add(h("PV1", phi.OtherUniqueID, "50.1"))
	add(h("PV2", phi.DateOfEvent, "8.1", "9.1"))

	// Guarantor
	add(h("GT1", phi.Name, "3.1", "3.2", "3.3"))
	add(h("GT1", phi.GeoSubdivision, "5.1", "5.2", "5.3", "5.5"))
	add(h("GT1", phi.Phone, "6.1", "7.1"))
	add(h("GT1", phi.DateOfEvent, "8.1"))
	add(h("GT1", phi.SSN, "12.1"))

	// Insurance
	add(h("IN1", phi.Name, "16.1", "16.2", "16.3"))
	add(h("IN1", phi.DateOfEvent, "12.1", "13.1", "18.1"))
	add(h("IN1", phi.GeoSubdivision, "19.1", "19.3", "19.5"))
	add(h("IN1", phi.HealthPlanBeneficiaryID, "36.1", "49.1"))
	add(h("IN2", phi.SSN, "2.1"))
	add(h("IN2", phi.HealthPlanBeneficiaryID, "8.1"))

	// Merge
	add(h("MRG", phi.MedicalRecordNumber, "1.1", "4.1"))
	add(h("MRG", phi.AccountNumber, "3.1"))
	add(h("MRG", phi.Name, "7.1", "7.2", "7.3"))

	// Orders and results
	add(h("ORC", phi.OtherUniqueID, "2.1", "3.1"))
	add(h("ORC", phi.DateOfEvent, "9.1", "15.1"))
	add(h("ORC", phi.Name, "12.2", "12.3"))
	add(h("OBR", phi.OtherUniqueID, "2.1", "3.1"))
	add(h("OBR", phi.DateOfEvent, "6.1", "7.1", "8.1", "14.1", "22.1"))
	add(h("OBR", phi.Name, "16.2", "16.3"))
	add(h("OBX", phi.DateOfEvent, "14.1", "19.1"))
	add(h("OBX", phi.Name, "16.2", "16.3"))
	add(h("DG1", phi.DateOfEvent, "5.1", "19.1"))
	add(h("PR1", phi.DateOfEvent, "5.1"))
	add(h("AL1", phi.DateOfEvent, "6.1"))
	return rules
}

func fhirRules() []Rule {
	shared := func(cat phi.Category, paths ...string) []Rule {
		return group(phi.FHIR, "*", cat, paths...)
	}
	res := func(resource string, cat phi.Category, paths ...string) []Rule {
		return group(phi.FHIR, resource, cat, paths...)
	}
	var rules []Rule
	add := func(r []Rule) { rules = append(rules, r...) }

	// Person-like elements shared by Patient, Practitioner, RelatedPerson, Person.
	add(shared(phi.Name,
		"name.family", "name.given", "name.text",
		"contact.name.family", "contact.name.given", "contact.name.text"))
	add(shared(phi.GeoSubdivision,
		"address.line", "address.city", "address.district", "address.postalCode", "address.text",
		"contact.address.line", "contact.address.city", "contact.address.postalCode", "contact.address.text"))
	add(shared(phi.Phone,
		"telecom:phone.value", "telecom:sms.value", "telecom:pager.value",
		"contact.telecom:phone.value", "contact.telecom:sms.value"))
	add(shared(phi.Fax, "telecom:fax.value", "contact.telecom:fax.value"))
	add(shared(phi.Email, "telecom:email.value", "contact.telecom:email.value"))
	add(shared(phi.URL, "telecom:url.value", "photo.url"))
	add(shared(phi.Phone, "telecom.value", "contact.telecom.value"))
	add(shared(phi.OtherUniqueID, "telecom:other.value", "identifier.value"))
	add(shared(phi.FullFacePhoto, "photo.data"))

	// Identifier values discriminated by type code (v2 table 0203) or system.
	add(shared(phi.MedicalRecordNumber, "identifier:MR.value", "identifier:PI.value", "identifier:PT.value"))
	add(shared(phi.SSN, "identifier:SS.value"))
	add(shared(phi.CertificateOrLicenseNumber, "identifier:DL.value", "identifier:PPN.value", "identifier:LN.value"))
	add(shared(phi.HealthPlanBeneficiaryID, "identifier:MB.value", "identifier:SN.value", "identifier:MA.value", "identifier:MC.value"))
	add(shared(phi.AccountNumber, "identifier:AN.value", "identifier:VN.value"))

	// Resource ids and every reference are hashed alike so links survive.
	add(shared(phi.OtherUniqueID, "id", "subject.reference", "patient.reference", "beneficiary.reference"))
	add(res("Bundle", phi.OtherUniqueID, "entry.fullUrl"))
	add(shared(phi.DateOfEvent,
		"birthDate", "deceasedDateTime", "meta.lastUpdated",
		"period.start", "period.end", "effectiveDateTime", "effectivePeriod.start", "effectivePeriod.end",
		"issued", "recordedDate", "onsetDateTime", "abatementDateTime", "authoredOn",
		"performedDateTime", "performedPeriod.start", "performedPeriod.end",
		"occurrenceDateTime", "created", "billablePeriod.start", "billablePeriod.end"))

	add(res("Coverage", phi.HealthPlanBeneficiaryID, "subscriberId"))
	add(res("Device", phi.DeviceID, "serialNumber", "lotNumber", "udiCarrier.deviceIdentifier", "udiCarrier.carrierHRF"))
	add(res("Device", phi.DateOfEvent, "manufactureDate", "expirationDate"))
	return rules
}

// dicomRules mirror the PHI tag lists applied to CT/MR/US metadata. Paths are
// DICOM keywords.
func dicomRules() []Rule {
	d := func(cat phi.Category, keywords ...string) []Rule {
		return group(phi.DICOM, "*", cat, keywords...)
	}
	var rules []Rule
	add := func(r []Rule) { rules = append(rules, r...) }

	add(d(phi.Name,
		"PatientName", "PatientMotherBirthName", "OtherPatientNames",
		"ReferringPhysicianName", "PerformingPhysicianName", "OperatorsName",
		"PhysiciansOfRecord", "NameOfPhysiciansReadingStudy", "RequestingPhysician",
		"ScheduledPerformingPhysicianName"))
	add(d(phi.MedicalRecordNumber, "PatientID", "OtherPatientIDs", "MedicalRecordLocator"))
	add(d(phi.DateOfEvent,
		"PatientBirthDate", "StudyDate", "SeriesDate", "AcquisitionDate", "ContentDate",
		"InstanceCreationDate", "AcquisitionDateTime"))
	add(d(phi.AgeOver89, "PatientAge"))
	add(d(phi.GeoSubdivision, "PatientAddress", "InstitutionAddress", "ReferringPhysicianAddress"))
	add(d(phi.Phone, "PatientTelephoneNumbers", "ReferringPhysicianTelephoneNumbers"))
	add(d(phi.AccountNumber, "AccessionNumber"))
	add(d(phi.OtherUniqueID, "StudyID", "PerformedProcedureStepID", "ScheduledProcedureStepID"))
	add(d(phi.DeviceID, "DeviceSerialNumber", "StationName"))
	add(d(phi.OtherUniqueID, "RequestedProcedureID"))

	// no date to shift and no shape to keep
	add(blank(d(phi.DateOfEvent, "PatientBirthTime")))
	add(blank(d(phi.OtherUniqueID, "PatientComments", "InstitutionalDepartmentName")))
	add(blank(group(phi.DICOM, "OtherPatientIDsSequence", phi.OtherUniqueID, "IssuerOfPatientID")))
	return rules
}

// suffixRules apply when no exact rule matched.
func suffixRules() []Rule {
	s := func(cat phi.Category, suffixes ...string) []Rule {
		return group(phi.Any, "*", cat, suffixes...)
	}
	var rules []Rule
	rules = append(rules, s(phi.SSN, "*SSN", "*SocialSecurityNumber")...)
	rules = append(rules, s(phi.Email, "*EmailAddress")...)
	rules = append(rules, s(phi.IPAddress, "*IpAddress")...)
	rules = append(rules, group(phi.FHIR, "*", phi.OtherUniqueID, "*.reference")...)
	return rules
}
