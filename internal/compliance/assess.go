// Package compliance checks transformed documents against the Safe Harbor
// category list. The result reports rule coverage; it is advisory and makes
// no claim about free text the classifier does not map.
package compliance

import (
	"sort"

	"github.com/samber/lo"

	"msg-deidentifier/internal/identity"
	"msg-deidentifier/internal/phi"
)

// Reason explains why a finding was raised.
type Reason string

const (
	// ReasonKept marks a regulated field left untouched on request.
	ReasonKept Reason = "kept"
	// ReasonResidual marks an unmapped field whose value looks regulated.
	ReasonResidual Reason = "residual"
)

// Finding is one residual identifier.
type Finding struct {
	Location phi.FieldLocation `json:"location"`
	Category phi.Category      `json:"category"`
	Reason   Reason            `json:"reason"`
}

// Assessment is the compliance verdict for a document, a file or a batch.
type Assessment struct {
	MeetsSafeHarbor       bool           `json:"meetsSafeHarbor"`
	ViolatedCategories    []phi.Category `json:"violatedCategories"`
	TransformedCategories []phi.Category `json:"transformedCategories"`
	Findings              []Finding      `json:"findings,omitempty"`
}

// Pass is the passing assessment with no findings. It is the identity
// element of Combine; the zero Assessment is not.
func Pass() Assessment {
	return Assessment{MeetsSafeHarbor: true}
}

// Assess derives the assessment for one document. Kept regulated fields
// always count as residual. With residualScan, unmapped fields are also
// matched against the residual detectors.
func Assess(changes []phi.AppliedChange, fields []phi.ClassifiedField, residualScan bool) Assessment {
	var findings []Finding
	for _, f := range fields {
		switch {
		case f.Category != phi.None && f.Kept:
			if identity.IsPlaceholder(f.Category, f.Value) {
				continue
			}
			findings = append(findings, Finding{Location: f.Location, Category: f.Category, Reason: ReasonKept})
		case f.Category == phi.None && residualScan:
			for _, cat := range Scan(f.Location, f.Value) {
				findings = append(findings, Finding{Location: f.Location, Category: cat, Reason: ReasonResidual})
			}
		}
	}

	violated := lo.Uniq(lo.Map(findings, func(f Finding, _ int) phi.Category { return f.Category }))
	transformed := lo.Uniq(lo.Map(changes, func(c phi.AppliedChange, _ int) phi.Category { return c.Category }))
	sortCategories(violated)
	sortCategories(transformed)

	return Assessment{
		MeetsSafeHarbor:       len(violated) == 0,
		ViolatedCategories:    violated,
		TransformedCategories: transformed,
		Findings:              findings,
	}
}

// Combine merges two assessments: the verdict is the AND of both, the
// category sets are unioned and findings concatenated.
func Combine(a, b Assessment) Assessment {
	violated := lo.Union(a.ViolatedCategories, b.ViolatedCategories)
	transformed := lo.Union(a.TransformedCategories, b.TransformedCategories)
	sortCategories(violated)
	sortCategories(transformed)

	var findings []Finding
	findings = append(findings, a.Findings...)
	findings = append(findings, b.Findings...)

	return Assessment{
		MeetsSafeHarbor:       a.MeetsSafeHarbor && b.MeetsSafeHarbor,
		ViolatedCategories:    violated,
		TransformedCategories: transformed,
		Findings:              findings,
	}
}

func sortCategories(cats []phi.Category) {
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
}
