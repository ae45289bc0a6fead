package anonymizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"msg-deidentifier/internal/classify"
	"msg-deidentifier/internal/identity"
	"msg-deidentifier/internal/phi"
	"msg-deidentifier/internal/temporal"
)

// TransformResult is the outcome of rewriting one document.
type TransformResult struct {
	Changes       []phi.AppliedChange
	Fields        []phi.ClassifiedField
	SubjectDigest string
	Warnings      []string
	DatesShifted  int
}

// Transformer rewrites documents in place. It holds only immutable state and
// is safe for concurrent use.
type Transformer struct {
	opts       Options
	classifier *classify.Classifier
	keep       phi.KeepSet
	shifter    temporal.Shifter
}

// NewTransformer builds a transformer over the given classifier; nil selects
// the default rule table.
func NewTransformer(opts Options, classifier *classify.Classifier) *Transformer {
	if classifier == nil {
		classifier = classify.Default()
	}
	return &Transformer{
		opts:       opts,
		classifier: classifier,
		keep:       opts.Keep(),
		shifter:    opts.Shifter(),
	}
}

// Transform rewrites doc with the default classifier.
func Transform(doc phi.Document, opts Options, selectors []string) (*TransformResult, error) {
	return NewTransformer(opts, nil).Transform(doc, selectors)
}

// Transform resolves the document's subject and visits every field once.
// Regulated fields are shifted (dates) or pseudonymized and written back
// through doc.Set; kept fields are recorded but left untouched.
func (t *Transformer) Transform(doc phi.Document, selectors []string) (*TransformResult, error) {
	fields := doc.Fields()
	res := &TransformResult{Fields: make([]phi.ClassifiedField, 0, len(fields))}

	subject, ok := ResolveSubject(fields, selectors)
	if ok {
		res.SubjectDigest = identity.SubjectDigest(subject, t.opts.Salt)
	} else {
		subject = pseudoSubject(fields)
	}
	// set once the subject key affects an output value
	subjectUsed := !t.opts.PreserveRelationships

	salt := t.opts.Salt
	if !t.opts.PreserveRelationships {
		salt = identity.SubjectSalt(salt, subject)
	}

	for _, f := range fields {
		cat, kept := t.classifier.Resolve(f.Location, t.keep)
		res.Fields = append(res.Fields, phi.ClassifiedField{Field: f, Category: cat, Kept: kept})
		if cat == phi.None || kept {
			continue
		}

		var replacement string
		switch {
		case t.classifier.Blanks(f.Location):
			// cleared outright
		case cat.IsDate():
			if identity.IsPlaceholder(cat, f.Value) {
				continue
			}
			subjectUsed = true
			shifted, err := t.shifter.Shift(f.Value, subject)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: unparseable date cleared", f.Location))
			} else {
				replacement = shifted
				res.DatesShifted++
			}
		default:
			replacement = identity.Pseudonymize(cat, f.Value, salt)
		}

		if replacement == f.Value {
			continue
		}
		if err := doc.Set(f, replacement); err != nil {
			return nil, fmt.Errorf("could not set %s: %w", f.Location, err)
		}
		res.Changes = append(res.Changes, phi.AppliedChange{
			Location:    f.Location,
			Category:    cat,
			Original:    f.Value,
			Replacement: replacement,
		})
	}

	if !ok && subjectUsed && len(res.Changes) > 0 {
		res.Warnings = append(res.Warnings, "no subject identifier found; using a per-document date offset")
	}
	return res, nil
}

// ResolveSubject returns the first non-placeholder value matching the
// selectors, tried in order. References are reduced to their id, so
// "Patient/p1" and a Patient with id "p1" share a subject.
func ResolveSubject(fields []phi.Field, selectors []string) (string, bool) {
	for _, sel := range selectors {
		for _, f := range fields {
			if !matchSelector(sel, f.Location) {
				continue
			}
			v := strings.TrimSpace(f.Value)
			if i := strings.LastIndex(v, "/"); i >= 0 {
				v = v[i+1:]
			}
			if !identity.IsPlaceholder(phi.OtherUniqueID, v) {
				return v, true
			}
		}
	}
	return "", false
}

// matchSelector reports whether sel ("PID.3.1", "*.subject.reference",
// "Patient.identifier.value") addresses loc.
func matchSelector(sel string, loc phi.FieldLocation) bool {
	container, path, ok := strings.Cut(sel, ".")
	if !ok {
		return false
	}
	if container != "*" && !strings.EqualFold(container, loc.Container) {
		return false
	}
	if strings.EqualFold(path, loc.Path) || strings.EqualFold(path, phi.PlainPath(loc.Path)) {
		return true
	}
	// an HL7 field without components equals its first component
	if loc.Standard != phi.HL7 {
		return false
	}
	return strings.EqualFold(path, loc.Path+".1") || strings.EqualFold(path+".1", loc.Path)
}

// pseudoSubject derives a stable key from the document's own values so that
// all dates of a subject-less document still move together.
func pseudoSubject(fields []phi.Field) string {
	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f.Location.String()))
		h.Write([]byte{0})
		h.Write([]byte(f.Value))
		h.Write([]byte{0})
	}
	return "doc:" + hex.EncodeToString(h.Sum(nil)[:16])
}
