// Package fhir walks FHIR JSON resources and bundles, exposing every
// primitive value with a dotted, discriminated element path.
package fhir

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"msg-deidentifier/internal/phi"
)

// identifierSystems maps well-known identifier systems to v2 table 0203
// type codes when an identifier carries no type.
var identifierSystems = []struct {
	fragment string
	code     string
}{
	{"us-ssn", "SS"},
	{"ssn", "SS"},
	{"us-medicare", "MC"},
	{"medicaid", "MA"},
	{"passport", "PPN"},
	{"driver", "DL"},
	{"mrn", "MR"},
}

// file is one decoded JSON file shared by the documents cut from it.
type file struct {
	root     map[string]interface{}
	indent   string
	finalEOL bool
}

// Resource is one resource of a file: the file's root resource, a Bundle
// entry's resource, or the Bundle itself without its entries' resources.
// It implements phi.Document.
type Resource struct {
	file         *file
	resourceType string
	fields       []phi.Field
	setters      []func(string)
}

// ResourceType returns the resource's type, e.g. "Patient".
func (r *Resource) ResourceType() string {
	return r.resourceType
}

// Standard implements phi.Document.
func (r *Resource) Standard() phi.Standard {
	return phi.FHIR
}

// Fields returns every string and number value of the resource, contained
// resources included, in key order.
func (r *Resource) Fields() []phi.Field {
	out := make([]phi.Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Set replaces the value addressed by f. A number stays a number when the
// replacement is numeric.
func (r *Resource) Set(f phi.Field, value string) error {
	if f.Handle < 0 || f.Handle >= len(r.fields) {
		return fmt.Errorf("fhir: invalid field handle %d", f.Handle)
	}
	if r.fields[f.Handle].Location != f.Location {
		return fmt.Errorf("fhir: handle %d addresses %s, not %s", f.Handle, r.fields[f.Handle].Location, f.Location)
	}
	r.setters[f.Handle](value)
	r.fields[f.Handle].Value = value
	return nil
}

// Lookup returns the first value at path within container, e.g.
// ("Patient", "name.family").
func (r *Resource) Lookup(container, path string) (string, bool) {
	for _, f := range r.fields {
		if f.Location.Container == container && f.Location.Path == path {
			return f.Value, true
		}
	}
	return "", false
}

type walker struct {
	res  *Resource
	seen map[string]int
	// shell skips entry.resource of the top-level Bundle; those resources
	// become documents of their own.
	shell bool
}

func newResource(f *file, obj map[string]interface{}, shell bool) *Resource {
	rt, _ := obj["resourceType"].(string)
	res := &Resource{file: f, resourceType: rt}
	w := &walker{res: res, seen: make(map[string]int), shell: shell}
	w.walkObject(obj, rt, "")
	return res
}

func (w *walker) walkObject(obj map[string]interface{}, container, path string) {
	// nested resources (contained, Bundle entries, Parameters) start a new
	// container with an empty path
	if rt, ok := obj["resourceType"].(string); ok && path != "" {
		container, path = rt, ""
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "resourceType" {
			continue
		}
		if w.shell && container == "Bundle" && path == "entry" && k == "resource" {
			continue
		}
		key := k
		w.walkValue(obj[k], container, joinPath(path, k), k, func(v interface{}) { obj[key] = v })
	}
}

func (w *walker) walkValue(v interface{}, container, path, key string, set func(interface{})) {
	switch t := v.(type) {
	case map[string]interface{}:
		w.walkObject(t, container, path)
	case []interface{}:
		for i, el := range t {
			idx := i
			elPath := path
			if m, ok := el.(map[string]interface{}); ok {
				elPath = discriminate(path, key, m)
			}
			w.walkValue(el, container, elPath, key, func(nv interface{}) { t[idx] = nv })
		}
	case string:
		w.add(container, path, t, func(s string) { set(s) })
	case json.Number:
		w.add(container, path, t.String(), func(s string) {
			if _, err := strconv.ParseFloat(s, 64); err == nil {
				set(json.Number(s))
				return
			}
			set(s)
		})
	}
}

func (w *walker) add(container, path, value string, setter func(string)) {
	if value == "" {
		return
	}
	loc := phi.FieldLocation{Standard: phi.FHIR, Container: container, Path: path}
	key := loc.String()
	loc.Occurrence = w.seen[key]
	w.seen[key]++

	w.res.fields = append(w.res.fields, phi.Field{Location: loc, Value: value, Handle: len(w.res.fields)})
	w.res.setters = append(w.res.setters, setter)
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// discriminate qualifies telecom entries by system and identifier entries
// by type code: "telecom:phone", "identifier:SS".
func discriminate(path, key string, elem map[string]interface{}) string {
	var d string
	switch key {
	case "telecom":
		d, _ = elem["system"].(string)
	case "identifier":
		d = identifierType(elem)
	}
	if d == "" {
		return path
	}
	return path + ":" + d
}

func identifierType(elem map[string]interface{}) string {
	if typ, ok := elem["type"].(map[string]interface{}); ok {
		if codings, ok := typ["coding"].([]interface{}); ok {
			for _, c := range codings {
				if cm, ok := c.(map[string]interface{}); ok {
					if code, ok := cm["code"].(string); ok && code != "" {
						return code
					}
				}
			}
		}
	}
	system, _ := elem["system"].(string)
	system = strings.ToLower(system)
	for _, s := range identifierSystems {
		if system != "" && strings.Contains(system, s.fragment) {
			return s.code
		}
	}
	return ""
}
