package types

import (
	"sort"
	"strings"
)

// CustomField is a labelled record field. Value is a list even though callers only
// ever read the first element.
type CustomField struct {
	Label string   `json:"label"`
	Value []string `json:"value"`
}

// Record is a vault entry: a primary secret (Password), free text Notes and custom fields.
type Record struct {
	UID      string        `json:"uid"`
	Title    string        `json:"title"`
	Password string        `json:"password"`
	Notes    string        `json:"notes,omitempty"`
	Custom   []CustomField `json:"custom,omitempty"`
}

// Field returns the first value of the custom field whose label matches
// case-insensitively.
func (r *Record) Field(label string) (string, bool) {
	for _, f := range r.Custom {
		if !strings.EqualFold(f.Label, label) {
			continue
		}
		if len(f.Value) == 0 {
			return "", false
		}
		return f.Value[0], true
	}
	return "", false
}

// SetField replaces the value of an existing field (matched case-insensitively) or
// appends a new one.
func (r *Record) SetField(label, value string) {
	for i, f := range r.Custom {
		if strings.EqualFold(f.Label, label) {
			r.Custom[i].Value = []string{value}
			return
		}
	}
	r.Custom = append(r.Custom, CustomField{Label: label, Value: []string{value}})
}

// RecordUpdate is the set of changes the issuer publishes to the token record.
type RecordUpdate struct {
	Password string
	Notes    string
	Fields   map[string]string
}

// Apply returns a copy of r with the update applied.
func (u RecordUpdate) Apply(r Record) Record {
	out := r
	out.Custom = append([]CustomField(nil), r.Custom...)
	if u.Password != "" {
		out.Password = u.Password
	}
	if u.Notes != "" {
		out.Notes = u.Notes
	}
	labels := make([]string, 0, len(u.Fields))
	for label := range u.Fields {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		out.SetField(label, u.Fields[label])
	}
	return out
}
