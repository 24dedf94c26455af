package domain

import (
	"maps"
	"slices"
)

// FieldKind tags how a column is treated by Relabel.
type FieldKind int

const (
	// Passthrough columns (numeric measures such as AGEP or WKHP) keep their raw values.
	Passthrough FieldKind = iota
	// Coded columns have their values replaced by labels.
	Coded
)

func (k FieldKind) String() string {
	if k == Coded {
		return "coded"
	}
	return "passthrough"
}

// Field is one requested API variable.
type Field struct {
	Name   string
	Kind   FieldKind
	Labels map[string]string // code -> label; nil unless Kind is Coded
}

// PassthroughField returns a field whose values are kept as-is.
func PassthroughField(name string) Field {
	return Field{Name: name, Kind: Passthrough}
}

// CodedField returns a field recoded through labels.
func CodedField(name string, labels map[string]string) Field {
	return Field{Name: name, Kind: Coded, Labels: labels}
}

// FieldMap is the ordered set of API variables to request and how to decode
// each one. Order determines both the "get=" list and the raw column order of
// the response.
type FieldMap struct {
	Fields []Field
}

// Names returns the API variable names in request order.
func (m FieldMap) Names() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the named field.
func (m FieldMap) Lookup(name string) (Field, bool) {
	i := slices.IndexFunc(m.Fields, func(f Field) bool { return f.Name == name })
	if i < 0 {
		return Field{}, false
	}
	return m.Fields[i], true
}

// With returns a copy of m with each field replacing the same-named field or,
// if absent, appended at the end.
func (m FieldMap) With(fields ...Field) FieldMap {
	out := FieldMap{Fields: make([]Field, len(m.Fields), len(m.Fields)+len(fields))}
	copy(out.Fields, m.Fields)
	for _, f := range fields {
		f.Labels = maps.Clone(f.Labels)
		i := slices.IndexFunc(out.Fields, func(o Field) bool { return o.Name == f.Name })
		if i >= 0 {
			out.Fields[i] = f
			continue
		}
		out.Fields = append(out.Fields, f)
	}
	return out
}

// CodedCount returns how many fields carry a label mapping.
func (m FieldMap) CodedCount() int {
	n := 0
	for _, f := range m.Fields {
		if f.Kind == Coded {
			n++
		}
	}
	return n
}
