// Package fieldmap loads the ordered list of PUMS variables to request and
// the code-to-label mappings used to recode them.
//
// The document is a single mapping (YAML, or JSON since JSON is valid YAML)
// keyed by API variable name. Key order is the request order. A scalar value,
// usually a short description, marks a passthrough field. A mapping of
// code to label marks a coded field. Mappings nested one or more levels deep,
// as in the Census data dictionary's {"values": {"item": {...}}} shape, are
// flattened into a single label table. Scalars beside a nested mapping, and
// the dictionary's variable metadata keys (label, predicateType, ...), are
// not codes; a variable described only by metadata is passthrough.
package fieldmap

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/census-microdata-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrInvalid means the document is not a field map.
var ErrInvalid = errors.New("invalid field map")

// metadataKeys are the Census data dictionary's per-variable attributes.
var metadataKeys = map[string]bool{
	"name":             true,
	"label":            true,
	"concept":          true,
	"group":            true,
	"limit":            true,
	"attributes":       true,
	"required":         true,
	"predicateType":    true,
	"predicateOnly":    true,
	"suggested-weight": true,
}

// Load reads and decodes the field map at path.
func Load(path string) (domain.FieldMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.FieldMap{}, fmt.Errorf("open field map: %w", err)
	}
	defer f.Close()

	fm, err := Decode(f)
	if err != nil {
		return domain.FieldMap{}, fmt.Errorf("%s: %w", path, err)
	}
	return fm, nil
}

// Decode parses a field map document from r.
func Decode(r io.Reader) (domain.FieldMap, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.FieldMap{}, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return domain.FieldMap{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	root := resolve(&doc)
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = resolve(root.Content[0])
	}
	if root.Kind != yaml.MappingNode {
		return domain.FieldMap{}, fmt.Errorf("%w: line %d: top level must be a mapping", ErrInvalid, root.Line)
	}
	if len(root.Content) == 0 {
		return domain.FieldMap{}, fmt.Errorf("%w: no fields", ErrInvalid)
	}

	fm := domain.FieldMap{Fields: make([]domain.Field, 0, len(root.Content)/2)}
	seen := make(map[string]bool, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := resolve(root.Content[i]), resolve(root.Content[i+1])
		name := key.Value
		if key.Kind != yaml.ScalarNode || name == "" {
			return domain.FieldMap{}, fmt.Errorf("%w: line %d: field name must be a non-empty scalar", ErrInvalid, key.Line)
		}
		if seen[name] {
			return domain.FieldMap{}, fmt.Errorf("%w: line %d: duplicate field %s", ErrInvalid, key.Line, name)
		}
		seen[name] = true

		field, err := decodeField(name, val)
		if err != nil {
			return domain.FieldMap{}, err
		}
		fm.Fields = append(fm.Fields, field)
	}
	return fm, nil
}

func decodeField(name string, n *yaml.Node) (domain.Field, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return domain.PassthroughField(name), nil
	case yaml.MappingNode:
		labels := map[string]string{}
		if err := flatten(name, stripMetadata(n), labels); err != nil {
			return domain.Field{}, err
		}
		if len(labels) == 0 {
			return domain.PassthroughField(name), nil
		}
		return domain.CodedField(name, labels), nil
	default:
		return domain.Field{}, fmt.Errorf("%w: line %d: field %s must be a description or a code mapping", ErrInvalid, n.Line, name)
	}
}

// stripMetadata returns a copy of a field's mapping without the data
// dictionary's scalar metadata entries.
func stripMetadata(n *yaml.Node) *yaml.Node {
	out := *n
	out.Content = make([]*yaml.Node, 0, len(n.Content))
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := resolve(n.Content[i]), resolve(n.Content[i+1])
		if key.Kind == yaml.ScalarNode && metadataKeys[key.Value] && val.Kind == yaml.ScalarNode {
			continue
		}
		out.Content = append(out.Content, n.Content[i], n.Content[i+1])
	}
	return &out
}

// hasMapping reports whether any value directly under n is a mapping.
func hasMapping(n *yaml.Node) bool {
	for i := 1; i < len(n.Content); i += 2 {
		if resolve(n.Content[i]).Kind == yaml.MappingNode {
			return true
		}
	}
	return false
}

// flatten collects the code/label pairs under n. At a level that nests a
// mapping only the nested mappings hold codes. Later pairs win when the same
// code appears twice.
func flatten(name string, n *yaml.Node, into map[string]string) error {
	nested := hasMapping(n)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := resolve(n.Content[i]), resolve(n.Content[i+1])
		switch val.Kind {
		case yaml.ScalarNode:
			if nested {
				continue
			}
			if key.Kind != yaml.ScalarNode {
				return fmt.Errorf("%w: line %d: field %s has a non-scalar code", ErrInvalid, key.Line, name)
			}
			into[key.Value] = scalarText(val)
		case yaml.MappingNode:
			if err := flatten(name, val, into); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: line %d: field %s has an unsupported label", ErrInvalid, val.Line, name)
		}
	}
	return nil
}

func scalarText(n *yaml.Node) string {
	if n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
