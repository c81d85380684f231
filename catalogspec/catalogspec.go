// Package catalogspec lets a host describe its Woopsa catalog as a
// JSON document at boot time instead of hand-writing wcatalog
// constructor calls. The document supplies only the catalog's shape —
// names, type tags, read-only flags, method return types — never the
// storage behind each entry; that still comes from host-supplied
// Go values bound in by name.
package catalogspec

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/woopsa-protocol/woopsa/wcatalog"
)

// PropertySpec declares one property's shape.
type PropertySpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	ReadOnly bool   `json:"readOnly"`
	Size     int    `json:"size"`
}

// MethodSpec declares one method's shape.
type MethodSpec struct {
	Name       string `json:"name"`
	ReturnType string `json:"returnType"`
}

// Spec is the top-level JSON document shape.
type Spec struct {
	Properties []PropertySpec `json:"properties"`
	Methods    []MethodSpec   `json:"methods"`
}

// Bindings supplies the host storage behind each declared name. A
// name present in Spec but absent from the matching Bindings map
// fails Compile.
type Bindings struct {
	Properties map[string]wcatalog.PropertyBinding
	Methods    map[string]wcatalog.MethodBinding
}

var typeByName = map[string]wcatalog.Type{
	"Null":        wcatalog.TypeNull,
	"Logical":     wcatalog.TypeLogical,
	"Integer":     wcatalog.TypeInteger,
	"Real":        wcatalog.TypeReal,
	"TimeSpan":    wcatalog.TypeTimeSpan,
	"DateTime":    wcatalog.TypeDateTime,
	"Text":        wcatalog.TypeText,
	"Link":        wcatalog.TypeLink,
	"ResourceUrl": wcatalog.TypeResourceURL,
}

// Parse unmarshals a JSON catalog declaration.
func Parse(doc []byte) (Spec, error) {
	var spec Spec
	if err := json.Unmarshal(doc, &spec); err != nil {
		return Spec{}, fmt.Errorf("catalogspec: %w", err)
	}
	return spec, nil
}

// Compile binds each name declared in spec against bindings and
// produces a *wcatalog.Catalog equivalent to one hand-built through
// wcatalog's own constructors. lock is passed through to
// wcatalog.New unchanged.
func Compile(spec Spec, bindings Bindings, lock wcatalog.Locker) (*wcatalog.Catalog, error) {
	entries := make([]wcatalog.Entry, 0, len(spec.Properties)+len(spec.Methods))

	for _, p := range spec.Properties {
		t, ok := typeByName[p.Type]
		if !ok {
			return nil, fmt.Errorf("catalogspec: property %q declares unknown type %q", p.Name, p.Type)
		}
		binding, ok := bindings.Properties[p.Name]
		if !ok {
			return nil, fmt.Errorf("catalogspec: property %q has no bound storage", p.Name)
		}
		if p.ReadOnly {
			entries = append(entries, wcatalog.PropertyReadOnly(p.Name, t, binding, p.Size))
		} else {
			entries = append(entries, wcatalog.Property(p.Name, t, binding, p.Size))
		}
	}

	for _, m := range spec.Methods {
		t, ok := typeByName[m.ReturnType]
		if !ok {
			return nil, fmt.Errorf("catalogspec: method %q declares unknown return type %q", m.Name, m.ReturnType)
		}
		binding, ok := bindings.Methods[m.Name]
		if !ok {
			return nil, fmt.Errorf("catalogspec: method %q has no bound callable", m.Name)
		}
		entries = append(entries, wcatalog.Method(m.Name, t, binding))
	}

	return wcatalog.New(lock, entries...), nil
}

// CompileJSON is a convenience wrapper combining Parse and Compile.
func CompileJSON(doc []byte, bindings Bindings, lock wcatalog.Locker) (*wcatalog.Catalog, error) {
	spec, err := Parse(doc)
	if err != nil {
		return nil, err
	}
	return Compile(spec, bindings, lock)
}
