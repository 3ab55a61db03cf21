package compiler

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/eagerpath/internal/querysql"
	"github.com/roach88/eagerpath/internal/registry"
	"github.com/roach88/eagerpath/internal/typeinfo"
)

// Schema builds a type universe from model declarations.
func Schema(models []ModelDecl) (*typeinfo.Schema, error) {
	s := typeinfo.NewSchema()
	for _, m := range models {
		d := typeinfo.Decl{
			Name:       m.Name,
			Interface:  m.Interface,
			Methods:    maps.Clone(m.Methods),
			Embeds:     slices.Clone(m.Extends),
			Implements: slices.Clone(m.Implements),
		}
		for _, f := range m.Fields {
			d.Fields = append(d.Fields, typeinfo.FieldDecl{Name: f.Name, Type: f.Type})
		}
		if err := s.Declare(d); err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
	}
	return s, nil
}

// Mapping builds the table mapping of model declarations. Models without
// table settings keep the naming conventions.
func Mapping(models []ModelDecl) *querysql.Mapping {
	m := querysql.NewMapping()
	for _, md := range models {
		t := querysql.Table{
			Name:    md.Table,
			Key:     md.Key,
			Columns: slices.Clone(md.Columns),
		}
		for _, f := range md.Fields {
			if f.Key == "" {
				continue
			}
			if t.Keys == nil {
				t.Keys = make(map[string]string)
			}
			t.Keys[f.Name] = f.Key
		}
		m.Map(md.Name, t)
	}
	return m
}

// Statics returns the union of the statics every spec declares, sorted.
func Statics(specs []SpecDecl) []string {
	var out []string
	for _, s := range specs {
		out = append(out, s.Statics...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Build builds every spec through cache, imports first. A spec whose
// build fails, or that imports a failed spec, is left out; the failures are
// joined into the returned error.
func Build(cache *registry.Cache, specs []SpecDecl) ([]*registry.Spec, error) {
	ordered, err := BuildOrder(specs)
	if err != nil {
		return nil, err
	}

	built := make(map[string]*registry.Spec, len(ordered))
	var out []*registry.Spec
	var errs []error

	for _, d := range ordered {
		spec, err := buildOne(cache, d, built)
		if err != nil {
			errs = append(errs, fmt.Errorf("spec %s: %w", d.Name, err))
			continue
		}
		built[d.Name] = spec
		out = append(out, spec)
	}
	return out, errors.Join(errs...)
}

func buildOne(cache *registry.Cache, d SpecDecl, built map[string]*registry.Spec) (*registry.Spec, error) {
	tracking, err := registry.ParseTracking(d.Tracking)
	if err != nil {
		return nil, err
	}

	b := registry.NewBuilder(cache, d.Name, d.Root)
	for _, imp := range d.Imports {
		other, ok := built[imp]
		if !ok {
			return nil, fmt.Errorf("import %s was not built", imp)
		}
		b.Import(other)
	}
	b.Include(d.Paths...)
	if d.Split {
		b.Split()
	}
	b.Tracking(tracking)
	return b.Build()
}
