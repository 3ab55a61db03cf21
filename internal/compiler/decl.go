// Package compiler loads model and spec declarations from CUE and turns them
// into the inputs of the path compiler: a typeinfo.Schema, a querysql.Mapping
// and built registry specs.
//
//	model: Order: {
//		table: "orders"
//		fields: {
//			ID:        "int"
//			Customer:  "*Customer"
//			LineItems: {type: "[]LineItem", key: "order_id"}
//		}
//	}
//	spec: OrderDetails: {
//		root:  "Order"
//		split: true
//		paths: ["o.LineItems[each].Product", "o.Customer[to].Address"]
//	}
package compiler

// Declarations is everything one CUE instance declares.
type Declarations struct {
	Models []ModelDecl `validate:"dive"`
	Specs  []SpecDecl  `validate:"dive"`
}

// ModelDecl declares one entity type.
type ModelDecl struct {
	Name string `json:"name" validate:"required,goident"`

	// Table and Key override the table naming conventions.
	Table string `json:"table,omitempty" validate:"omitempty,sqlident"`
	Key   string `json:"key,omitempty" validate:"omitempty,sqlident"`

	// Columns lists the selected columns. Empty selects every column.
	Columns []string `json:"columns,omitempty" validate:"dive,sqlident"`

	Interface  bool              `json:"interface,omitempty"`
	Fields     []FieldDecl       `json:"fields" validate:"dive"`
	Methods    map[string]string `json:"methods,omitempty" validate:"dive,keys,goident,endkeys,typeref"`
	Extends    []string          `json:"extends,omitempty" validate:"dive,goident"`
	Implements []string          `json:"implements,omitempty" validate:"dive,goident"`
}

// FieldDecl declares one field of a model.
type FieldDecl struct {
	Name string `json:"name" validate:"required,goident"`
	Type string `json:"type" validate:"required,typeref"`

	// Key is the foreign key column of a navigation. For a reference it lives
	// on the model's table; for a collection, on the element table.
	Key string `json:"key,omitempty" validate:"omitempty,sqlident"`
}

// SpecDecl declares one named include spec.
type SpecDecl struct {
	Name     string   `json:"name" validate:"required,goident"`
	Root     string   `json:"root" validate:"required,goident"`
	Split    bool     `json:"split,omitempty"`
	Tracking string   `json:"tracking,omitempty" validate:"omitempty,oneof=default identity-resolution none"`
	Statics  []string `json:"statics,omitempty" validate:"dive,goident"`
	Paths    []string `json:"paths" validate:"required_without=Imports,dive,required"`
	Imports  []string `json:"imports,omitempty" validate:"dive,goident"`
}

// Model returns the model named name.
func (d *Declarations) Model(name string) (ModelDecl, bool) {
	for _, m := range d.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelDecl{}, false
}

// Spec returns the spec named name.
func (d *Declarations) Spec(name string) (SpecDecl, bool) {
	for _, s := range d.Specs {
		if s.Name == name {
			return s, true
		}
	}
	return SpecDecl{}, false
}

// Merge appends the declarations of other.
func (d *Declarations) Merge(other *Declarations) {
	d.Models = append(d.Models, other.Models...)
	d.Specs = append(d.Specs, other.Specs...)
}
