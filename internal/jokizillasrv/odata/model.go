// Package odata implements the subset of OData v4 served by the API: an entity data model
// built from view types, system query options, $filter translation to SQL, response
// envelopes and the CSDL JSON metadata document.
package odata

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

type EdmType string

const (
	EdmString  EdmType = "Edm.String"
	EdmByte    EdmType = "Edm.Byte"
	EdmInt32   EdmType = "Edm.Int32"
	EdmInt64   EdmType = "Edm.Int64"
	EdmDouble  EdmType = "Edm.Double"
	EdmBoolean EdmType = "Edm.Boolean"
)

func (t EdmType) numeric() bool {
	switch t {
	case EdmByte, EdmInt32, EdmInt64, EdmDouble:
		return true
	}
	return false
}

// Property is a structural property of an entity type.
type Property struct {
	Name     string
	Column   string
	Type     EdmType
	Nullable bool
}

// NavigationProperty links an entity type to a collection of another entity type.
type NavigationProperty struct {
	Name   string
	Target string
}

// EntityType is derived from a view struct: every JSON property is a structural property,
// slices of structs are navigation properties.
type EntityType struct {
	Name        string
	Key         string
	Properties  []Property
	Navigations []NavigationProperty
}

func (et *EntityType) Property(name string) (*Property, bool) {
	for i := range et.Properties {
		if et.Properties[i].Name == name {
			return &et.Properties[i], true
		}
	}
	return nil, false
}

func (et *EntityType) Navigation(name string) (*NavigationProperty, bool) {
	for i := range et.Navigations {
		if et.Navigations[i].Name == name {
			return &et.Navigations[i], true
		}
	}
	return nil, false
}

// KeyProperty returns the key's structural property.
func (et *EntityType) KeyProperty() *Property {
	p, _ := et.Property(et.Key)
	return p
}

// EntitySet is an addressable collection with its allowed query capabilities.
type EntitySet struct {
	Name       string
	EntityType *EntityType

	AllowExpand  bool
	AllowFilter  bool
	AllowOrderBy bool
	AllowSelect  bool
	AllowCount   bool
	// MaxTop bounds $top; PageSize bounds every response page. Zero means unbounded.
	MaxTop   int
	PageSize int
}

// Function is an unbound function import without parameters.
type Function struct {
	Name       string
	ReturnType EdmType
}

// Model is the entity data model served under one route prefix.
type Model struct {
	Namespace string
	Sets      []*EntitySet
	Types     []*EntityType
	Functions []Function
}

func (m *Model) EntitySet(name string) (*EntitySet, bool) {
	for _, s := range m.Sets {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func (m *Model) Function(name string) (Function, bool) {
	for _, f := range m.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

func (m *Model) entityType(name string) (*EntityType, bool) {
	for _, t := range m.Types {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// ModelBuilder registers entity sets and functions. Registration errors are programming
// errors and make Build panic.
type ModelBuilder struct {
	model *Model
	errs  []string
}

func NewModelBuilder(namespace string) *ModelBuilder {
	return &ModelBuilder{model: &Model{Namespace: namespace}}
}

// EntitySetBuilder configures one entity set.
type EntitySetBuilder struct {
	b   *ModelBuilder
	set *EntitySet
}

// EntitySet registers a set named name whose entity type is derived from view, a struct
// value or pointer. The entity type is named after the struct with a View suffix removed.
func (b *ModelBuilder) EntitySet(name string, view any) *EntitySetBuilder {
	et := b.entityTypeOf(reflect.TypeOf(view))
	set := &EntitySet{Name: name, EntityType: et}
	b.model.Sets = append(b.model.Sets, set)
	return &EntitySetBuilder{b: b, set: set}
}

func (b *ModelBuilder) Function(name string, returns EdmType) *ModelBuilder {
	b.model.Functions = append(b.model.Functions, Function{Name: name, ReturnType: returns})
	return b
}

func (b *ModelBuilder) Build() *Model {
	for _, set := range b.model.Sets {
		if set.EntityType.Key == "" {
			b.errs = append(b.errs, fmt.Sprintf("entity set %s has no key", set.Name))
		}
		for _, nav := range set.EntityType.Navigations {
			if _, ok := b.model.entityType(nav.Target); !ok {
				b.errs = append(b.errs, fmt.Sprintf("%s.%s targets unknown type %s", set.EntityType.Name, nav.Name, nav.Target))
			}
		}
	}
	if len(b.errs) > 0 {
		panic("odata: " + strings.Join(b.errs, "; "))
	}
	return b.model
}

func (sb *EntitySetBuilder) HasKey(name string) *EntitySetBuilder {
	if _, ok := sb.set.EntityType.Property(name); !ok {
		sb.b.errs = append(sb.b.errs, fmt.Sprintf("key %s is not a property of %s", name, sb.set.EntityType.Name))
		return sb
	}
	sb.set.EntityType.Key = name
	return sb
}

func (sb *EntitySetBuilder) Expand() *EntitySetBuilder {
	sb.set.AllowExpand = true
	return sb
}

func (sb *EntitySetBuilder) Filter() *EntitySetBuilder {
	sb.set.AllowFilter = true
	return sb
}

func (sb *EntitySetBuilder) OrderBy() *EntitySetBuilder {
	sb.set.AllowOrderBy = true
	return sb
}

func (sb *EntitySetBuilder) Select() *EntitySetBuilder {
	sb.set.AllowSelect = true
	return sb
}

func (sb *EntitySetBuilder) Count() *EntitySetBuilder {
	sb.set.AllowCount = true
	return sb
}

func (sb *EntitySetBuilder) Page(maxTop, pageSize int) *EntitySetBuilder {
	sb.set.MaxTop = maxTop
	sb.set.PageSize = pageSize
	return sb
}

func (b *ModelBuilder) entityTypeOf(t reflect.Type) *EntityType {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := strings.TrimSuffix(t.Name(), "View")
	if et, ok := b.model.entityType(name); ok {
		return et
	}
	et := &EntityType{Name: name}
	b.model.Types = append(b.model.Types, et)

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		jsonName := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if jsonName == "-" {
			continue
		}
		if jsonName == "" {
			jsonName = f.Name
		}

		ft := f.Type
		nullable := false
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
			nullable = true
		}
		if ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.Struct {
			target := b.entityTypeOf(ft.Elem())
			et.Navigations = append(et.Navigations, NavigationProperty{Name: jsonName, Target: target.Name})
			continue
		}
		edm, ok := edmTypeOf(ft)
		if !ok {
			b.errs = append(b.errs, fmt.Sprintf("%s.%s has unsupported type %s", name, f.Name, ft))
			continue
		}
		et.Properties = append(et.Properties, Property{
			Name:     jsonName,
			Column:   snakeCase(jsonName),
			Type:     edm,
			Nullable: nullable,
		})
	}
	return et
}

func edmTypeOf(t reflect.Type) (EdmType, bool) {
	switch t.Kind() {
	case reflect.String:
		return EdmString, true
	case reflect.Bool:
		return EdmBoolean, true
	case reflect.Uint8:
		return EdmByte, true
	case reflect.Int8, reflect.Int16, reflect.Uint16, reflect.Int32:
		return EdmInt32, true
	case reflect.Uint32, reflect.Int64, reflect.Int:
		return EdmInt64, true
	case reflect.Float32, reflect.Float64:
		return EdmDouble, true
	}
	return "", false
}

// snakeCase maps a property name to its column: CountryId becomes country_id.
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
