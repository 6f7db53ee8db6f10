// Package semtype implements the semantic type system: SemType, Value, and
// the structural operations the IR builder and optimizer rely on
// (equivalence, record widening, projection, field lookup).
package semtype

import "sort"

// Kind discriminates the variants of SemType.
type Kind int

const (
	KString Kind = iota
	KInt
	KFloat
	KBoolean
	KUnit
	KList
	KMap
	KRecord
	KUnion
	KOptional
)

// Field is one named, ordered entry of a Record type.
type Field struct {
	Name string
	Type SemType
}

// SemType is a structural, immutable description of a value's shape.
// Composite kinds carry their component types in the fields below; which
// fields are meaningful is determined by Kind.
type SemType struct {
	Kind Kind

	// List: Elem is the element type.
	Elem *SemType

	// Map: Key/Val are the key and value types.
	Key *SemType
	Val *SemType

	// Record: Fields is order-preserving for display, order-insensitive for
	// Equivalent.
	Fields []Field

	// Union: Variants maps a tag name to its payload type.
	Variants []Field

	// Optional: Inner is the wrapped type.
	Inner *SemType
}

func String() SemType  { return SemType{Kind: KString} }
func Int() SemType     { return SemType{Kind: KInt} }
func Float() SemType   { return SemType{Kind: KFloat} }
func Boolean() SemType { return SemType{Kind: KBoolean} }
func Unit() SemType    { return SemType{Kind: KUnit} }

func List(elem SemType) SemType {
	return SemType{Kind: KList, Elem: &elem}
}

func Map(key, val SemType) SemType {
	return SemType{Kind: KMap, Key: &key, Val: &val}
}

func Record(fields ...Field) SemType {
	return SemType{Kind: KRecord, Fields: fields}
}

func Union(variants ...Field) SemType {
	return SemType{Kind: KUnion, Variants: variants}
}

func Optional(inner SemType) SemType {
	return SemType{Kind: KOptional, Inner: &inner}
}

// Equivalent reports whether a and b describe the same shape. Record field
// order and Union variant order do not matter; List, Map and Optional are
// compared by their element types.
func Equivalent(a, b SemType) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KString, KInt, KFloat, KBoolean, KUnit:
		return true
	case KList:
		return Equivalent(*a.Elem, *b.Elem)
	case KMap:
		return Equivalent(*a.Key, *b.Key) && Equivalent(*a.Val, *b.Val)
	case KOptional:
		return Equivalent(*a.Inner, *b.Inner)
	case KRecord:
		return fieldsEquivalent(a.Fields, b.Fields)
	case KUnion:
		return fieldsEquivalent(a.Variants, b.Variants)
	}
	return false
}

func fieldsEquivalent(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	am := make(map[string]SemType, len(a))
	for _, f := range a {
		am[f.Name] = f.Type
	}
	for _, f := range b {
		at, ok := am[f.Name]
		if !ok || !Equivalent(at, f.Type) {
			return false
		}
	}
	return true
}

// ErrorKind enumerates TypeError causes.
type ErrorKind int

const (
	Mismatch ErrorKind = iota
	NotARecord
	FieldNotFound
	ArityMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case Mismatch:
		return "Mismatch"
	case NotARecord:
		return "NotARecord"
	case FieldNotFound:
		return "FieldNotFound"
	case ArityMismatch:
		return "ArityMismatch"
	default:
		return "Unknown"
	}
}

// TypeError reports a structural type-system failure.
type TypeError struct {
	Kind   ErrorKind
	Detail string
}

func (e *TypeError) Error() string {
	return e.Kind.String() + ": " + e.Detail
}

func newTypeError(kind ErrorKind, detail string) *TypeError {
	return &TypeError{Kind: kind, Detail: detail}
}

// WidenRecords merges two record types by disjoint field union. A field
// present in both records is a conflict unless the two declared types are
// equivalent.
func WidenRecords(a, b SemType) (SemType, error) {
	if a.Kind != KRecord {
		return SemType{}, newTypeError(NotARecord, "left operand of merge is not a record")
	}
	if b.Kind != KRecord {
		return SemType{}, newTypeError(NotARecord, "right operand of merge is not a record")
	}
	seen := make(map[string]SemType, len(a.Fields)+len(b.Fields))
	order := make([]string, 0, len(a.Fields)+len(b.Fields))
	for _, f := range a.Fields {
		seen[f.Name] = f.Type
		order = append(order, f.Name)
	}
	for _, f := range b.Fields {
		if existing, ok := seen[f.Name]; ok {
			if !Equivalent(existing, f.Type) {
				return SemType{}, newTypeError(Mismatch, "conflicting types for shared field "+f.Name)
			}
			continue
		}
		seen[f.Name] = f.Type
		order = append(order, f.Name)
	}
	fields := make([]Field, 0, len(order))
	for _, name := range order {
		fields = append(fields, Field{Name: name, Type: seen[name]})
	}
	return Record(fields...), nil
}

// Project returns the sub-record of rec restricted to fields, in the order
// fields was given.
func Project(rec SemType, fields []string) (SemType, error) {
	if rec.Kind != KRecord {
		return SemType{}, newTypeError(NotARecord, "project source is not a record")
	}
	index := make(map[string]SemType, len(rec.Fields))
	for _, f := range rec.Fields {
		index[f.Name] = f.Type
	}
	out := make([]Field, 0, len(fields))
	for _, name := range fields {
		t, ok := index[name]
		if !ok {
			return SemType{}, newTypeError(FieldNotFound, "no such field: "+name)
		}
		out = append(out, Field{Name: name, Type: t})
	}
	return Record(out...), nil
}

// FieldType returns the declared type of a single field on rec.
func FieldType(rec SemType, field string) (SemType, error) {
	if rec.Kind != KRecord {
		return SemType{}, newTypeError(NotARecord, "source is not a record")
	}
	for _, f := range rec.Fields {
		if f.Name == field {
			return f.Type, nil
		}
	}
	return SemType{}, newTypeError(FieldNotFound, "no such field: "+field)
}

// sortedFieldNames is a helper for CSE/canonicalization callers that need a
// deterministic field ordering independent of declaration order.
func sortedFieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	sort.Strings(names)
	return names
}
